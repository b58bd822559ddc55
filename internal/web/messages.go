package web

import (
	"encoding/json"
	"net/http"

	"github.com/codefionn/hyphertext/internal/llm"
)

// RunRequest is the body of POST /agent/run.
type RunRequest struct {
	MessageID string `json:"message_id"`
	PageID    string `json:"page_id"`
	Content   string `json:"content"`
	ModelID   string `json:"model_id"`
	// Agent is "planned" (default) or "simple".
	Agent string `json:"agent,omitempty"`
}

// RunResponse acknowledges a dispatched request.
type RunResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// ModelsResponse lists the routable models.
type ModelsResponse struct {
	Models  []llm.ModelSpec `json:"models"`
	Default string          `json:"default"`
}

// CreatePageRequest is the body of POST /pages.
type CreatePageRequest struct {
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
	HTML    string `json:"html_content"`
}

// PostMessageRequest is the body of POST /pages/:id/messages.
type PostMessageRequest struct {
	Content string `json:"content"`
	ModelID string `json:"model_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
