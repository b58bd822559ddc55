package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codefionn/hyphertext/internal/consts"
)

// DefaultExaURL is the Exa search endpoint.
const DefaultExaURL = "https://api.exa.ai/search"

const exaSnippetChars = 300

// ExaSearchProvider implements Provider for Exa AI Search API
type ExaSearchProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewExaSearchProvider creates a new Exa search provider
func NewExaSearchProvider(apiKey, endpoint string, timeout time.Duration) *ExaSearchProvider {
	if endpoint == "" {
		endpoint = DefaultExaURL
	}
	if timeout <= 0 {
		timeout = consts.SearchTimeout
	}
	return &ExaSearchProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type exaSearchRequest struct {
	Query      string             `json:"query"`
	NumResults int                `json:"numResults,omitempty"`
	Contents   exaContentsOptions `json:"contents"`
}

type exaContentsOptions struct {
	Text exaTextOptions `json:"text"`
}

type exaTextOptions struct {
	MaxCharacters int `json:"maxCharacters"`
}

type exaSearchResponse struct {
	Results []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Text  string `json:"text,omitempty"`
	} `json:"results"`
}

// Search performs a web search using Exa API
func (e *ExaSearchProvider) Search(ctx context.Context, query string, numResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if numResults <= 0 {
		numResults = consts.SearchResultCount
	}

	payload, err := json.Marshal(exaSearchRequest{
		Query:      query,
		NumResults: numResults,
		Contents:   exaContentsOptions{Text: exaTextOptions{MaxCharacters: exaSnippetChars}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("exa API error (status %d): %s", resp.StatusCode, string(body))
	}

	var decoded exaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]Result, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		results = append(results, Result{
			Title:       r.Title,
			Description: strings.Join(strings.Fields(r.Text), " "),
			URL:         r.URL,
		})
	}
	return results, nil
}

// Name returns the provider name
func (e *ExaSearchProvider) Name() string {
	return "exa"
}
