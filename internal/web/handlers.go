package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/orchestrator"
	"github.com/codefionn/hyphertext/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": ServiceName})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, ModelsResponse{
		Models:  s.deps.Models.Models(),
		Default: s.deps.Models.Default(),
	})
}

// handleAgentRun validates a request and queues it. The page is checked
// before the model.
func (s *Server) handleAgentRun(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MessageID == "" || req.PageID == "" {
		writeError(w, http.StatusBadRequest, "message_id and page_id are required")
		return
	}
	agent, err := orchestrator.ParseAgent(req.Agent)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.deps.Store.GetPage(r.Context(), req.PageID)
	if err != nil {
		s.storeError(w, err, "Page not found")
		return
	}

	modelID, err := s.deps.Models.Resolve(req.ModelID)
	if err != nil {
		if errors.Is(err, llm.ErrUnknownModel) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("resolve model %q: %v", req.ModelID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	err = s.deps.Dispatcher.Submit(orchestrator.Request{
		MessageID: req.MessageID,
		PageID:    req.PageID,
		OwnerID:   page.OwnerID,
		Content:   req.Content,
		ModelID:   modelID,
		Agent:     agent,
	})
	if err != nil {
		s.log.Error("dispatch message %s: %v", req.MessageID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{Status: "accepted", Model: modelID})
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CreatePageRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	page := &store.Page{OwnerID: req.OwnerID, Title: req.Title, HTMLContent: req.HTML}
	if err := s.deps.Store.CreatePage(r.Context(), page); err != nil {
		s.log.Error("create page: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	page, err := s.deps.Store.GetPage(r.Context(), ps.ByName("id"))
	if err != nil {
		s.storeError(w, err, "Page not found")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if _, err := s.deps.Store.GetPage(r.Context(), id); err != nil {
		s.storeError(w, err, "Page not found")
		return
	}
	versions, err := s.deps.Store.Versions(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "")
		return
	}
	if versions == nil {
		versions = []store.Version{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if _, err := s.deps.Store.GetPage(r.Context(), id); err != nil {
		s.storeError(w, err, "Page not found")
		return
	}
	entries, err := s.deps.Store.EditHistory(r.Context(), id, 0)
	if err != nil {
		s.storeError(w, err, "")
		return
	}
	if entries == nil {
		entries = []store.EditHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if _, err := s.deps.Store.GetPage(r.Context(), id); err != nil {
		s.storeError(w, err, "Page not found")
		return
	}

	msg := &store.ChatMessage{
		PageID:  id,
		Role:    store.RoleUser,
		Content: req.Content,
		Status:  store.StatusPending,
		Type:    store.TypeChat,
		ModelID: req.ModelID,
	}
	if err := s.deps.Store.InsertMessage(r.Context(), msg); err != nil {
		s.storeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	msg, err := s.deps.Store.GetMessage(r.Context(), ps.ByName("id"))
	if err != nil {
		s.storeError(w, err, "Message not found")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// handleUpload stores one multipart file as a pending asset. It is analysed
// by the next agent run on the page.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.deps.Blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "file storage is not configured")
		return
	}
	page, err := s.deps.Store.GetPage(r.Context(), ps.ByName("id"))
	if err != nil {
		s.storeError(w, err, "Page not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, consts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	mimeType := uploadType(header.Header.Get("Content-Type"), data)
	assetType := store.AssetDocument
	if strings.HasPrefix(mimeType, "image/") {
		assetType = store.AssetImage
	}

	owner := page.OwnerID
	if owner == "" {
		owner = "anonymous"
	}
	name := uuid.NewString() + path.Ext(header.Filename)
	storagePath := path.Join(owner, page.ID, name)

	url, err := s.deps.Blobs.Put(r.Context(), storagePath, data, mimeType)
	if err != nil {
		s.log.Error("store upload %s: %v", storagePath, err)
		writeError(w, http.StatusInternalServerError, "could not store file")
		return
	}

	asset := &store.Asset{
		PageID:           page.ID,
		OwnerID:          page.OwnerID,
		AssetType:        assetType,
		Status:           store.AssetPending,
		FileName:         name,
		OriginalFileName: header.Filename,
		FileType:         mimeType,
		StoragePath:      storagePath,
		PublicURL:        url,
		FileSizeBytes:    int64(len(data)),
	}
	if err := s.deps.Store.InsertAsset(r.Context(), asset); err != nil {
		s.storeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// uploadType trusts a declared type unless it is missing or generic.
func uploadType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType
		}
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mediaType
}

// handleEvents upgrades to a WebSocket that streams the page's events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if _, err := s.deps.Store.GetPage(r.Context(), id); err != nil {
		s.storeError(w, err, "Page not found")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := s.allowedOrigin(origin)
			return ok
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade for page %s failed: %v", id, err)
		return
	}

	client := NewClient(s.deps.Hub, conn, id)
	if !s.deps.Hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// storeError maps persistence errors to responses. notFound is the message
// for a missing row.
func (s *Server) storeError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		if notFound == "" {
			notFound = "not found"
		}
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	s.log.Error("store: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
