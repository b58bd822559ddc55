package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codefionn/hyphertext/internal/assets"
	"github.com/codefionn/hyphertext/internal/config"
	"github.com/codefionn/hyphertext/internal/events"
	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/orchestrator"
	"github.com/codefionn/hyphertext/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

type fakeCatalog struct{}

func (fakeCatalog) Resolve(id string) (string, error) {
	switch id {
	case "":
		return "groq/llama-3.3-70b", nil
	case "groq/llama-3.3-70b", "claude/claude-sonnet-4-5":
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", llm.ErrUnknownModel, id)
}

func (fakeCatalog) Default() string { return "groq/llama-3.3-70b" }

func (fakeCatalog) Models() []llm.ModelSpec {
	return []llm.ModelSpec{llm.Catalog[0], llm.Catalog[2]}
}

type fakeDispatcher struct {
	mu   sync.Mutex
	reqs []orchestrator.Request
	err  error
}

func (d *fakeDispatcher) Submit(req orchestrator.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.reqs = append(d.reqs, req)
	return nil
}

func (d *fakeDispatcher) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDispatcher) requests() []orchestrator.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]orchestrator.Request(nil), d.reqs...)
}

type testServer struct {
	*httptest.Server
	store      *store.MemoryStore
	dispatcher *fakeDispatcher
	hub        *Hub
	page       *store.Page
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := store.NewMemoryStore()
	page := &store.Page{OwnerID: "owner-1"}
	require.NoError(t, st.CreatePage(context.Background(), page))

	blobs, err := assets.NewFileBlobStore(t.TempDir(), "http://localhost/files")
	require.NoError(t, err)

	hub := NewHub()
	go hub.Run()

	dispatcher := &fakeDispatcher{}
	srv := NewServer(config.ServerConfig{AllowedOrigins: []string{"https://app.example"}}, Deps{
		Store:      st,
		Models:     fakeCatalog{},
		Dispatcher: dispatcher,
		Blobs:      blobs,
		FilesDir:   blobs.Dir(),
		Hub:        hub,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		hub.Stop()
		hub.Wait()
	})
	return &testServer{Server: ts, store: st, dispatcher: dispatcher, hub: hub, page: page}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealthAndModels(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","service":"hyphertext-agent"}`, string(body))

	resp, body = ts.do(t, http.MethodGet, "/models", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var models ModelsResponse
	require.NoError(t, json.Unmarshal(body, &models))
	assert.Equal(t, "groq/llama-3.3-70b", models.Default)
	assert.Len(t, models.Models, 2)
}

func TestAgentRun(t *testing.T) {
	ts := newTestServer(t)

	t.Run("accepted", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodPost, "/agent/run", RunRequest{MessageID: "m1", PageID: ts.page.ID, Content: "hi"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status":"accepted","model":"groq/llama-3.3-70b"}`, string(body))

		reqs := ts.dispatcher.requests()
		require.Len(t, reqs, 1)
		got := reqs[0]
		assert.Equal(t, "owner-1", got.OwnerID)
		assert.Equal(t, orchestrator.AgentPlanned, got.Agent)
	})

	t.Run("simple agent", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPost, "/agent/run", RunRequest{MessageID: "m2", PageID: ts.page.ID, ModelID: "claude/claude-sonnet-4-5", Agent: "simple"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		reqs := ts.dispatcher.requests()
		last := reqs[len(reqs)-1]
		assert.Equal(t, orchestrator.AgentSimple, last.Agent)
		assert.Equal(t, "claude/claude-sonnet-4-5", last.ModelID)
	})

	t.Run("missing page", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodPost, "/agent/run", RunRequest{MessageID: "m", PageID: "nope", ModelID: "bogus"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, string(body), "Page not found")
	})

	t.Run("unknown model", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPost, "/agent/run", RunRequest{MessageID: "m", PageID: ts.page.ID, ModelID: "bogus"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown agent", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPost, "/agent/run", RunRequest{MessageID: "m", PageID: ts.page.ID, Agent: "turbo"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("dispatch failure", func(t *testing.T) {
		ts.dispatcher.setErr(errors.New("stopped"))
		defer ts.dispatcher.setErr(nil)
		resp, _ := ts.do(t, http.MethodPost, "/agent/run", RunRequest{MessageID: "m", PageID: ts.page.ID})
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestPageEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/pages", CreatePageRequest{OwnerID: "o", Title: "Launch"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var page store.Page
	require.NoError(t, json.Unmarshal(body, &page))
	assert.NotEmpty(t, page.ID)
	assert.Contains(t, page.HTMLContent, "describe what you want to build")

	resp, _ = ts.do(t, http.MethodGet, "/pages/"+page.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/pages/"+page.ID+"/versions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = ts.do(t, http.MethodGet, "/pages/"+page.ID+"/history", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = ts.do(t, http.MethodPost, "/pages/"+page.ID+"/messages", PostMessageRequest{Content: "add a footer"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg store.ChatMessage
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, store.StatusPending, msg.Status)

	resp, body = ts.do(t, http.MethodGet, "/messages/"+msg.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "add a footer")

	resp, _ = ts.do(t, http.MethodGet, "/messages/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/pages/missing/history", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/pages/"+page.ID+"/messages", PostMessageRequest{Content: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadAndServeFile(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("menu: bread, cake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := ts.Client().Post(ts.URL+"/pages/"+ts.page.ID+"/assets", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var asset store.Asset
	require.NoError(t, json.Unmarshal(body, &asset))
	assert.Equal(t, store.AssetDocument, asset.AssetType)
	assert.Equal(t, store.AssetPending, asset.Status)
	assert.Equal(t, "text/plain", asset.FileType)
	assert.True(t, strings.HasPrefix(asset.StoragePath, "owner-1/"+ts.page.ID+"/"))

	pending, err := ts.store.AssetsByStatus(context.Background(), ts.page.ID, store.AssetPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	resp, data := ts.do(t, http.MethodGet, "/files/"+asset.StoragePath, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "menu: bread, cake", string(data))
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/agent/run", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/pages/" + ts.page.ID + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.hub.ClientCount(ts.page.ID) == 1 }, time.Second, 5*time.Millisecond)

	ts.hub.Publish(events.Event{Type: events.TypeStage, PageID: "other", Stage: events.StagePlanned})
	ts.hub.Publish(events.Event{Type: events.TypeStatus, PageID: ts.page.ID, MessageID: "m1", Status: "completed"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.TypeStatus, ev.Type)
	assert.Equal(t, "m1", ev.MessageID)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return ts.hub.ClientCount(ts.page.ID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestEventStreamMissingPage(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/pages/missing/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
