package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/codefionn/hyphertext/internal/logger"
)

// Backend names used in model ids ("<backend>/<model>").
const (
	BackendGroq   = "groq"
	BackendClaude = "claude"
	BackendGemini = "gemini"
)

// DefaultModelID is used when a request names no model.
const DefaultModelID = "groq/llama-3.3-70b"

// ModelSpec describes one routable model.
type ModelSpec struct {
	ID       string `json:"id"`
	Backend  string `json:"backend"`
	Provider string `json:"provider_model"`
	Label    string `json:"label"`
}

// Catalog lists every model the service knows how to reach.
var Catalog = []ModelSpec{
	{ID: "groq/llama-3.3-70b", Backend: BackendGroq, Provider: "llama-3.3-70b-versatile", Label: "Llama 3.3 70B (Groq)"},
	{ID: "groq/llama-3.1-8b", Backend: BackendGroq, Provider: "llama-3.1-8b-instant", Label: "Llama 3.1 8B (Groq)"},
	{ID: "claude/claude-sonnet-4-5", Backend: BackendClaude, Provider: "claude-sonnet-4-5", Label: "Claude Sonnet 4.5"},
	{ID: "claude/claude-haiku-4-5", Backend: BackendClaude, Provider: "claude-haiku-4-5", Label: "Claude Haiku 4.5"},
	{ID: "gemini/gemini-2.5-flash", Backend: BackendGemini, Provider: "gemini-2.5-flash", Label: "Gemini 2.5 Flash"},
}

// Chatter is the single operation the orchestrator needs from the router.
type Chatter interface {
	Chat(ctx context.Context, modelID string, req *CompletionRequest) (*CompletionResponse, error)
}

// Router dispatches chat requests to the backend client registered for a
// model id.
type Router struct {
	mu        sync.RWMutex
	clients   map[string]Client
	specs     map[string]ModelSpec
	defaultID string
	count     TokenCounter
	log       *logger.Logger
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithTokenCounter replaces the tiktoken based usage estimator.
func WithTokenCounter(count TokenCounter) RouterOption {
	return func(r *Router) {
		if count != nil {
			r.count = count
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logger.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRouter creates an empty Router whose fallback model is defaultID.
func NewRouter(defaultID string, opts ...RouterOption) *Router {
	if strings.TrimSpace(defaultID) == "" {
		defaultID = DefaultModelID
	}
	r := &Router{
		clients:   make(map[string]Client),
		specs:     make(map[string]ModelSpec),
		defaultID: defaultID,
		count:     TiktokenCounter,
		log:       logger.Global().WithPrefix("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds spec.ID to client, replacing any earlier binding.
func (r *Router) Register(spec ModelSpec, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[spec.ID] = client
	r.specs[spec.ID] = spec
}

// Resolve maps a requested id to a registered one. An empty id selects the
// default model.
func (r *Router) Resolve(modelID string) (string, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		id = r.defaultID
	}

	r.mu.RLock()
	_, ok := r.clients[id]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return id, nil
}

// Default returns the fallback model id.
func (r *Router) Default() string {
	return r.defaultID
}

// Models returns the registered models in catalog order.
func (r *Router) Models() []ModelSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := make(map[string]int, len(Catalog))
	for i, spec := range Catalog {
		order[spec.ID] = i
	}

	out := make([]ModelSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i].ID]
		oj, jok := order[out[j].ID]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return out[i].ID < out[j].ID
		}
	})
	return out
}

// Chat sends req to the backend registered for modelID. Unknown ids fail
// with ErrUnknownModel before any network call.
func (r *Router) Chat(ctx context.Context, modelID string, req *CompletionRequest) (*CompletionResponse, error) {
	id, err := r.Resolve(modelID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	client := r.clients[id]
	r.mu.RUnlock()

	r.log.Debug("chat model=%s messages=%d tools=%d choice=%s", id, len(req.Messages), len(req.Tools), req.ToolChoice.Mode)

	resp, err := client.CompleteWithRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", id, err)
	}

	if resp.Usage.Total() == 0 {
		resp.Usage = estimateUsage(r.count, req, resp)
	}

	r.log.Debug("chat model=%s stop=%s tool_calls=%d tokens=%d", id, resp.StopReason, len(resp.ToolCalls), resp.Usage.Total())
	return resp, nil
}

// Keys carries the provider credentials NewRouterFromKeys needs.
type Keys struct {
	Groq        string
	GroqBaseURL string
	Anthropic   string
	Google      string
}

// NewRouterFromKeys registers every catalog model whose backend has a key.
// When the configured default is unavailable the first registered model is
// used instead.
func NewRouterFromKeys(ctx context.Context, keys Keys, defaultID string, opts ...RouterOption) (*Router, error) {
	r := NewRouter(defaultID, opts...)

	var google *GoogleGenAIClient
	for _, spec := range Catalog {
		var (
			client Client
			err    error
		)
		switch spec.Backend {
		case BackendGroq:
			if keys.Groq == "" {
				continue
			}
			client, err = NewGroqClient(keys.Groq, keys.GroqBaseURL, spec.Provider)
		case BackendClaude:
			if keys.Anthropic == "" {
				continue
			}
			client, err = NewAnthropicClient(keys.Anthropic, spec.Provider)
		case BackendGemini:
			if keys.Google == "" {
				continue
			}
			if google == nil {
				google, err = NewGoogleAIClient(ctx, keys.Google, spec.Provider)
				client = google
			} else {
				client = &GoogleGenAIClient{client: google.client, modelName: normalizeGoogleModelName(spec.Provider)}
			}
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create %s backend: %w", spec.ID, err)
		}
		r.Register(spec, client)
	}

	models := r.Models()
	if len(models) == 0 {
		return nil, fmt.Errorf("no model backend configured: set at least one of GROQ_API_KEY, ANTHROPIC_API_KEY or GEMINI_API_KEY")
	}
	if _, err := r.Resolve(""); err != nil {
		r.log.Warn("default model %s has no credentials, falling back to %s", r.defaultID, models[0].ID)
		r.defaultID = models[0].ID
	}

	return r, nil
}
