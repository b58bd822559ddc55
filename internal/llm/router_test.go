package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	name     string
	response *CompletionResponse
	err      error
	calls    int
	last     *CompletionRequest
}

func (f *fakeClient) CompleteWithRequest(_ context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.response
	return &resp, nil
}

func (f *fakeClient) GetModelName() string { return f.name }

func wordCounter(text string) int {
	if text == "" {
		return 0
	}
	return len(text)
}

func TestRouterResolve(t *testing.T) {
	r := NewRouter("groq/llama-3.3-70b")
	r.Register(Catalog[0], &fakeClient{name: "llama-3.3-70b-versatile"})

	id, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "groq/llama-3.3-70b", id)

	_, err = r.Resolve("openai/gpt-9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestRouterChatUnknownModelMakesNoCall(t *testing.T) {
	fake := &fakeClient{response: &CompletionResponse{}}
	r := NewRouter(DefaultModelID)
	r.Register(Catalog[0], fake)

	_, err := r.Chat(context.Background(), "claude/claude-sonnet-4-5", &CompletionRequest{})
	require.ErrorIs(t, err, ErrUnknownModel)
	assert.Zero(t, fake.calls)
}

func TestRouterChatEstimatesMissingUsage(t *testing.T) {
	fake := &fakeClient{response: &CompletionResponse{Content: "done"}}
	r := NewRouter(DefaultModelID, WithTokenCounter(wordCounter))
	r.Register(Catalog[0], fake)

	resp, err := r.Chat(context.Background(), "", &CompletionRequest{
		SystemPrompt: "sys",
		Messages:     []*Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Usage.Estimated)
	assert.Equal(t, 3+5+perMessageOverhead, resp.Usage.InputTokens)
	assert.Equal(t, 4, resp.Usage.OutputTokens)
}

func TestRouterChatKeepsReportedUsage(t *testing.T) {
	fake := &fakeClient{response: &CompletionResponse{Usage: Usage{InputTokens: 10, OutputTokens: 2}}}
	r := NewRouter(DefaultModelID, WithTokenCounter(wordCounter))
	r.Register(Catalog[0], fake)

	resp, err := r.Chat(context.Background(), DefaultModelID, &CompletionRequest{})
	require.NoError(t, err)
	assert.False(t, resp.Usage.Estimated)
	assert.Equal(t, 12, resp.Usage.Total())
}

func TestRouterChatWrapsBackendError(t *testing.T) {
	boom := errors.New("rate limited")
	r := NewRouter(DefaultModelID)
	r.Register(Catalog[0], &fakeClient{err: boom})

	_, err := r.Chat(context.Background(), "", &CompletionRequest{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), DefaultModelID)
}

func TestRouterModelsInCatalogOrder(t *testing.T) {
	r := NewRouter(DefaultModelID)
	r.Register(Catalog[3], &fakeClient{})
	r.Register(Catalog[0], &fakeClient{})
	r.Register(Catalog[2], &fakeClient{})

	models := r.Models()
	require.Len(t, models, 3)
	assert.Equal(t, []string{Catalog[0].ID, Catalog[2].ID, Catalog[3].ID},
		[]string{models[0].ID, models[1].ID, models[2].ID})
}

func TestNewRouterFromKeysFallsBackToAvailableDefault(t *testing.T) {
	r, err := NewRouterFromKeys(context.Background(), Keys{Anthropic: "sk-ant-test"}, DefaultModelID)
	require.NoError(t, err)

	assert.Equal(t, "claude/claude-sonnet-4-5", r.Default())
	assert.Len(t, r.Models(), 2)
}

func TestNewRouterFromKeysRequiresABackend(t *testing.T) {
	_, err := NewRouterFromKeys(context.Background(), Keys{}, DefaultModelID)
	require.Error(t, err)
}

func TestEstimateTokenCount(t *testing.T) {
	assert.Equal(t, 0, EstimateTokenCount(""))
	assert.Equal(t, 1, EstimateTokenCount("abc"))
	assert.Equal(t, 2, EstimateTokenCount("abcdefgh"))
}
