package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/search"
)

type stubSearcher struct {
	results []search.Result
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string, n int) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > n {
		return s.results[:n], nil
	}
	return s.results, nil
}

func (s *stubSearcher) Name() string { return "stub" }

const page = "<html><body><h1>Old</h1></body></html>"

func call(name string, args map[string]any) llm.ToolCall {
	return llm.ToolCall{ID: "call_1", Name: name, Arguments: args}
}

func TestExecuteStrReplace(t *testing.T) {
	exec := NewExecutor(NewDocumentRegistry(), nil)

	res := exec.Execute(context.Background(), page, call(ToolNameStrReplace, map[string]any{
		"old_str": "<h1>Old</h1>",
		"new_str": "<h1>New</h1>",
	}))
	require.NoError(t, res.Err)
	assert.True(t, res.Changed)
	assert.False(t, res.Terminal)
	assert.Equal(t, PatchAppliedMessage, res.Output)
	assert.Equal(t, "<html><body><h1>New</h1></body></html>", res.HTML)
	assert.Equal(t, "call_1", res.CallID)
}

func TestExecuteStrReplaceMiss(t *testing.T) {
	exec := NewExecutor(NewDocumentRegistry(), nil)
	res := exec.Execute(context.Background(), page, call(ToolNameStrReplace, map[string]any{
		"old_str": "<h2>Old</h2>",
		"new_str": "x",
	}))
	assert.ErrorIs(t, res.Err, ErrNotFound)
	assert.False(t, res.Changed)
	assert.Equal(t, page, res.HTML)
	assert.Equal(t, PatchNotFoundMessage, res.Output)

	simple := NewExecutor(NewPatchRegistry(), nil, WithNotFoundMessage(SimplePatchNotFoundMessage))
	res = simple.Execute(context.Background(), page, call(ToolNameStrReplace, map[string]any{"old_str": "nope", "new_str": ""}))
	assert.Equal(t, SimplePatchNotFoundMessage, res.Output)
}

func TestExecuteFullWrite(t *testing.T) {
	exec := NewExecutor(NewDocumentRegistry(), nil)

	res := exec.Execute(context.Background(), page, call(ToolNameWriteFullFile, map[string]any{"html": "  "}))
	assert.ErrorIs(t, res.Err, ErrEmptyContent)
	assert.Equal(t, EmptyContentMessage, res.Output)
	assert.False(t, res.Terminal)
	assert.Equal(t, page, res.HTML)

	res = exec.Execute(context.Background(), page, call(ToolNameWriteFullFile, map[string]any{"html": "<p>fresh</p>"}))
	require.NoError(t, res.Err)
	assert.True(t, res.Terminal)
	assert.True(t, res.Changed)
	assert.Equal(t, "<p>fresh</p>", res.HTML)
	fw := res.Invocation.(FullWrite)
	assert.Equal(t, DefaultWriteSummary, fw.Summary)
}

func TestExecuteClarifyAndFinishDefaults(t *testing.T) {
	exec := NewExecutor(NewDocumentRegistry(), nil)

	res := exec.Execute(context.Background(), page, call(ToolNameAskClarification, map[string]any{}))
	assert.True(t, res.Terminal)
	assert.Equal(t, DefaultQuestion, res.Invocation.(Clarify).Question)

	res = exec.Execute(context.Background(), page, call(ToolNameFinish, map[string]any{}))
	assert.True(t, res.Terminal)
	assert.Equal(t, DefaultFinishSummary, res.Invocation.(Finish).Summary)
}

func TestExecuteWebSearch(t *testing.T) {
	searcher := &stubSearcher{results: []search.Result{{Title: "Chart.js", Description: "charts", URL: "https://cdn.example/chart.js"}}}
	exec := NewExecutor(NewDocumentRegistry(), searcher)

	res := exec.Execute(context.Background(), page, call(ToolNameWebSearch, map[string]any{"query": "chart.js cdn", "reason": "need url"}))
	require.NoError(t, res.Err)
	assert.False(t, res.Terminal)
	assert.Equal(t, []string{"chart.js cdn"}, searcher.queries)
	assert.Contains(t, res.Output, "1. Chart.js")
	assert.Len(t, res.SearchResults, 1)
}

func TestExecuteWebSearchFailureIsNonFatal(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("rate limited")}
	exec := NewExecutor(NewDocumentRegistry(), searcher)

	res := exec.Execute(context.Background(), page, call(ToolNameWebSearch, map[string]any{"query": "x"}))
	assert.Error(t, res.Err)
	assert.False(t, res.Terminal)
	assert.Equal(t, "ERROR: web search failed: rate limited", res.Output)
}

func TestExecuteRejectsToolsOutsideRegistry(t *testing.T) {
	exec := NewExecutor(NewPatchRegistry(), nil)

	res := exec.Execute(context.Background(), page, call(ToolNameWriteFullFile, map[string]any{"html": "<p/>"}))
	assert.ErrorIs(t, res.Err, ErrUnknownTool)
	assert.Equal(t, "ERROR: unknown tool write_full_file", res.Output)
	assert.Equal(t, page, res.HTML)
}

func TestExecuteUndecodableArguments(t *testing.T) {
	exec := NewExecutor(NewDocumentRegistry(), nil)

	res := exec.Execute(context.Background(), page, llm.ToolCall{ID: "c", Name: ToolNameStrReplace})
	assert.ErrorIs(t, res.Err, ErrInvalidArguments)
	assert.Contains(t, res.Output, "ERROR: invalid arguments for str_replace")
	assert.Nil(t, res.Invocation)
}
