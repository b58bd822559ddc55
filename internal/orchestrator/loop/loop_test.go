package loop

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/llm/llmtest"
	"github.com/codefionn/hyphertext/internal/tools"
)

const page = "<html><body><h1>Old title</h1><p>Body</p></body></html>"

func newLoop(t *testing.T, chat llm.Chatter, limit int, onResult ResultHandler) (*OrchestratorLoop, *ToolIteration, *Session) {
	t.Helper()
	session := NewSession("system", "user")
	it := NewToolIteration(&Dependencies{
		Chat:     chat,
		Executor: tools.NewExecutor(tools.NewDocumentRegistry(), nil),
		Session:  session,
		OnResult: onResult,
	}, Request{ModelID: "m", ToolChoice: llm.ToolChoice{Mode: llm.ToolChoiceAuto}, Temperature: 0.3, MaxTokens: 8000}, page)
	l, err := NewBuilder().WithMaxIterations(limit).WithIteration(it).Build()
	require.NoError(t, err)
	return l, it, session
}

func TestLoopPatchThenFinish(t *testing.T) {
	chat := llmtest.New(
		llmtest.Calls(
			llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "Old title", "new_str": "New title"}),
			llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "missing", "new_str": "x"}),
		),
		llmtest.Calls(llmtest.Call(tools.ToolNameFinish, map[string]any{"summary": "Retitled."})),
	)
	var seen []tools.Result
	l, it, session := newLoop(t, chat, 15, func(_ context.Context, res tools.Result) error {
		seen = append(seen, res)
		return nil
	})

	result, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, BreakTerminal, result.Reason)
	assert.False(t, result.Exhausted())
	require.NotNil(t, result.Terminal)
	assert.Equal(t, tools.ToolNameFinish, result.Terminal.Tool)
	assert.Equal(t, "Retitled.", result.Terminal.Output)
	assert.Equal(t, 2, result.IterationsExecuted)
	assert.Equal(t, 30, result.TokensUsed)
	assert.Contains(t, it.HTML(), "New title")

	require.Len(t, seen, 3)
	assert.True(t, seen[0].Changed)
	assert.ErrorIs(t, seen[1].Err, tools.ErrNotFound)

	// system, user, assistant with two calls, two tool results
	msgs := session.GetMessages()
	require.Len(t, msgs, 5)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Len(t, msgs[2].ToolCalls, 2)
	assert.Equal(t, llm.RoleTool, msgs[3].Role)
	assert.Equal(t, tools.PatchAppliedMessage, msgs[3].Content)
	assert.Equal(t, tools.PatchNotFoundMessage, msgs[4].Content)
	assert.Equal(t, tools.ToolNameStrReplace, msgs[4].ToolName)

	second := chat.Requests[1]
	assert.Len(t, second.Messages, 5)
	assert.Len(t, second.Tools, 5)
	assert.Equal(t, llm.ToolChoiceAuto, second.ToolChoice.Mode)
}

func TestLoopCallsChainWithinTurn(t *testing.T) {
	chat := llmtest.New(llmtest.Calls(
		llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "<h1>Old title</h1>", "new_str": "<h1>Hello</h1>"}),
		llmtest.Call("delete_everything", map[string]any{}),
		llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "<h1>Hello</h1>", "new_str": "<h1>Hello, world</h1>"}),
		llmtest.Call(tools.ToolNameFinish, map[string]any{"summary": "Greeted."}),
		llmtest.Call(tools.ToolNameWriteFullFile, map[string]any{"html": "<p>discarded</p>", "summary": "s"}),
	))
	var seen []string
	l, it, _ := newLoop(t, chat, 15, func(_ context.Context, res tools.Result) error {
		seen = append(seen, res.Tool)
		return nil
	})

	result, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, BreakTerminal, result.Reason)
	require.NotNil(t, result.Terminal)
	assert.Equal(t, tools.ToolNameFinish, result.Terminal.Tool)
	assert.Equal(t, 1, chat.Count())
	assert.Equal(t, "<html><body><h1>Hello, world</h1><p>Body</p></body></html>", it.HTML())
	assert.Equal(t, []string{
		tools.ToolNameStrReplace,
		"delete_everything",
		tools.ToolNameStrReplace,
		tools.ToolNameFinish,
	}, seen)
}

func TestLoopTerminalWriteDiscardsLaterCalls(t *testing.T) {
	chat := llmtest.New(llmtest.Calls(
		llmtest.Call(tools.ToolNameWriteFullFile, map[string]any{"html": "<p>fresh</p>", "summary": "Rewrote."}),
		llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "fresh", "new_str": "stale"}),
	))
	var seen int
	l, it, _ := newLoop(t, chat, 15, func(context.Context, tools.Result) error {
		seen++
		return nil
	})

	result, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BreakTerminal, result.Reason)
	assert.Equal(t, tools.ToolNameWriteFullFile, result.Terminal.Tool)
	assert.Equal(t, "<p>fresh</p>", it.HTML())
	assert.Equal(t, 1, seen)
}

func TestLoopTextReplyBreaks(t *testing.T) {
	chat := llmtest.New(llmtest.Text("All set."))
	l, _, _ := newLoop(t, chat, 15, nil)

	result, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Break, result.Reason)
	assert.True(t, result.Exhausted())
	assert.Equal(t, "All set.", result.FinalContent)
	assert.Nil(t, result.Terminal)
}

func TestLoopStopsAtIterationLimit(t *testing.T) {
	search := llmtest.Calls(llmtest.Call(tools.ToolNameWebSearch, map[string]any{"query": "cdn"}))
	chat := llmtest.New(search, search, search, search)
	l, _, session := newLoop(t, chat, 3, nil)

	result, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BreakMaxIterations, result.Reason)
	assert.True(t, result.Exhausted())
	assert.Equal(t, 3, chat.Count())
	assert.Equal(t, 3, result.IterationsExecuted)

	// Search without a provider still answers the model.
	msgs := session.GetMessages()
	assert.Contains(t, msgs[len(msgs)-1].Content, "Search unavailable")
	assert.Contains(t, msgs[len(msgs)-1].Content, "Web search is not configured.")
}

func TestLoopEmptyWriteIsNotTerminal(t *testing.T) {
	chat := llmtest.New(
		llmtest.Calls(llmtest.Call(tools.ToolNameWriteFullFile, map[string]any{"html": "  ", "summary": "s"})),
		llmtest.Calls(llmtest.Call(tools.ToolNameWriteFullFile, map[string]any{"html": "<p>new</p>", "summary": "s"})),
	)
	l, it, session := newLoop(t, chat, 15, nil)

	result, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BreakTerminal, result.Reason)
	assert.Equal(t, tools.ToolNameWriteFullFile, result.Terminal.Tool)
	assert.Equal(t, "<p>new</p>", it.HTML())
	assert.Equal(t, tools.EmptyContentMessage, session.GetMessages()[3].Content)
}

func TestLoopPropagatesErrors(t *testing.T) {
	boom := errors.New("backend down")

	t.Run("model", func(t *testing.T) {
		l, _, _ := newLoop(t, llmtest.New(llmtest.Failure(boom)), 15, nil)
		result, err := l.Run(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Equal(t, Error, result.Reason)
	})

	t.Run("handler", func(t *testing.T) {
		chat := llmtest.New(llmtest.Calls(llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "Body", "new_str": "x"})))
		l, _, _ := newLoop(t, chat, 15, func(context.Context, tools.Result) error { return boom })
		_, err := l.Run(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		l, _, _ := newLoop(t, llmtest.New(), 15, nil)
		result, err := l.Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, Error, result.Reason)
	})
}

func TestBuilderValidation(t *testing.T) {
	_, err := NewBuilder().Build()
	assert.Error(t, err)

	_, err = NewBuilder().WithMaxIterations(0).WithIteration(&ToolIteration{}).Build()
	assert.Error(t, err)
}

func TestDefaultState(t *testing.T) {
	s := NewDefaultState(&Config{MaxIterations: 2})
	assert.False(t, s.HasReachedLimit())
	s.Increment()
	s.Increment()
	assert.True(t, s.HasReachedLimit())
	assert.Equal(t, 7, s.AddTokens(7))
	assert.Equal(t, 7, s.TokensUsed())
	assert.Equal(t, "break_terminal", BreakTerminal.String())
}
