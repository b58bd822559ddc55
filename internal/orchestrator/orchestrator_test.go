package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/hyphertext/internal/events"
	"github.com/codefionn/hyphertext/internal/llm/llmtest"
	"github.com/codefionn/hyphertext/internal/planning"
	"github.com/codefionn/hyphertext/internal/search"
	"github.com/codefionn/hyphertext/internal/store"
	"github.com/codefionn/hyphertext/internal/tools"
)

const existingPage = "<!DOCTYPE html><html><body><h1>Old title</h1><p>Welcome</p></body></html>"

type fixture struct {
	t      *testing.T
	store  *store.MemoryStore
	events *events.Recorder
	page   *store.Page
}

func newFixture(t *testing.T, html string) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	page := &store.Page{OwnerID: "owner", HTMLContent: html}
	require.NoError(t, st.CreatePage(context.Background(), page))
	return &fixture{t: t, store: st, events: &events.Recorder{}, page: page}
}

func (f *fixture) orchestrator(chat *llmtest.Chatter, opts ...Option) *Orchestrator {
	opts = append([]Option{WithPublisher(f.events)}, opts...)
	return New(f.store, chat, opts...)
}

func (f *fixture) request(content string) Request {
	f.t.Helper()
	msg := &store.ChatMessage{
		PageID:  f.page.ID,
		Role:    store.RoleUser,
		Content: content,
		Status:  store.StatusPending,
		Type:    store.TypeChat,
	}
	require.NoError(f.t, f.store.InsertMessage(context.Background(), msg))
	return Request{MessageID: msg.ID, PageID: f.page.ID, Content: content, ModelID: "claude-sonnet-4-5"}
}

func (f *fixture) html() string {
	f.t.Helper()
	page, err := f.store.GetPage(context.Background(), f.page.ID)
	require.NoError(f.t, err)
	return page.HTMLContent
}

func (f *fixture) status(id string) store.MessageStatus {
	f.t.Helper()
	msg, err := f.store.GetMessage(context.Background(), id)
	require.NoError(f.t, err)
	return msg.Status
}

func (f *fixture) lastReply() store.ChatMessage {
	f.t.Helper()
	msgs, err := f.store.ChatHistory(context.Background(), f.page.ID, 100)
	require.NoError(f.t, err)
	require.NotEmpty(f.t, msgs)
	return msgs[len(msgs)-1]
}

func (f *fixture) history() []store.EditHistoryEntry {
	f.t.Helper()
	entries, err := f.store.EditHistory(context.Background(), f.page.ID, 0)
	require.NoError(f.t, err)
	return entries
}

func (f *fixture) versions() []store.Version {
	f.t.Helper()
	versions, err := f.store.Versions(context.Background(), f.page.ID)
	require.NoError(f.t, err)
	return versions
}

func TestRunNewPageFullWrite(t *testing.T) {
	f := newFixture(t, "")
	chat := llmtest.New(
		llmtest.Text(`{"decision": "surgical_edit", "complexity": "moderate", "confidence": 0.4, "needs_clarification": true, "description": "build a bakery landing page"}`),
		llmtest.Calls(llmtest.Call(tools.ToolNameWriteFullFile, map[string]any{
			"html":          "<!DOCTYPE html><html><body><h1>Crumbs</h1></body></html>",
			"summary":       "Built the bakery page.",
			"html_summary":  "Landing page for a bakery.",
			"component_map": []any{map[string]any{"id": "hero", "selector": "h1", "type": "heading", "description": "brand"}},
		})),
	)
	req := f.request("a landing page for my bakery")

	report, err := f.orchestrator(chat).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, planning.DecisionFullRewrite, report.Decision)
	assert.Equal(t, 30, report.TokensUsed)

	page, err := f.store.GetPage(context.Background(), f.page.ID)
	require.NoError(t, err)
	assert.Contains(t, page.HTMLContent, "Crumbs")
	assert.Equal(t, "Landing page for a bakery.", page.HTMLSummary)
	require.Len(t, page.ComponentMap, 1)
	assert.Equal(t, "hero", page.ComponentMap[0].ID)

	assert.Equal(t, store.StatusCompleted, f.status(req.MessageID))
	assert.Equal(t, "Built the bakery page.", f.lastReply().Content)
	assert.Len(t, f.versions(), 1)

	entries := f.history()
	require.Len(t, entries, 1)
	assert.Equal(t, planning.DecisionFullRewrite, entries[0].Decision)
	assert.Equal(t, planning.ComplexityModerate, entries[0].Complexity)
	assert.False(t, entries[0].ClarificationAsked)
	assert.True(t, entries[0].Success)
	require.Len(t, entries[0].Changes, 1)
	assert.Equal(t, tools.ToolNameWriteFullFile, entries[0].Changes[0].Tool)

	assert.Equal(t, []events.Stage{
		events.StageReceived,
		events.StageAssetsProcessed,
		events.StagePlanned,
		events.StageExecuting,
		events.StageRecorded,
	}, f.events.Stages())
}

func TestRunSurgicalPatchAndFinish(t *testing.T) {
	f := newFixture(t, existingPage)
	chat := llmtest.New(
		llmtest.Text(`{"decision": "surgical_edit", "complexity": "simple", "confidence": 0.95, "description": "retitle"}`),
		llmtest.Calls(
			llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "Old title", "new_str": "New title"}),
			llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "Missing", "new_str": "x"}),
		),
		llmtest.Calls(llmtest.Call(tools.ToolNameFinish, map[string]any{"summary": "Renamed the heading."})),
	)
	req := f.request("rename the heading to New title")

	report, err := f.orchestrator(chat).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, planning.DecisionSurgicalEdit, report.Decision)
	assert.Equal(t, 45, report.TokensUsed)
	assert.Contains(t, f.html(), "New title")
	assert.Equal(t, "Renamed the heading.", f.lastReply().Content)

	versions := f.versions()
	require.Len(t, versions, 1)
	assert.Contains(t, versions[0].HTMLSnapshot, "New title")

	entries := f.history()
	require.Len(t, entries, 1)
	assert.Equal(t, planning.DecisionSurgicalEdit, entries[0].Decision)
	assert.Equal(t, []store.ChangeRecord{
		{Tool: tools.ToolNameStrReplace, OldStrPreview: "Old title", Success: true},
		{Tool: tools.ToolNameStrReplace, OldStrPreview: "Missing", Success: false},
	}, entries[0].Changes)

	// The loop sees the current document, not the placeholder.
	system := chat.Requests[1].Messages[0].Content
	assert.Contains(t, system, "Old title")
}

func TestRunUnparseablePlanStillCompletes(t *testing.T) {
	f := newFixture(t, "<html><body><h1>Welcome</h1></body></html>")
	chat := llmtest.New(
		llmtest.Text("not json at all"),
		llmtest.Calls(
			llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "<h1>Welcome</h1>", "new_str": "<h1>Hello</h1>"}),
			llmtest.Call("rename_page", map[string]any{"title": "x"}),
			llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "<h1>Hello</h1>", "new_str": "<h1>Hello, world</h1>"}),
			llmtest.Call(tools.ToolNameFinish, map[string]any{"summary": "Updated the greeting."}),
			llmtest.Call(tools.ToolNameWriteFullFile, map[string]any{"html": "<p>SHOULD NOT</p>", "summary": "s"}),
		),
	)
	req := f.request("say hello world")

	report, err := f.orchestrator(chat).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, planning.DecisionSurgicalEdit, report.Decision)
	assert.Equal(t, 2, chat.Count())
	assert.Equal(t, "<html><body><h1>Hello, world</h1></body></html>", f.html())
	assert.Equal(t, store.StatusCompleted, f.status(req.MessageID))
	assert.Equal(t, "Updated the greeting.", f.lastReply().Content)

	entries := f.history()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, planning.DecisionSurgicalEdit, entries[0].Decision)
	assert.Equal(t, planning.DefaultPlan().Description, entries[0].Plan.Description)
	assert.Equal(t, []store.ChangeRecord{
		{Tool: tools.ToolNameStrReplace, OldStrPreview: "<h1>Welcome</h1>", Success: true},
		{Tool: tools.ToolNameStrReplace, OldStrPreview: "<h1>Hello</h1>", Success: true},
	}, entries[0].Changes)
}

func TestRunClarificationRoundTrip(t *testing.T) {
	f := newFixture(t, existingPage)
	chat := llmtest.New(
		llmtest.Text(`{"decision": "surgical_edit", "confidence": 0.3, "needs_clarification": true, "clarification_question": "Which color should the heading be?", "description": "ambiguous color"}`),
	)
	first := f.request("make it pop")

	report, err := f.orchestrator(chat).Run(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, OutcomeClarification, report.Outcome)
	assert.Equal(t, 1, chat.Count())

	reply := f.lastReply()
	assert.Equal(t, store.TypeClarification, reply.Type)
	assert.Equal(t, "Which color should the heading be?", reply.Content)
	assert.Equal(t, true, reply.Meta["awaiting_clarification"])
	assert.Equal(t, "ambiguous color", reply.Meta["reason"])
	assert.Equal(t, store.StatusCompleted, f.status(first.MessageID))
	assert.Equal(t, existingPage, f.html())

	pending, err := f.store.PendingClarification(context.Background(), f.page.ID)
	require.NoError(t, err)
	assert.Equal(t, first.MessageID, pending.MessageID)

	entries := f.history()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].ClarificationAsked)
	assert.Equal(t, planning.DecisionClarification, entries[0].Decision)
	assert.Empty(t, entries[0].Changes)

	chat = llmtest.New(
		llmtest.Text(`{"decision": "surgical_edit", "confidence": 0.9, "description": "color heading"}`),
		llmtest.Calls(llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "<h1>", "new_str": `<h1 style="color:blue">`})),
		llmtest.Calls(llmtest.Call(tools.ToolNameFinish, map[string]any{})),
	)
	second := f.request("Blue")

	report, err = f.orchestrator(chat).Run(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, tools.DefaultFinishSummary, f.lastReply().Content)
	assert.Contains(t, f.html(), "color:blue")

	planned := chat.Requests[0].Messages[1].Content
	assert.Contains(t, planned, "Earlier you asked: Which color should the heading be?")
	assert.Contains(t, planned, "User answered: Blue")

	_, err = f.store.PendingClarification(context.Background(), f.page.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunAskClarificationTool(t *testing.T) {
	f := newFixture(t, existingPage)
	chat := llmtest.New(
		llmtest.Text(`{"decision": "surgical_edit", "confidence": 0.8, "description": "swap image"}`),
		llmtest.Calls(llmtest.Call(tools.ToolNameAskClarification, map[string]any{"question": "Which image?"})),
	)
	req := f.request("swap the image")

	report, err := f.orchestrator(chat).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeClarification, report.Outcome)

	reply := f.lastReply()
	assert.Equal(t, store.TypeClarification, reply.Type)
	assert.Equal(t, "Which image?", reply.Content)
	assert.NotContains(t, reply.Meta, "reason")
	assert.Empty(t, f.versions())
	assert.True(t, f.history()[0].ClarificationAsked)
}

func TestRunBackendFailure(t *testing.T) {
	f := newFixture(t, existingPage)
	boom := errors.New("provider unavailable")
	chat := llmtest.New(llmtest.Failure(boom))
	req := f.request("change the footer")

	report, err := f.orchestrator(chat).Run(context.Background(), req)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, OutcomeFailed, report.Outcome)

	assert.Equal(t, store.StatusError, f.status(req.MessageID))
	assert.Equal(t, failureApology, f.lastReply().Content)
	assert.Equal(t, existingPage, f.html())

	entries := f.history()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Equal(t, planning.DecisionUnknown, entries[0].Decision)
	assert.Equal(t, "unknown", entries[0].Complexity)
}

func TestRunFailureKeepsAppliedPatches(t *testing.T) {
	f := newFixture(t, existingPage)
	chat := llmtest.New(
		llmtest.Text(`{"decision": "surgical_edit", "confidence": 0.9, "description": "two edits"}`),
		llmtest.Calls(llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "Welcome", "new_str": "Hello"})),
		llmtest.Failure(errors.New("timeout")),
	)
	req := f.request("edit")

	_, err := f.orchestrator(chat).Run(context.Background(), req)
	require.Error(t, err)

	assert.Contains(t, f.html(), "Hello")
	entries := f.history()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Changes, 1)
	assert.True(t, entries[0].Changes[0].Success)
}

func TestRunIterationCeiling(t *testing.T) {
	f := newFixture(t, existingPage)
	search := llmtest.Calls(llmtest.Call(tools.ToolNameWebSearch, map[string]any{"query": "fonts"}))
	chat := llmtest.New(
		llmtest.Text(`{"decision": "surgical_edit", "complexity": "complex", "confidence": 0.9, "description": "research"}`),
		search, search,
	)
	req := f.request("pick a font")

	report, err := f.orchestrator(chat, WithLimits(Limits{MaxIterations: 2, ClarificationThreshold: 0.6})).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, exhaustedSummary, report.Summary)
	assert.Equal(t, 2, report.Iterations)
	assert.Equal(t, 3, chat.Count())
	assert.Len(t, f.versions(), 1)

	entry := f.history()[0]
	assert.Equal(t, planning.DecisionSurgicalEdit, entry.Decision)
	assert.Equal(t, planning.ComplexityComplex, entry.Complexity)
	require.Len(t, entry.WebSearches, 2)
	assert.Equal(t, "fonts", entry.WebSearches[0].Query)
}

type stubSearcher struct {
	queries []string
	err     error
}

func (s *stubSearcher) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return []search.Result{{Title: "Chart.js", Description: "Simple charts", URL: "https://cdn.example/chart.js"}}, nil
}

func (s *stubSearcher) Name() string { return "stub" }

func TestRunPreLoopSearch(t *testing.T) {
	f := newFixture(t, existingPage)
	searcher := &stubSearcher{}
	chat := llmtest.New(
		llmtest.Text(`{"decision": "surgical_edit", "confidence": 0.9, "description": "add chart", "needs_web_search": true, "search_query": "chart.js cdn"}`),
		llmtest.Text(""),
	)
	req := f.request("add a chart")

	report, err := f.orchestrator(chat, WithSearcher(searcher)).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"chart.js cdn"}, searcher.queries)
	assert.Equal(t, textReplySummary, report.Summary)

	system := chat.Requests[1].Messages[0].Content
	assert.Contains(t, system, "WEB SEARCH RESULTS for 'chart.js cdn'")
	assert.Contains(t, system, "https://cdn.example/chart.js")

	entry := f.history()[0]
	require.Len(t, entry.WebSearches, 1)
	assert.Equal(t, "Chart.js", entry.WebSearches[0].Results[0].Title)
}

func TestRunPreLoopSearchFailureIsSkipped(t *testing.T) {
	f := newFixture(t, existingPage)
	searcher := &stubSearcher{err: errors.New("quota")}
	chat := llmtest.New(
		llmtest.Text(`{"confidence": 0.9, "description": "add chart", "needs_web_search": true, "search_query": "chart.js"}`),
		llmtest.Text("Nothing to change."),
	)

	report, err := f.orchestrator(chat, WithSearcher(searcher)).Run(context.Background(), f.request("add a chart"))
	require.NoError(t, err)
	assert.Equal(t, "Nothing to change.", report.Summary)
	assert.NotContains(t, chat.Requests[1].Messages[0].Content, "WEB SEARCH RESULTS")
	assert.Empty(t, f.history()[0].WebSearches)
}

type countingAssets struct {
	calls []string
}

func (c *countingAssets) Process(_ context.Context, pageID, ownerID string) (int, error) {
	c.calls = append(c.calls, pageID+"/"+ownerID)
	return 0, nil
}

func TestRunProcessesAssetsForOwner(t *testing.T) {
	f := newFixture(t, existingPage)
	processor := &countingAssets{}
	chat := llmtest.New(
		llmtest.Text(`{"confidence": 0.9, "description": "noop"}`),
		llmtest.Text("ok"),
	)
	req := f.request("use my logo")
	req.OwnerID = "owner"

	_, err := f.orchestrator(chat, WithAssetProcessor(processor)).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{f.page.ID + "/owner"}, processor.calls)
}

func TestSimpleCreate(t *testing.T) {
	f := newFixture(t, "")
	chat := llmtest.New(
		llmtest.Calls(llmtest.Call(tools.ToolNameWriteFullFile, map[string]any{"html": "<html><body>Fresh</body></html>"})),
	)
	req := f.request("a portfolio")
	req.Agent = AgentSimple

	report, err := f.orchestrator(chat).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, report.Outcome)

	assert.Contains(t, f.html(), "Fresh")
	assert.Equal(t, tools.DefaultWriteSummary, f.lastReply().Content)
	assert.Len(t, f.versions(), 1)
	assert.Empty(t, f.history())

	last := chat.Last()
	assert.Equal(t, tools.ToolNameWriteFullFile, last.ToolChoice.Name)
	assert.Len(t, last.Tools, 1)
}

func TestSimpleCreateEmptyHTML(t *testing.T) {
	f := newFixture(t, "")
	chat := llmtest.New(
		llmtest.Calls(llmtest.Call(tools.ToolNameWriteFullFile, map[string]any{"html": " "})),
	)
	req := f.request("a portfolio")
	req.Agent = AgentSimple

	report, err := f.orchestrator(chat).Run(context.Background(), req)
	require.ErrorIs(t, err, ErrEmptyHTML)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, store.StatusError, f.status(req.MessageID))
	assert.Equal(t, createApology, f.lastReply().Content)
}

func TestSimpleEdit(t *testing.T) {
	f := newFixture(t, existingPage)
	chat := llmtest.New(
		llmtest.Calls(llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "Nope", "new_str": "x"})),
		llmtest.Calls(llmtest.Call(tools.ToolNameStrReplace, map[string]any{"old_str": "Welcome", "new_str": "Hi there"})),
		llmtest.Text(""),
	)
	req := f.request("greet more casually")
	req.Agent = AgentSimple

	report, err := f.orchestrator(chat).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, tools.DefaultFinishSummary, report.Summary)
	assert.Contains(t, f.html(), "Hi there")
	assert.Empty(t, f.history())

	second := chat.Requests[1]
	assert.Equal(t, tools.SimplePatchNotFoundMessage, second.Messages[len(second.Messages)-1].Content)
	assert.Len(t, second.Tools, 2)
}

func TestParseAgent(t *testing.T) {
	a, err := ParseAgent("")
	require.NoError(t, err)
	assert.Equal(t, AgentPlanned, a)

	a, err = ParseAgent("simple")
	require.NoError(t, err)
	assert.Equal(t, AgentSimple, a)

	_, err = ParseAgent("turbo")
	assert.Error(t, err)
}
