package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/codefionn/hyphertext/internal/assets"
	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/document"
	"github.com/codefionn/hyphertext/internal/events"
	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/orchestrator/loop"
	"github.com/codefionn/hyphertext/internal/planning"
	"github.com/codefionn/hyphertext/internal/prompt"
	"github.com/codefionn/hyphertext/internal/search"
	"github.com/codefionn/hyphertext/internal/store"
	"github.com/codefionn/hyphertext/internal/tools"
)

const (
	defaultClarifyQuestion = "Could you clarify what you would like?"
	textReplySummary       = "Changes applied."
	exhaustedSummary       = "Done."
	failureApology         = "Something went wrong. Please try again."
)

// run is the state of one planned request.
type run struct {
	o   *Orchestrator
	req Request

	plan       planning.Plan
	tokens     int
	iterations int
	changes    []store.ChangeRecord
	searches   []store.SearchRecord
}

func newRun(o *Orchestrator, req Request) *run {
	return &run{o: o, req: req, changes: []store.ChangeRecord{}, searches: []store.SearchRecord{}}
}

func (r *run) execute(ctx context.Context) (*Report, error) {
	o, req := r.o, r.req

	o.stage(req, events.StageReceived)
	if err := o.setStatus(ctx, req, store.StatusProcessing); err != nil {
		return nil, err
	}

	if req.OwnerID != "" && o.assets != nil {
		n, err := o.assets.Process(ctx, req.PageID, req.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("process assets: %w", err)
		}
		o.log.Debug("processed %d assets for page %s", n, req.PageID)
	}
	o.stage(req, events.StageAssetsProcessed)

	pageAssets, err := o.store.ListAssets(ctx, req.PageID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	assetContext := assets.BuildContext(pageAssets)

	page, err := o.store.GetPage(ctx, req.PageID)
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}
	history, err := o.store.EditHistory(ctx, req.PageID, consts.EditHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load edit history: %w", err)
	}
	chat, err := o.store.ChatHistory(ctx, req.PageID, consts.ChatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}

	userPrompt := req.Content
	pending, err := o.store.PendingClarification(ctx, req.PageID)
	switch {
	case err == nil:
		if err := o.store.ResolveClarification(ctx, pending.ID, req.Content); err != nil {
			return nil, fmt.Errorf("resolve clarification: %w", err)
		}
		userPrompt = prompt.ClarificationFollowUp(pending.Question, req.Content)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("load pending clarification: %w", err)
	}

	isNew := document.IsPlaceholder(page.HTMLContent)

	plan, usage, err := o.planner.Plan(ctx, req.ModelID, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	r.tokens += usage.Total()
	if isNew {
		plan.Decision = planning.DecisionFullRewrite
		plan.NeedsClarification = false
	}
	r.plan = plan
	o.stage(req, events.StagePlanned)

	if plan.NeedsClarification && plan.Confidence < o.limits.ClarificationThreshold {
		question := plan.ClarificationQuestion
		if question == "" {
			question = defaultClarifyQuestion
		}
		return r.clarify(ctx, question, map[string]any{"awaiting_clarification": true, "reason": plan.Description})
	}

	if err := o.reply(ctx, req, plan.Description, store.TypeThinking, planMeta(plan)); err != nil {
		return nil, err
	}

	searchContext := r.preSearch(ctx)

	system := prompt.WithExtras(
		prompt.BuildSystemPrompt(promptContext(page, history, chat)),
		assetContext,
		searchContext,
	)

	o.stage(req, events.StageExecuting)
	executor := tools.NewExecutor(tools.NewDocumentRegistry(), o.searcher, tools.WithExecutorLogger(o.log))
	iteration := loop.NewToolIteration(&loop.Dependencies{
		Chat:     o.chat,
		Executor: executor,
		Session:  loop.NewSession(system, userPrompt),
		OnResult: r.onResult,
	}, loop.Request{
		ModelID:     req.ModelID,
		ToolChoice:  llm.ToolChoice{Mode: llm.ToolChoiceAuto},
		Temperature: consts.LoopTemperature,
		MaxTokens:   consts.LoopMaxTokens,
	}, page.HTMLContent)

	l, err := loop.NewBuilder().
		WithMaxIterations(o.limits.MaxIterations).
		WithIteration(iteration).
		Build()
	if err != nil {
		return nil, err
	}

	result, err := l.Run(ctx)
	if result != nil {
		r.tokens += result.TokensUsed
		r.iterations = result.IterationsExecuted
	}
	if err != nil {
		return nil, err
	}

	if result.Reason == loop.BreakTerminal && result.Terminal != nil {
		switch inv := result.Terminal.Invocation.(type) {
		case tools.FullWrite:
			return r.fullWrite(ctx, inv)
		case tools.Clarify:
			return r.clarify(ctx, inv.Question, map[string]any{"awaiting_clarification": true})
		case tools.Finish:
			return r.finish(ctx, iteration.HTML(), planning.DecisionSurgicalEdit, inv.Summary)
		}
	}

	summary := exhaustedSummary
	if result.Reason == loop.Break {
		summary = result.FinalContent
		if summary == "" {
			summary = textReplySummary
		}
	}
	decision := plan.Decision
	if decision == "" {
		decision = planning.DecisionSurgicalEdit
	}
	return r.finish(ctx, iteration.HTML(), decision, summary)
}

// preSearch runs the search the plan asked for and renders its results for
// the system prompt. Failures only cost the extra context.
func (r *run) preSearch(ctx context.Context) string {
	if !r.plan.NeedsWebSearch || r.plan.SearchQuery == "" || r.o.searcher == nil {
		return ""
	}
	query := r.plan.SearchQuery
	results, err := r.o.searcher.Search(ctx, query, consts.SearchResultCount)
	if err != nil {
		r.o.log.Warn("pre-loop search %q failed: %v", query, err)
		return ""
	}
	r.searches = append(r.searches, store.SearchRecord{Query: query, Results: nonNilResults(results)})
	return prompt.SearchContext(query, search.FormatResults(results))
}

// onResult persists patches as they land and keeps the changes log.
func (r *run) onResult(ctx context.Context, res tools.Result) error {
	r.o.publish(events.Event{Type: events.TypeTool, PageID: r.req.PageID, MessageID: r.req.MessageID, Tool: res.Tool, Content: res.Output})

	switch inv := res.Invocation.(type) {
	case tools.Patch:
		if res.Changed {
			if err := r.o.saveHTML(ctx, r.req, res.HTML); err != nil {
				return err
			}
		}
		r.changes = append(r.changes, store.ChangeRecord{
			Tool:          tools.ToolNameStrReplace,
			OldStrPreview: preview(inv.OldStr, consts.ChangePreviewChars),
			Success:       res.Changed,
		})
	case tools.Search:
		r.searches = append(r.searches, store.SearchRecord{Query: inv.Query, Results: nonNilResults(res.SearchResults)})
	}
	return nil
}

func (r *run) fullWrite(ctx context.Context, inv tools.FullWrite) (*Report, error) {
	o, req := r.o, r.req
	if err := o.saveHTML(ctx, req, inv.HTML); err != nil {
		return nil, err
	}
	if inv.DocumentSummary != "" {
		if err := o.store.UpdatePageSummary(ctx, req.PageID, inv.DocumentSummary, inv.ComponentMap); err != nil {
			return nil, fmt.Errorf("update page summary: %w", err)
		}
	}
	r.changes = append(r.changes, store.ChangeRecord{Tool: tools.ToolNameWriteFullFile, Summary: inv.Summary, Success: true})

	if err := o.complete(ctx, req, inv.HTML, inv.Summary); err != nil {
		return nil, err
	}
	if err := r.record(ctx, r.plan.ComplexityOr(planning.ComplexityModerate), planning.DecisionFullRewrite, false, true); err != nil {
		return nil, err
	}
	return r.report(OutcomeCompleted, planning.DecisionFullRewrite, inv.Summary), nil
}

func (r *run) finish(ctx context.Context, html, decision, summary string) (*Report, error) {
	if err := r.o.complete(ctx, r.req, html, summary); err != nil {
		return nil, err
	}
	if err := r.record(ctx, r.plan.ComplexityOr(planning.ComplexitySimple), decision, false, true); err != nil {
		return nil, err
	}
	return r.report(OutcomeCompleted, decision, summary), nil
}

// clarify opens a clarification thread and ends the request. The next
// message on the page answers it.
func (r *run) clarify(ctx context.Context, question string, meta map[string]any) (*Report, error) {
	o, req := r.o, r.req
	o.stage(req, events.StageClarifying)

	thread := &store.Clarification{PageID: req.PageID, MessageID: req.MessageID, Question: question}
	if err := o.store.InsertClarification(ctx, thread); err != nil {
		return nil, fmt.Errorf("insert clarification: %w", err)
	}
	if err := o.setStatus(ctx, req, store.StatusCompleted); err != nil {
		return nil, err
	}
	if err := o.reply(ctx, req, question, store.TypeClarification, meta); err != nil {
		return nil, err
	}
	r.changes = []store.ChangeRecord{}
	if err := r.record(ctx, r.plan.ComplexityOr(planning.ComplexitySimple), planning.DecisionClarification, true, true); err != nil {
		return nil, err
	}
	return r.report(OutcomeClarification, planning.DecisionClarification, question), nil
}

// fail records a failed request. Bookkeeping errors are only logged.
func (r *run) fail(ctx context.Context, cause error) *Report {
	ctx = context.WithoutCancel(ctx)
	r.o.failRequest(ctx, r.req, failureApology)
	if err := r.record(ctx, planning.DecisionUnknown, planning.DecisionUnknown, false, false); err != nil {
		r.o.log.Error("record failed message %s: %v", r.req.MessageID, err)
	}
	return r.report(OutcomeFailed, planning.DecisionUnknown, cause.Error())
}

func (r *run) record(ctx context.Context, complexity, decision string, clarificationAsked, success bool) error {
	r.o.stage(r.req, events.StageRecorded)
	entry := &store.EditHistoryEntry{
		PageID:             r.req.PageID,
		MessageID:          r.req.MessageID,
		Complexity:         complexity,
		Decision:           decision,
		Plan:               r.plan,
		Changes:            r.changes,
		ClarificationAsked: clarificationAsked,
		WebSearches:        r.searches,
		ModelID:            r.req.ModelID,
		TokensUsed:         r.tokens,
		Success:            success,
	}
	if err := r.o.store.InsertEditHistory(ctx, entry); err != nil {
		return fmt.Errorf("insert edit history: %w", err)
	}
	return nil
}

func (r *run) report(outcome Outcome, decision, summary string) *Report {
	return &Report{Outcome: outcome, Decision: decision, Summary: summary, TokensUsed: r.tokens, Iterations: r.iterations}
}

func promptContext(page *store.Page, history []store.EditHistoryEntry, chat []store.ChatMessage) prompt.Context {
	c := prompt.Context{
		HTML:       page.HTMLContent,
		Summary:    page.HTMLSummary,
		Components: page.ComponentMap,
	}
	for _, h := range history {
		c.EditHistory = append(c.EditHistory, prompt.HistoryItem{
			Complexity:  h.Complexity,
			Decision:    h.Decision,
			Description: h.Plan.Description,
			Success:     h.Success,
		})
	}
	for _, m := range chat {
		c.ChatHistory = append(c.ChatHistory, prompt.ChatItem{Role: m.Role, Content: m.Content})
	}
	return c
}

// planMeta flattens a plan into message metadata.
func planMeta(plan planning.Plan) map[string]any {
	meta := map[string]any{}
	if err := mapstructure.Decode(plan, &meta); err != nil {
		return map[string]any{"description": plan.Description}
	}
	return meta
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func nonNilResults(results []search.Result) []search.Result {
	if results == nil {
		return []search.Result{}
	}
	return results
}
