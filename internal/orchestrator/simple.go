package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/document"
	"github.com/codefionn/hyphertext/internal/events"
	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/orchestrator/loop"
	"github.com/codefionn/hyphertext/internal/planning"
	"github.com/codefionn/hyphertext/internal/prompt"
	"github.com/codefionn/hyphertext/internal/store"
	"github.com/codefionn/hyphertext/internal/tools"
)

var (
	// ErrNoWrite is returned when the create call produced no write.
	ErrNoWrite = errors.New("agent did not call write_full_file")
	// ErrEmptyHTML is returned when the create call wrote nothing.
	ErrEmptyHTML = errors.New("agent returned empty HTML")
)

const (
	createApology = "Something went wrong while generating the page. Please try again."
	editApology   = "Something went wrong while editing. Please try again."
)

// runSimple skips planning. Placeholder pages are generated in one forced
// write and every other page is edited with patches. No edit history is
// recorded.
func (o *Orchestrator) runSimple(ctx context.Context, req Request) (*Report, error) {
	page, err := o.store.GetPage(ctx, req.PageID)
	if err != nil {
		o.failRequest(ctx, req, editApology)
		return &Report{Outcome: OutcomeFailed, Summary: err.Error()}, fmt.Errorf("load page: %w", err)
	}

	create := document.IsPlaceholder(page.HTMLContent)
	var report *Report
	if create {
		report, err = o.create(ctx, req)
	} else {
		report, err = o.edit(ctx, req, page.HTMLContent)
	}
	if err != nil {
		o.log.Error("simple agent on page %s failed: %v", req.PageID, err)
		apology := editApology
		if create {
			apology = createApology
		}
		o.failRequest(ctx, req, apology)
		if report == nil {
			report = &Report{}
		}
		report.Outcome = OutcomeFailed
		report.Summary = err.Error()
		return report, err
	}
	return report, nil
}

func (o *Orchestrator) create(ctx context.Context, req Request) (*Report, error) {
	o.stage(req, events.StageReceived)
	if err := o.setStatus(ctx, req, store.StatusProcessing); err != nil {
		return nil, err
	}

	o.stage(req, events.StageExecuting)
	iteration := loop.NewToolIteration(&loop.Dependencies{
		Chat:     o.chat,
		Executor: tools.NewExecutor(tools.NewCreateRegistry(), nil, tools.WithExecutorLogger(o.log)),
		Session:  loop.NewSession(prompt.CreateSystemPrompt, req.Content),
	}, loop.Request{
		ModelID:     req.ModelID,
		ToolChoice:  llm.ForceTool(tools.ToolNameWriteFullFile),
		Temperature: consts.CreateTemperature,
		MaxTokens:   consts.LoopMaxTokens,
	}, document.Placeholder)

	// A single forced call: an empty write is not terminal and exhausts it.
	l, err := loop.NewBuilder().WithMaxIterations(1).WithIteration(iteration).Build()
	if err != nil {
		return nil, err
	}
	result, err := l.Run(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{TokensUsed: result.TokensUsed, Iterations: result.IterationsExecuted}

	var write tools.FullWrite
	switch {
	case result.Reason == loop.BreakMaxIterations:
		return report, ErrEmptyHTML
	case result.Terminal == nil:
		return report, ErrNoWrite
	default:
		inv, ok := result.Terminal.Invocation.(tools.FullWrite)
		if !ok {
			return report, ErrNoWrite
		}
		write = inv
	}

	if err := o.saveHTML(ctx, req, write.HTML); err != nil {
		return report, err
	}
	if err := o.complete(ctx, req, write.HTML, write.Summary); err != nil {
		return report, err
	}
	o.stage(req, events.StageRecorded)

	report.Outcome = OutcomeCompleted
	report.Decision = planning.DecisionFullRewrite
	report.Summary = write.Summary
	return report, nil
}

func (o *Orchestrator) edit(ctx context.Context, req Request, html string) (*Report, error) {
	o.stage(req, events.StageReceived)
	if err := o.setStatus(ctx, req, store.StatusProcessing); err != nil {
		return nil, err
	}

	history, err := o.store.ChatHistory(ctx, req.PageID, consts.SimpleChatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	messages := []*llm.Message{{Role: llm.RoleSystem, Content: prompt.SimpleEditPrompt(html)}}
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == store.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, &llm.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, &llm.Message{Role: llm.RoleUser, Content: req.Content})

	o.stage(req, events.StageExecuting)
	executor := tools.NewExecutor(tools.NewPatchRegistry(), nil,
		tools.WithNotFoundMessage(tools.SimplePatchNotFoundMessage),
		tools.WithExecutorLogger(o.log),
	)
	iteration := loop.NewToolIteration(&loop.Dependencies{
		Chat:     o.chat,
		Executor: executor,
		Session:  loop.NewSessionFromMessages(messages),
		OnResult: func(ctx context.Context, res tools.Result) error {
			o.publish(events.Event{Type: events.TypeTool, PageID: req.PageID, MessageID: req.MessageID, Tool: res.Tool, Content: res.Output})
			if res.Changed {
				return o.saveHTML(ctx, req, res.HTML)
			}
			return nil
		},
	}, loop.Request{
		ModelID:     req.ModelID,
		ToolChoice:  llm.ToolChoice{Mode: llm.ToolChoiceAuto},
		Temperature: consts.LoopTemperature,
		MaxTokens:   consts.SimpleEditMaxTokens,
	}, html)

	l, err := loop.NewBuilder().WithMaxIterations(o.limits.SimpleMaxIterations).WithIteration(iteration).Build()
	if err != nil {
		return nil, err
	}
	result, err := l.Run(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{TokensUsed: result.TokensUsed, Iterations: result.IterationsExecuted, Decision: planning.DecisionSurgicalEdit}

	summary := exhaustedSummary
	switch {
	case result.Terminal != nil:
		if inv, ok := result.Terminal.Invocation.(tools.Finish); ok {
			summary = inv.Summary
		}
	case result.Reason == loop.Break:
		summary = result.FinalContent
		if summary == "" {
			summary = tools.DefaultFinishSummary
		}
	}

	if err := o.complete(ctx, req, iteration.HTML(), summary); err != nil {
		return report, err
	}
	o.stage(req, events.StageRecorded)

	report.Outcome = OutcomeCompleted
	report.Summary = summary
	return report, nil
}
