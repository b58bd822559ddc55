// Package orchestrator drives one chat request against a page: asset
// processing, planning, the optional clarification round trip, the tool
// loop and the bookkeeping that follows every outcome.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/events"
	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/logger"
	"github.com/codefionn/hyphertext/internal/planning"
	"github.com/codefionn/hyphertext/internal/search"
	"github.com/codefionn/hyphertext/internal/store"
)

// Agent selects the strategy used for a request.
type Agent string

const (
	// AgentPlanned plans first and runs the full tool loop.
	AgentPlanned Agent = "planned"
	// AgentSimple creates placeholder pages in one forced write and edits
	// everything else with patches only.
	AgentSimple Agent = "simple"
)

// ParseAgent maps the agent field of a run request. Empty selects the
// planned agent.
func ParseAgent(s string) (Agent, error) {
	switch Agent(s) {
	case "", AgentPlanned:
		return AgentPlanned, nil
	case AgentSimple:
		return AgentSimple, nil
	}
	return "", fmt.Errorf("unknown agent %q", s)
}

// Request identifies the chat message to process.
type Request struct {
	MessageID string
	PageID    string
	OwnerID   string
	Content   string
	ModelID   string
	Agent     Agent
}

// Outcome is how a run ended.
type Outcome string

const (
	// OutcomeCompleted means the document edit finished.
	OutcomeCompleted Outcome = "completed"
	// OutcomeClarification means a question was sent back to the user.
	OutcomeClarification Outcome = "clarification"
	// OutcomeFailed means the request was marked as error and apologized for.
	OutcomeFailed Outcome = "error"
)

// Report summarizes a finished run.
type Report struct {
	Outcome    Outcome
	Decision   string
	Summary    string
	TokensUsed int
	Iterations int
}

// AssetProcessor analyses the pending uploads of a page.
type AssetProcessor interface {
	Process(ctx context.Context, pageID, ownerID string) (int, error)
}

// Limits bounds the tool loops.
type Limits struct {
	MaxIterations          int
	SimpleMaxIterations    int
	ClarificationThreshold float64
}

// DefaultLimits returns the production loop limits.
func DefaultLimits() Limits {
	return Limits{
		MaxIterations:          consts.MaxToolIterations,
		SimpleMaxIterations:    consts.SimpleEditIterations,
		ClarificationThreshold: consts.ClarificationConfidenceThreshold,
	}
}

// Orchestrator runs requests. It is safe for concurrent use, but two runs on
// the same page must be serialized by the caller.
type Orchestrator struct {
	store     store.Store
	chat      llm.Chatter
	planner   *planning.Planner
	searcher  search.Provider
	assets    AssetProcessor
	publisher events.Publisher
	limits    Limits
	log       *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSearcher sets the web search provider. Without one, pre-loop searches
// are skipped and the web_search tool reports that search is unavailable.
func WithSearcher(p search.Provider) Option {
	return func(o *Orchestrator) { o.searcher = p }
}

// WithAssetProcessor enables asset analysis before planning.
func WithAssetProcessor(p AssetProcessor) Option {
	return func(o *Orchestrator) { o.assets = p }
}

// WithPublisher sets the progress event sink.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithLimits overrides the loop limits.
func WithLimits(l Limits) Option {
	return func(o *Orchestrator) { o.limits = l }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// New creates an Orchestrator over st talking to chat.
func New(st store.Store, chat llm.Chatter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     st,
		chat:      chat,
		planner:   planning.NewPlanner(chat),
		publisher: events.Nop{},
		limits:    DefaultLimits(),
		log:       logger.Global().WithPrefix("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes req to completion. Every failure is recorded against the
// message and the page before it is returned, so callers only need to log
// the error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Agent == AgentSimple {
		return o.runSimple(ctx, req)
	}

	r := newRun(o, req)
	report, err := r.execute(ctx)
	if err != nil {
		o.log.Error("message %s on page %s failed: %v", req.MessageID, req.PageID, err)
		return r.fail(ctx, err), err
	}
	o.log.Info("message %s on page %s: %s (%s, %d tokens)", req.MessageID, req.PageID, report.Outcome, report.Decision, report.TokensUsed)
	return report, nil
}

func (o *Orchestrator) publish(ev events.Event) {
	ev.Time = time.Now().UTC()
	o.publisher.Publish(ev)
}

// setStatus updates the request message and announces the new status.
func (o *Orchestrator) setStatus(ctx context.Context, req Request, status store.MessageStatus) error {
	if err := o.store.UpdateMessageStatus(ctx, req.MessageID, status); err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	o.publish(events.Event{Type: events.TypeStatus, PageID: req.PageID, MessageID: req.MessageID, Status: string(status)})
	return nil
}

func (o *Orchestrator) stage(req Request, stage events.Stage) {
	o.publish(events.Event{Type: events.TypeStage, PageID: req.PageID, MessageID: req.MessageID, Stage: stage})
}

// reply stores a completed assistant message.
func (o *Orchestrator) reply(ctx context.Context, req Request, content string, typ store.MessageType, meta map[string]any) error {
	msg := &store.ChatMessage{
		PageID:  req.PageID,
		Role:    store.RoleAssistant,
		Content: content,
		Status:  store.StatusCompleted,
		Type:    typ,
		Meta:    meta,
		ModelID: req.ModelID,
	}
	if err := o.store.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("insert assistant message: %w", err)
	}
	if typ != store.TypeThinking {
		o.publish(events.Event{Type: events.TypeMessage, PageID: req.PageID, MessageID: msg.ID, Content: content})
	}
	return nil
}

// saveHTML persists an edited document and announces it.
func (o *Orchestrator) saveHTML(ctx context.Context, req Request, html string) error {
	if err := o.store.UpdatePageHTML(ctx, req.PageID, html); err != nil {
		return fmt.Errorf("update page html: %w", err)
	}
	o.publish(events.Event{Type: events.TypePage, PageID: req.PageID, MessageID: req.MessageID})
	return nil
}

// complete snapshots html, marks the request done and stores the reply.
func (o *Orchestrator) complete(ctx context.Context, req Request, html, summary string) error {
	if _, err := o.store.SnapshotVersion(ctx, req.PageID, html); err != nil {
		return fmt.Errorf("snapshot version: %w", err)
	}
	if err := o.setStatus(ctx, req, store.StatusCompleted); err != nil {
		return err
	}
	return o.reply(ctx, req, summary, store.TypeChat, nil)
}

// failRequest marks the message as failed and apologizes. It runs on a
// context detached from cancellation so a timed out run is still recorded.
func (o *Orchestrator) failRequest(ctx context.Context, req Request, apology string) {
	ctx = context.WithoutCancel(ctx)
	if err := o.setStatus(ctx, req, store.StatusError); err != nil {
		o.log.Error("mark message %s failed: %v", req.MessageID, err)
	}
	if err := o.reply(ctx, req, apology, store.TypeChat, nil); err != nil {
		o.log.Error("store apology for message %s: %v", req.MessageID, err)
	}
}
