package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/logger"
	"github.com/codefionn/hyphertext/internal/search"
)

// Feedback strings returned to the model as tool results.
const (
	PatchAppliedMessage  = "replaced successfully"
	WriteAppliedMessage  = "written successfully"
	PatchNotFoundMessage = "ERROR: old_str not found in the file. Check for exact whitespace and indentation match. Try a shorter, more unique substring."
	// SimplePatchNotFoundMessage is used by the patch-only editor.
	SimplePatchNotFoundMessage = "ERROR: old_str not found in file. Make sure it matches exactly."
	EmptyContentMessage        = "ERROR: html field is empty. You must provide complete HTML content."
)

// Defaults filled into invocations whose text fields the model left empty.
const (
	DefaultWriteSummary   = "Page created."
	DefaultQuestion       = "Could you clarify?"
	DefaultFinishSummary  = "Edits complete."
	searchDisabledMessage = "Web search is not configured."
)

// Result is the outcome of executing one tool call against a document.
type Result struct {
	CallID string
	Tool   string
	// Invocation is the decoded call with defaults applied, nil when the
	// call could not be decoded.
	Invocation Invocation
	// Output is the text sent back to the model as the tool result.
	Output string
	Err    error
	// HTML is the document after the call. It equals the input unless
	// Changed is set.
	HTML    string
	Changed bool
	// Terminal calls end the loop: full writes, clarifications and finish.
	Terminal      bool
	SearchResults []search.Result
}

// Executor runs decoded tool calls. It owns no page state; callers pass the
// current document in and persist Result.HTML themselves.
type Executor struct {
	registry      *Registry
	searcher      search.Provider
	notFound      string
	finishSummary string
	log           *logger.Logger
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithNotFoundMessage replaces the feedback for a patch that does not match.
func WithNotFoundMessage(msg string) ExecutorOption {
	return func(e *Executor) {
		e.notFound = msg
	}
}

// WithExecutorLogger sets the executor logger.
func WithExecutorLogger(l *logger.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// NewExecutor creates an executor accepting the tools in registry. A nil
// searcher answers every web_search with an explanatory result.
func NewExecutor(registry *Registry, searcher search.Provider, opts ...ExecutorOption) *Executor {
	if searcher == nil {
		searcher = search.Unavailable{Reason: searchDisabledMessage}
	}
	e := &Executor{
		registry:      registry,
		searcher:      searcher,
		notFound:      PatchNotFoundMessage,
		finishSummary: DefaultFinishSummary,
		log:           logger.Global().WithPrefix("tools"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the tool set the executor accepts.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute applies call to html. Failures never abort the loop: they are
// reported through Result.Output so the model can correct itself, with
// Result.Err carrying the cause for the caller.
func (e *Executor) Execute(ctx context.Context, html string, call llm.ToolCall) Result {
	res := Result{CallID: call.ID, Tool: call.Name, HTML: html}

	if !e.registry.Has(call.Name) {
		res.Err = fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
		res.Output = fmt.Sprintf("ERROR: unknown tool %s", call.Name)
		e.log.Warn("model called unknown tool %q", call.Name)
		return res
	}

	inv, err := Decode(call)
	if err != nil {
		res.Err = err
		if errors.Is(err, ErrUnknownTool) {
			res.Output = fmt.Sprintf("ERROR: unknown tool %s", call.Name)
		} else {
			res.Output = fmt.Sprintf("ERROR: invalid arguments for %s: %v", call.Name, err)
		}
		e.log.Warn("tool %s: %v", call.Name, err)
		return res
	}

	switch v := inv.(type) {
	case FullWrite:
		if strings.TrimSpace(v.HTML) == "" {
			res.Invocation = v
			res.Err = ErrEmptyContent
			res.Output = EmptyContentMessage
			return res
		}
		if v.Summary == "" {
			v.Summary = DefaultWriteSummary
		}
		res.Invocation = v
		res.HTML = v.HTML
		res.Changed = true
		res.Terminal = true
		res.Output = WriteAppliedMessage
		e.log.Debug("full write: %d bytes, %d components", len(v.HTML), len(v.ComponentMap))

	case Patch:
		res.Invocation = v
		updated, err := ApplyPatch(html, v.OldStr, v.NewStr)
		if err != nil {
			res.Err = err
			res.Output = e.notFound
			e.log.Debug("patch miss: %q", llm.TruncateForError(v.OldStr, consts.ChangePreviewChars))
			return res
		}
		res.HTML = updated
		res.Changed = true
		res.Output = PatchAppliedMessage

	case Clarify:
		if strings.TrimSpace(v.Question) == "" {
			v.Question = DefaultQuestion
		}
		res.Invocation = v
		res.Terminal = true
		res.Output = v.Question

	case Search:
		res.Invocation = v
		results, err := e.searcher.Search(ctx, v.Query, consts.SearchResultCount)
		if err != nil {
			res.Err = err
			res.Output = fmt.Sprintf("ERROR: web search failed: %v", err)
			e.log.Warn("web search %q failed: %v", v.Query, err)
			return res
		}
		res.SearchResults = results
		res.Output = search.FormatResults(results)

	case Finish:
		if strings.TrimSpace(v.Summary) == "" {
			v.Summary = e.finishSummary
		}
		res.Invocation = v
		res.Terminal = true
		res.Output = v.Summary
	}

	return res
}
