package tools

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/codefionn/hyphertext/internal/document"
	"github.com/codefionn/hyphertext/internal/llm"
)

var (
	// ErrUnknownTool is returned for calls naming a tool outside the registry.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned when call arguments do not fit the tool.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Invocation is a decoded tool call. The concrete type is one of FullWrite,
// Patch, Clarify, Search or Finish.
type Invocation interface {
	ToolName() string
	isInvocation()
}

// FullWrite replaces the whole document.
type FullWrite struct {
	HTML            string               `mapstructure:"html"`
	Summary         string               `mapstructure:"summary"`
	DocumentSummary string               `mapstructure:"html_summary"`
	ComponentMap    []document.Component `mapstructure:"component_map"`
}

// Patch replaces the first occurrence of OldStr with NewStr.
type Patch struct {
	OldStr string `mapstructure:"old_str"`
	NewStr string `mapstructure:"new_str"`
}

// Clarify asks the user a single question and ends the session.
type Clarify struct {
	Question string `mapstructure:"question"`
	Reason   string `mapstructure:"reason"`
}

// Search runs a web search whose results are fed back to the model.
type Search struct {
	Query  string `mapstructure:"query"`
	Reason string `mapstructure:"reason"`
}

// Finish ends a patch session.
type Finish struct {
	Summary             string   `mapstructure:"summary"`
	UpdatedComponentIDs []string `mapstructure:"updated_component_ids"`
}

func (FullWrite) ToolName() string { return ToolNameWriteFullFile }
func (Patch) ToolName() string     { return ToolNameStrReplace }
func (Clarify) ToolName() string   { return ToolNameAskClarification }
func (Search) ToolName() string    { return ToolNameWebSearch }
func (Finish) ToolName() string    { return ToolNameFinish }

func (FullWrite) isInvocation() {}
func (Patch) isInvocation()     {}
func (Clarify) isInvocation()   {}
func (Search) isInvocation()    {}
func (Finish) isInvocation()    {}

// Decode converts a raw tool call into its typed invocation. Unknown names
// fail with ErrUnknownTool; nil or ill-typed arguments fail with
// ErrInvalidArguments.
func Decode(call llm.ToolCall) (Invocation, error) {
	var target Invocation
	switch call.Name {
	case ToolNameWriteFullFile:
		target = &FullWrite{}
	case ToolNameStrReplace:
		target = &Patch{}
	case ToolNameAskClarification:
		target = &Clarify{}
	case ToolNameWebSearch:
		target = &Search{}
	case ToolNameFinish:
		target = &Finish{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	if call.Arguments == nil {
		return nil, fmt.Errorf("%w for %s: arguments are not a JSON object", ErrInvalidArguments, call.Name)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(call.Arguments); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrInvalidArguments, call.Name, err)
	}

	switch v := target.(type) {
	case *FullWrite:
		return *v, nil
	case *Patch:
		return *v, nil
	case *Clarify:
		return *v, nil
	case *Search:
		return *v, nil
	case *Finish:
		return *v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
}
