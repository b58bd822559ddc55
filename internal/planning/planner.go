package planning

import (
	"context"
	"fmt"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/llm"
	"github.com/codefionn/hyphertext/internal/logger"
	"github.com/codefionn/hyphertext/internal/prompt"
)

// SystemMessage frames the planning call.
const SystemMessage = "You are a planning assistant for an HTML coding agent. " +
	"Analyze the user request and return a structured JSON plan."

// Planner turns a user request into a Plan with a single model call.
type Planner struct {
	chat llm.Chatter
	log  *logger.Logger
}

// NewPlanner creates a planner that talks to the model through chat.
func NewPlanner(chat llm.Chatter) *Planner {
	return &Planner{
		chat: chat,
		log:  logger.Global().WithPrefix("planner"),
	}
}

// Plan asks modelID for a plan. Unparseable output falls back to
// DefaultPlan without an error; only backend failures are returned.
func (p *Planner) Plan(ctx context.Context, modelID, request string) (Plan, llm.Usage, error) {
	req := &llm.CompletionRequest{
		Messages: []*llm.Message{
			{Role: llm.RoleSystem, Content: SystemMessage},
			{Role: llm.RoleUser, Content: prompt.BuildPlanningPrompt(request)},
		},
		ToolChoice:  llm.ToolChoice{Mode: llm.ToolChoiceNone},
		Temperature: consts.PlannerTemperature,
		MaxTokens:   consts.PlannerMaxTokens,
	}

	resp, err := p.chat.Chat(ctx, modelID, req)
	if err != nil {
		return Plan{}, llm.Usage{}, fmt.Errorf("planning call failed: %w", err)
	}

	plan, err := ParsePlan(resp.Content)
	if err != nil {
		p.log.Warn("using default plan: %v", err)
	}
	p.log.Debug("plan decision=%s complexity=%s confidence=%.2f clarify=%v search=%v",
		plan.Decision, plan.Complexity, plan.Confidence, plan.NeedsClarification, plan.NeedsWebSearch)

	return plan, resp.Usage, nil
}
