package planning

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/codefionn/hyphertext/internal/llm"
)

// Plan decisions. Clarification and Unknown only appear in edit history.
const (
	DecisionFullRewrite   = "full_rewrite"
	DecisionSurgicalEdit  = "surgical_edit"
	DecisionClarification = "clarification"
	DecisionUnknown       = "unknown"
)

// Plan complexities.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

// ErrPlanParse is returned when the planner response holds no usable plan.
var ErrPlanParse = errors.New("failed to parse plan")

// Change is one ordered step of a plan.
type Change struct {
	Order     int      `json:"order" mapstructure:"order"`
	Target    string   `json:"target" mapstructure:"target"`
	What      string   `json:"what" mapstructure:"what"`
	DependsOn []string `json:"depends_on" mapstructure:"depends_on"`
}

// Plan is the structured intent the planner derives from a user request.
type Plan struct {
	Decision              string   `json:"decision" mapstructure:"decision"`
	Complexity            string   `json:"complexity" mapstructure:"complexity"`
	Confidence            float64  `json:"confidence" mapstructure:"confidence"`
	NeedsClarification    bool     `json:"needs_clarification" mapstructure:"needs_clarification"`
	ClarificationQuestion string   `json:"clarification_question" mapstructure:"clarification_question"`
	Description           string   `json:"description" mapstructure:"description"`
	Changes               []Change `json:"changes" mapstructure:"changes"`
	NeedsWebSearch        bool     `json:"needs_web_search" mapstructure:"needs_web_search"`
	SearchQuery           string   `json:"search_query" mapstructure:"search_query"`
}

// DefaultPlan is used whenever the planner output cannot be parsed.
func DefaultPlan() Plan {
	return Plan{
		Decision:    DecisionSurgicalEdit,
		Complexity:  ComplexitySimple,
		Confidence:  0.5,
		Description: "apply requested changes",
		Changes:     []Change{},
	}
}

// ComplexityOr returns the plan complexity, or def when the planner gave none.
func (p Plan) ComplexityOr(def string) string {
	if p.Complexity == "" {
		return def
	}
	return p.Complexity
}

// ParsePlan extracts a Plan from raw model output. Fences are stripped and
// the outermost JSON object is used. A missing confidence counts as full
// confidence and a missing decision as a surgical edit. On failure the
// default plan is returned together with an error wrapping ErrPlanParse.
func ParsePlan(raw string) (Plan, error) {
	var fields map[string]any
	if err := llm.ParseLLMJSONResponse(raw, &fields); err != nil {
		return DefaultPlan(), fmt.Errorf("%w: %v", ErrPlanParse, err)
	}
	if fields == nil {
		return DefaultPlan(), fmt.Errorf("%w: response is not an object", ErrPlanParse)
	}

	plan := Plan{Changes: []Change{}}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &plan,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return DefaultPlan(), fmt.Errorf("%w: %v", ErrPlanParse, err)
	}
	if err := decoder.Decode(fields); err != nil {
		return DefaultPlan(), fmt.Errorf("%w: %v", ErrPlanParse, err)
	}

	if v, ok := fields["confidence"]; !ok || v == nil {
		plan.Confidence = 1.0
	}
	if plan.Decision == "" {
		plan.Decision = DecisionSurgicalEdit
	}
	if plan.Changes == nil {
		plan.Changes = []Change{}
	}
	return plan, nil
}
