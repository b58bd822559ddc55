package planning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/llm"
)

type fakeChatter struct {
	content string
	err     error
	got     *llm.CompletionRequest
	model   string
}

func (f *fakeChatter) Chat(_ context.Context, modelID string, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.got = req
	f.model = modelID
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{
		Content: f.content,
		Usage:   llm.Usage{InputTokens: 100, OutputTokens: 20},
	}, nil
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Plan
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"decision":"full_rewrite","complexity":"complex","confidence":0.9,"description":"build a landing page","changes":[{"order":1,"target":"hero","what":"add","depends_on":[]}]}`,
			want: Plan{
				Decision:    DecisionFullRewrite,
				Complexity:  ComplexityComplex,
				Confidence:  0.9,
				Description: "build a landing page",
				Changes:     []Change{{Order: 1, Target: "hero", What: "add", DependsOn: []string{}}},
			},
		},
		{
			name: "fenced with nulls",
			raw:  "```json\n{\"decision\":\"surgical_edit\",\"complexity\":\"simple\",\"confidence\":0.4,\"needs_clarification\":true,\"clarification_question\":null,\"search_query\":null}\n```",
			want: Plan{
				Decision:           DecisionSurgicalEdit,
				Complexity:         ComplexitySimple,
				Confidence:         0.4,
				NeedsClarification: true,
				Changes:            []Change{},
			},
		},
		{
			name: "missing confidence means certain",
			raw:  `Here you go: {"decision":"surgical_edit","needs_clarification":true} thanks`,
			want: Plan{
				Decision:           DecisionSurgicalEdit,
				Confidence:         1.0,
				NeedsClarification: true,
				Changes:            []Change{},
			},
		},
		{
			name: "loose types",
			raw:  `{"confidence":"0.7","changes":[{"order":"2","depends_on":[1]}]}`,
			want: Plan{
				Decision:   DecisionSurgicalEdit,
				Confidence: 0.7,
				Changes:    []Change{{Order: 2, DependsOn: []string{"1"}}},
			},
		},
		{name: "garbage", raw: "I think you should edit the header.", want: DefaultPlan(), wantErr: true},
		{name: "json null", raw: "null", want: DefaultPlan(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlan(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPlanParse)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultPlan(t *testing.T) {
	p := DefaultPlan()
	assert.Equal(t, DecisionSurgicalEdit, p.Decision)
	assert.Equal(t, ComplexitySimple, p.Complexity)
	assert.Equal(t, 0.5, p.Confidence)
	assert.False(t, p.NeedsClarification)
	assert.False(t, p.NeedsWebSearch)
	assert.Equal(t, "apply requested changes", p.Description)
	assert.Empty(t, p.Changes)
}

func TestComplexityOr(t *testing.T) {
	assert.Equal(t, ComplexityModerate, Plan{}.ComplexityOr(ComplexityModerate))
	assert.Equal(t, ComplexityComplex, Plan{Complexity: ComplexityComplex}.ComplexityOr(ComplexityModerate))
}

func TestPlannerRequestShape(t *testing.T) {
	chat := &fakeChatter{content: `{"decision":"full_rewrite","complexity":"moderate","confidence":0.8}`}
	planner := NewPlanner(chat)

	plan, usage, err := planner.Plan(context.Background(), "groq/llama-3.3-70b", "make it blue")
	require.NoError(t, err)
	assert.Equal(t, DecisionFullRewrite, plan.Decision)
	assert.Equal(t, 120, usage.Total())

	require.NotNil(t, chat.got)
	assert.Equal(t, "groq/llama-3.3-70b", chat.model)
	assert.Equal(t, consts.PlannerTemperature, chat.got.Temperature)
	assert.Equal(t, consts.PlannerMaxTokens, chat.got.MaxTokens)
	assert.Empty(t, chat.got.Tools)
	require.Len(t, chat.got.Messages, 2)
	assert.Equal(t, llm.RoleSystem, chat.got.Messages[0].Role)
	assert.Equal(t, SystemMessage, chat.got.Messages[0].Content)
	assert.Contains(t, chat.got.Messages[1].Content, "USER REQUEST: make it blue")
}

func TestPlannerUnparseableFallsBack(t *testing.T) {
	planner := NewPlanner(&fakeChatter{content: "sure!"})
	plan, _, err := planner.Plan(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Equal(t, DefaultPlan(), plan)
}

func TestPlannerBackendErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	planner := NewPlanner(&fakeChatter{err: boom})
	_, _, err := planner.Plan(context.Background(), "", "x")
	assert.ErrorIs(t, err, boom)
}
