package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultGroqBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultGroqBaseURL = "https://api.groq.com/openai/v1/"

// GroqClient talks to Groq through the OpenAI chat completions API. System
// messages stay inline and tool arguments travel as JSON strings.
type GroqClient struct {
	client openai.Client
	model  string
}

// NewGroqClient creates a Groq client for modelName. An empty baseURL selects
// DefaultGroqBaseURL.
func NewGroqClient(apiKey, baseURL, modelName string, opts ...option.RequestOption) (*GroqClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	model := strings.TrimSpace(modelName)
	if model == "" {
		return nil, fmt.Errorf("groq client requires a model name")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultGroqBaseURL
	}

	base := []option.RequestOption{option.WithAPIKey(apiKey), option.WithBaseURL(baseURL)}
	return &GroqClient{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
	}, nil
}

func (c *GroqClient) GetModelName() string {
	return c.model
}

func (c *GroqClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("groq request failed: %w", err)
	}

	return buildChatCompletionResponse(resp), nil
}

func (c *GroqClient) buildParams(req *CompletionRequest) (openai.ChatCompletionNewParams, error) {
	if req == nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("groq completion request cannot be nil")
	}

	messages, err := convertMessagesToOpenAI(req)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	if schemas := parseToolSchemas(req.Tools); len(schemas) > 0 {
		params.Tools = make([]openai.ChatCompletionToolParam, 0, len(schemas))
		for _, fn := range schemas {
			def := openai.FunctionDefinitionParam{
				Name:       fn.Name,
				Parameters: openai.FunctionParameters(fn.Parameters),
			}
			if fn.Description != "" {
				def.Description = openai.String(fn.Description)
			}
			params.Tools = append(params.Tools, openai.ChatCompletionToolParam{Function: def})
		}
		params.ToolChoice = convertOpenAIToolChoice(req.ToolChoice)
	}

	return params, nil
}

func convertMessagesToOpenAI(req *CompletionRequest) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		out = append(out, openai.SystemMessage(req.SystemPrompt))
	}

	for idx, msg := range req.Messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case RoleTool:
			if strings.TrimSpace(msg.ToolID) == "" {
				return nil, fmt.Errorf("tool message at index %d has no tool id", idx)
			}
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolID))
		case RoleAssistant:
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, call := range NormalizeToolCallIDs(msg.ToolCalls) {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: encodeArguments(call.Arguments),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		default:
			return nil, fmt.Errorf("unsupported message role %q at index %d", msg.Role, idx)
		}
	}

	return out, nil
}

func convertOpenAIToolChoice(choice ToolChoice) openai.ChatCompletionToolChoiceOptionUnionParam {
	switch choice.Mode {
	case ToolChoiceForced:
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: choice.Name},
			},
		}
	case ToolChoiceNone:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
	default:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}
}

func buildChatCompletionResponse(resp *openai.ChatCompletion) *CompletionResponse {
	if resp == nil {
		return &CompletionResponse{}
	}

	out := &CompletionResponse{
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.StopReason = choice.FinishReason
	for _, call := range choice.Message.ToolCalls {
		args, _ := DecodeArguments(call.Function.Arguments)
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	out.ToolCalls = NormalizeToolCallIDs(out.ToolCalls)

	return out
}
