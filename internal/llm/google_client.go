package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GoogleGenAIClient implements Client against the Gemini API.
type GoogleGenAIClient struct {
	modelName string
	client    *genai.Client
}

// NewGoogleAIClient creates a Google GenAI client for the provided model.
func NewGoogleAIClient(ctx context.Context, apiKey, modelName string) (*GoogleGenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("google client requires an API key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google GenAI client: %w", err)
	}

	return &GoogleGenAIClient{
		modelName: normalizeGoogleModelName(modelName),
		client:    client,
	}, nil
}

func (c *GoogleGenAIClient) GetModelName() string {
	return c.modelName
}

func (c *GoogleGenAIClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("google completion request cannot be nil")
	}

	system, rest := splitSystem(req)
	contents := convertMessagesToGenAI(rest)
	if len(contents) == 0 {
		return nil, fmt.Errorf("google completion requires at least one user or assistant message")
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, buildGenAIGenerationConfig(system, req))
	if err != nil {
		return nil, fmt.Errorf("google request failed: %w", err)
	}

	return buildGenAICompletionResponse(resp), nil
}

// convertMessagesToGenAI maps assistant turns to the model role. Tool results
// become function responses on the user role, consecutive ones sharing a
// single content entry.
func convertMessagesToGenAI(messages []*Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	var pending []*genai.Part

	flush := func() {
		if len(pending) == 0 {
			return
		}
		contents = append(contents, genai.NewContentFromParts(pending, genai.RoleUser))
		pending = nil
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.ToolName, toolResponsePayload(msg.Content))
			if msg.ToolID != "" {
				part.FunctionResponse.ID = msg.ToolID
			}
			pending = append(pending, part)
		case RoleAssistant:
			flush()
			parts := make([]*genai.Part, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				part := genai.NewPartFromFunctionCall(call.Name, args)
				part.FunctionCall.ID = call.ID
				parts = append(parts, part)
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		default:
			flush()
			if msg.Content == "" {
				continue
			}
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	flush()

	return contents
}

func toolResponsePayload(content string) map[string]any {
	payload := make(map[string]any)
	if strings.HasPrefix(strings.TrimSpace(content), "{") {
		if err := json.Unmarshal([]byte(content), &payload); err == nil {
			return payload
		}
	}
	payload["output"] = content
	return payload
}

func buildGenAIGenerationConfig(system string, req *CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		cfg.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	schemas := parseToolSchemas(req.Tools)
	if len(schemas) == 0 {
		return cfg
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, fn := range schemas {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 fn.Name,
			Description:          fn.Description,
			ParametersJsonSchema: fn.Parameters,
		})
	}
	cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}

	calling := &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto}
	switch req.ToolChoice.Mode {
	case ToolChoiceForced:
		calling.Mode = genai.FunctionCallingConfigModeAny
		calling.AllowedFunctionNames = []string{req.ToolChoice.Name}
	case ToolChoiceNone:
		calling.Mode = genai.FunctionCallingConfigModeNone
	}
	cfg.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: calling}

	return cfg
}

func buildGenAICompletionResponse(resp *genai.GenerateContentResponse) *CompletionResponse {
	if resp == nil {
		return &CompletionResponse{}
	}

	out := &CompletionResponse{}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil {
			out.StopReason = string(resp.PromptFeedback.BlockReason)
		}
		return out
	}

	candidate := resp.Candidates[0]
	out.StopReason = string(candidate.FinishReason)
	if candidate.Content == nil {
		return out
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, _ := DecodeArguments(part.FunctionCall.Args)
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}
	out.Content = text.String()
	out.ToolCalls = NormalizeToolCallIDs(out.ToolCalls)

	return out
}

func normalizeGoogleModelName(modelName string) string {
	trimmed := strings.TrimSpace(modelName)
	if trimmed == "" {
		return "models/gemini-2.5-flash"
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "models/") || strings.HasPrefix(lowered, "publishers/") {
		return trimmed
	}

	return "models/" + trimmed
}
