package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/llm"
)

// DefaultVisionModel is the Claude model used for image analysis.
const DefaultVisionModel = "claude-haiku-4-5"

// VisionResult is the structured description of one image.
type VisionResult struct {
	Description     string   `json:"description"`
	DetectedObjects []string `json:"detected_objects"`
	ContainsPeople  bool     `json:"contains_people"`
	ContainsText    bool     `json:"contains_text"`
	ExtractedText   string   `json:"extracted_text"`
	DominantColors  []string `json:"dominant_colors"`
	SuggestedUse    string   `json:"suggested_use"`
	AltText         string   `json:"alt_text"`
}

// ImageAnalyzer describes images for the agent.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, data []byte, mimeType string) (VisionResult, error)
}

const visionPrompt = `Analyze this image carefully and return a JSON object with the following fields.
Be concise but precise. This description will be given to an AI coding agent that will use the image in an HTML page.

{
  "description": "2-3 sentence description of what this image shows. Be specific and useful for an AI agent building a web page.",
  "detected_objects": ["list", "of", "main", "objects", "or", "subjects"],
  "contains_people": true or false,
  "contains_text": true or false,
  "extracted_text": "any text visible in the image, verbatim. empty string if none.",
  "dominant_colors": ["#hexcolor1", "#hexcolor2", "#hexcolor3"],
  "suggested_use": one of: "profile_photo" | "product_image" | "logo" | "background" | "diagram" | "illustration" | "document_scan" | "other",
  "alt_text": "concise accessible alt text for the image"
}

Return only the JSON object. No markdown fences. No explanation.`

var visionMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// SupportsVision reports whether mimeType can be sent to the vision model.
func SupportsVision(mimeType string) bool {
	return visionMIMETypes[strings.ToLower(mimeType)]
}

// PlaceholderVision describes images the vision model cannot read, such as
// SVG.
func PlaceholderVision() VisionResult {
	return VisionResult{
		Description:     "SVG vector image uploaded by user.",
		DetectedObjects: []string{},
		DominantColors:  []string{},
		SuggestedUse:    "illustration",
		AltText:         "SVG image",
	}
}

// FallbackVision is used when the model reply is not valid JSON.
func FallbackVision() VisionResult {
	return VisionResult{
		Description:     "Image uploaded by user.",
		DetectedObjects: []string{},
		DominantColors:  []string{},
		SuggestedUse:    "other",
		AltText:         "Uploaded image",
	}
}

// ParseVision decodes a model reply. Missing fields get the same defaults
// an unparseable reply would.
func ParseVision(raw string) VisionResult {
	var parsed struct {
		Description     *string  `json:"description"`
		DetectedObjects []any    `json:"detected_objects"`
		ContainsPeople  bool     `json:"contains_people"`
		ContainsText    bool     `json:"contains_text"`
		ExtractedText   *string  `json:"extracted_text"`
		DominantColors  []any    `json:"dominant_colors"`
		SuggestedUse    *string  `json:"suggested_use"`
		AltText         *string  `json:"alt_text"`
	}
	if err := llm.ParseLLMJSONResponse(raw, &parsed); err != nil {
		return FallbackVision()
	}

	out := VisionResult{
		DetectedObjects: stringify(parsed.DetectedObjects),
		ContainsPeople:  parsed.ContainsPeople,
		ContainsText:    parsed.ContainsText,
		DominantColors:  stringify(parsed.DominantColors),
		SuggestedUse:    "other",
		AltText:         "Uploaded image",
	}
	if parsed.Description != nil {
		out.Description = *parsed.Description
	}
	if parsed.ExtractedText != nil {
		out.ExtractedText = *parsed.ExtractedText
	}
	if parsed.SuggestedUse != nil {
		out.SuggestedUse = *parsed.SuggestedUse
	}
	if parsed.AltText != nil {
		out.AltText = *parsed.AltText
	}
	return out
}

func stringify(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

// ClaudeVision analyses images through the Anthropic Messages API.
type ClaudeVision struct {
	client anthropic.Client
	model  string
}

// NewClaudeVision creates a vision analyzer. An empty model selects
// DefaultVisionModel.
func NewClaudeVision(apiKey, model string, opts ...option.RequestOption) (*ClaudeVision, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, fmt.Errorf("vision analyzer requires an Anthropic API key")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultVisionModel
	}
	return &ClaudeVision{
		client: anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(key)}, opts...)...),
		model:  model,
	}, nil
}

// Analyze sends the image together with the JSON contract prompt.
func (v *ClaudeVision) Analyze(ctx context.Context, data []byte, mimeType string) (VisionResult, error) {
	if !SupportsVision(mimeType) {
		return PlaceholderVision(), nil
	}
	mediaType := strings.ToLower(mimeType)
	if mediaType == "image/jpg" {
		mediaType = "image/jpeg"
	}

	msg, err := v.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(v.model),
		MaxTokens: consts.VisionMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(data)),
				anthropic.NewTextBlock(visionPrompt),
			),
		},
	})
	if err != nil {
		return VisionResult{}, fmt.Errorf("vision request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return ParseVision(text.String()), nil
}

// NoVision answers every image with the fallback description. It stands in
// when no Anthropic key is configured.
type NoVision struct{}

func (NoVision) Analyze(context.Context, []byte, string) (VisionResult, error) {
	return FallbackVision(), nil
}
