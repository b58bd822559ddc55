package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const perMessageOverhead = 4

// TokenCounter counts tokens of text. The router uses it when a backend
// reports no usage.
type TokenCounter func(text string) int

var (
	defaultEncoderOnce sync.Once
	defaultEncoder     *tiktoken.Tiktoken
)

// TiktokenCounter counts with the cl100k_base encoding. When the encoding
// cannot be loaded it falls back to EstimateTokenCount.
func TiktokenCounter(text string) int {
	defaultEncoderOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			defaultEncoder = enc
		}
	})
	if defaultEncoder == nil || text == "" {
		return EstimateTokenCount(text)
	}
	return len(defaultEncoder.Encode(text, nil, nil))
}

// EstimateTokenCount returns a rough token estimate for the provided content.
func EstimateTokenCount(content string) int {
	runes := utf8.RuneCountInString(content)
	if runes == 0 {
		return 0
	}
	// Rough heuristic: 1 token ≈ 4 characters
	return (runes + 3) / 4
}

// estimateUsage counts request and response tokens with count.
func estimateUsage(count TokenCounter, req *CompletionRequest, resp *CompletionResponse) Usage {
	input := count(req.SystemPrompt)
	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}
		input += count(msg.Content) + perMessageOverhead
		for _, call := range msg.ToolCalls {
			input += count(call.Name) + count(encodeArguments(call.Arguments))
		}
	}

	output := count(resp.Content)
	for _, call := range resp.ToolCalls {
		output += count(call.Name) + count(encodeArguments(call.Arguments))
	}

	return Usage{InputTokens: input, OutputTokens: output, Estimated: true}
}
