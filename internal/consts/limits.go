package consts

import "time"

// Tool loop limits
const (
	// MaxToolIterations is the iteration ceiling of the planned tool loop
	MaxToolIterations = 15
	// SimpleEditIterations is the iteration ceiling of the patch-only editor
	SimpleEditIterations = 10
	// ClarificationConfidenceThreshold is the plan confidence below which a
	// clarification request is honoured
	ClarificationConfidenceThreshold = 0.6
)

// LLM call parameters
const (
	// PlannerMaxTokens is the response budget of the planning call
	PlannerMaxTokens = 1000
	// PlannerTemperature keeps plans deterministic
	PlannerTemperature = 0.1
	// LoopMaxTokens is the response budget of each tool-loop call
	LoopMaxTokens = 8000
	// LoopTemperature is the sampling temperature of each tool-loop call
	LoopTemperature = 0.3
	// SimpleEditMaxTokens is the response budget of the patch-only editor
	SimpleEditMaxTokens = 4000
	// CreateTemperature is used when a page is generated from scratch
	CreateTemperature = 0.7
	// VisionMaxTokens is the response budget of an image analysis call
	VisionMaxTokens = 1024
)

// Context window limits
const (
	// EditHistoryLimit is the number of edit history rows shown in prompts
	EditHistoryLimit = 5
	// ChatHistoryLimit is the number of completed chat messages shown in prompts
	ChatHistoryLimit = 8
	// SimpleChatHistoryLimit is the chat history depth for the patch-only editor
	SimpleChatHistoryLimit = 10
	// ChatPreviewChars truncates chat messages in the system prompt
	ChatPreviewChars = 200
	// ChangePreviewChars truncates old_str in the changes log
	ChangePreviewChars = 80
	// SearchResultCount is the number of results requested per web search
	SearchResultCount = 5
)

// Asset pipeline limits
const (
	// MaxExtractedTextChars caps extracted document text
	MaxExtractedTextChars = 12000
	// ExtractedSummaryChars is the size of the stored document summary
	ExtractedSummaryChars = 800
	// DocumentPreviewChars is the amount of raw text shown when no summary exists
	DocumentPreviewChars = 600
	// MinEmbeddedImageSide skips embedded images smaller than this in either dimension
	MinEmbeddedImageSide = 80
	// MaxUploadBytes limits multipart uploads
	MaxUploadBytes = 32 * 1024 * 1024
)

// Timeouts for various operations
const (
	// SearchTimeout bounds a single search provider request
	SearchTimeout = 10 * time.Second
	// RunTimeout bounds a whole orchestrator run
	RunTimeout = 10 * time.Minute
	// ShutdownTimeout bounds graceful HTTP shutdown
	ShutdownTimeout = 5 * time.Second
	// PDFExtractTimeout bounds the external pdftotext invocation
	PDFExtractTimeout = 60 * time.Second
)
