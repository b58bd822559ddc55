// Package store persists pages, chat messages, edit history, clarification
// threads, versions and uploaded assets.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/codefionn/hyphertext/internal/document"
	"github.com/codefionn/hyphertext/internal/planning"
	"github.com/codefionn/hyphertext/internal/search"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyResolved is returned when a clarification is answered twice.
	ErrAlreadyResolved = errors.New("clarification already resolved")
)

// Page is one editable HTML document.
type Page struct {
	ID           string               `json:"id"`
	OwnerID      string               `json:"owner_id"`
	Title        string               `json:"title"`
	HTMLContent  string               `json:"html_content"`
	HTMLSummary  string               `json:"html_summary"`
	ComponentMap []document.Component `json:"component_map"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageStatus tracks a chat message through processing.
type MessageStatus string

const (
	StatusPending    MessageStatus = "pending"
	StatusProcessing MessageStatus = "processing"
	StatusCompleted  MessageStatus = "completed"
	StatusError      MessageStatus = "error"
)

// MessageType distinguishes ordinary replies from questions and plans.
type MessageType string

const (
	TypeChat          MessageType = "chat"
	TypeClarification MessageType = "clarification"
	TypeThinking      MessageType = "thinking"
)

// ChatMessage is a user request or an assistant reply.
type ChatMessage struct {
	ID        string         `json:"id"`
	PageID    string         `json:"page_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Status    MessageStatus  `json:"status"`
	Type      MessageType    `json:"type"`
	Meta      map[string]any `json:"meta,omitempty"`
	ModelID   string         `json:"model_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ChangeRecord is one applied (or attempted) tool call in an edit session.
type ChangeRecord struct {
	Tool          string `json:"tool"`
	Summary       string `json:"summary,omitempty"`
	OldStrPreview string `json:"old_str_preview,omitempty"`
	Success       bool   `json:"success"`
}

// SearchRecord is one web search performed during an edit session.
type SearchRecord struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// EditHistoryEntry is the append-only audit record of one request.
type EditHistoryEntry struct {
	ID                 int64          `json:"id"`
	PageID             string         `json:"page_id"`
	MessageID          string         `json:"message_id"`
	Complexity         string         `json:"complexity"`
	Decision           string         `json:"decision"`
	Plan               planning.Plan  `json:"plan"`
	Changes            []ChangeRecord `json:"changes"`
	ClarificationAsked bool           `json:"clarification_asked"`
	WebSearches        []SearchRecord `json:"web_searches"`
	ModelID            string         `json:"model_id"`
	TokensUsed         int            `json:"tokens_used"`
	Success            bool           `json:"success"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Clarification is a question the agent asked and the user's answer.
type Clarification struct {
	ID         string     `json:"id"`
	PageID     string     `json:"page_id"`
	MessageID  string     `json:"message_id"`
	Question   string     `json:"question"`
	Answer     *string    `json:"answer"`
	Resolved   bool       `json:"resolved"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// TriggerAgentComplete marks versions snapshotted at the end of a run.
const TriggerAgentComplete = "agent_complete"

// Version is an immutable snapshot of a page.
type Version struct {
	ID           int64     `json:"id"`
	PageID       string    `json:"page_id"`
	VersionNum   int       `json:"version_num"`
	HTMLSnapshot string    `json:"html_snapshot"`
	Checksum     string    `json:"checksum"`
	TriggerType  string    `json:"trigger_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Checksum returns the hex xxhash64 of html.
func Checksum(html string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(html))
}

// AssetType classifies uploads.
type AssetType string

const (
	AssetImage          AssetType = "image"
	AssetDocument       AssetType = "document"
	AssetExtractedImage AssetType = "extracted_image"
)

// AssetStatus tracks an asset through the pipeline.
type AssetStatus string

const (
	AssetPending    AssetStatus = "pending"
	AssetProcessing AssetStatus = "processing"
	AssetReady      AssetStatus = "ready"
	AssetFailed     AssetStatus = "failed"
)

// Asset is an uploaded or extracted file together with its analysis.
type Asset struct {
	ID               string      `json:"id"`
	PageID           string      `json:"page_id"`
	OwnerID          string      `json:"owner_id"`
	ParentAssetID    string      `json:"parent_asset_id,omitempty"`
	AssetType        AssetType   `json:"asset_type"`
	Status           AssetStatus `json:"processing_status"`
	FileName         string      `json:"file_name"`
	OriginalFileName string      `json:"original_file_name"`
	FileType         string      `json:"file_type"`
	StoragePath      string      `json:"storage_path"`
	PublicURL        string      `json:"public_url"`
	Width            int         `json:"width,omitempty"`
	Height           int         `json:"height,omitempty"`
	FileSizeBytes    int64       `json:"file_size_bytes"`
	Error            string      `json:"error,omitempty"`

	VisionDescription   string   `json:"vision_description,omitempty"`
	VisionTags          []string `json:"vision_tags,omitempty"`
	VisionSuggestedUse  string   `json:"vision_suggested_use,omitempty"`
	VisionAltText       string   `json:"vision_alt_text,omitempty"`
	VisionContainsText  bool     `json:"vision_contains_text"`
	VisionExtractedText string   `json:"vision_extracted_text,omitempty"`
	DominantColors      []string `json:"dominant_colors,omitempty"`

	ExtractedText    string `json:"extracted_text,omitempty"`
	ExtractedSummary string `json:"extracted_summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PageStore persists pages.
type PageStore interface {
	// CreatePage assigns an id when empty and starts the page from the
	// placeholder when it has no content.
	CreatePage(ctx context.Context, page *Page) error
	GetPage(ctx context.Context, id string) (*Page, error)
	UpdatePageHTML(ctx context.Context, id, html string) error
	UpdatePageSummary(ctx context.Context, id, summary string, components []document.Component) error
}

// MessageStore persists chat messages.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *ChatMessage) error
	GetMessage(ctx context.Context, id string) (*ChatMessage, error)
	UpdateMessageStatus(ctx context.Context, id string, status MessageStatus) error
	// ChatHistory returns the last limit completed messages of a page in
	// chronological order. Thinking messages are never included.
	ChatHistory(ctx context.Context, pageID string, limit int) ([]ChatMessage, error)
}

// HistoryStore persists the edit audit trail.
type HistoryStore interface {
	InsertEditHistory(ctx context.Context, entry *EditHistoryEntry) error
	// EditHistory returns the last limit entries in chronological order.
	// A limit of zero or less returns everything.
	EditHistory(ctx context.Context, pageID string, limit int) ([]EditHistoryEntry, error)
}

// ClarificationStore persists clarification threads.
type ClarificationStore interface {
	InsertClarification(ctx context.Context, c *Clarification) error
	// PendingClarification returns the newest unresolved thread of a page
	// or ErrNotFound.
	PendingClarification(ctx context.Context, pageID string) (*Clarification, error)
	ResolveClarification(ctx context.Context, id, answer string) error
}

// VersionStore persists page snapshots.
type VersionStore interface {
	// SnapshotVersion stores html as the next version of the page.
	SnapshotVersion(ctx context.Context, pageID, html string) (*Version, error)
	Versions(ctx context.Context, pageID string) ([]Version, error)
}

// AssetStore persists uploads and their analysis results.
type AssetStore interface {
	InsertAsset(ctx context.Context, asset *Asset) error
	GetAsset(ctx context.Context, id string) (*Asset, error)
	UpdateAsset(ctx context.Context, asset *Asset) error
	ListAssets(ctx context.Context, pageID string) ([]Asset, error)
	AssetsByStatus(ctx context.Context, pageID string, status AssetStatus) ([]Asset, error)
}

// Store is the full persistence surface.
type Store interface {
	PageStore
	MessageStore
	HistoryStore
	ClarificationStore
	VersionStore
	AssetStore
	Close() error
}
