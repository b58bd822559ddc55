package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/hyphertext/internal/document"
)

// MemoryStore keeps everything in process memory. It backs tests and the
// ":memory:" database setting.
type MemoryStore struct {
	mu             sync.RWMutex
	pages          map[string]*Page
	messages       []*ChatMessage
	history        []*EditHistoryEntry
	clarifications []*Clarification
	versions       []*Version
	assets         []*Asset
	now            func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages: make(map[string]*Page),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreatePage(_ context.Context, page *Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if page.ID == "" {
		page.ID = uuid.NewString()
	}
	if _, exists := m.pages[page.ID]; exists {
		return fmt.Errorf("page %s already exists", page.ID)
	}
	if page.HTMLContent == "" {
		page.HTMLContent = document.Placeholder
	}
	if page.Title == "" {
		page.Title = "Untitled"
	}
	if page.ComponentMap == nil {
		page.ComponentMap = []document.Component{}
	}
	now := m.now()
	page.CreatedAt, page.UpdatedAt = now, now

	stored := *page
	stored.ComponentMap = append([]document.Component(nil), page.ComponentMap...)
	m.pages[page.ID] = &stored
	return nil
}

func (m *MemoryStore) GetPage(_ context.Context, id string) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	page, ok := m.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	out := *page
	out.ComponentMap = append([]document.Component{}, page.ComponentMap...)
	return &out, nil
}

func (m *MemoryStore) UpdatePageHTML(_ context.Context, id, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, ok := m.pages[id]
	if !ok {
		return fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	page.HTMLContent = html
	page.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) UpdatePageSummary(_ context.Context, id, summary string, components []document.Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, ok := m.pages[id]
	if !ok {
		return fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	page.HTMLSummary = summary
	page.ComponentMap = append([]document.Component{}, components...)
	page.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) InsertMessage(_ context.Context, msg *ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pages[msg.PageID]; !ok {
		return fmt.Errorf("page %s: %w", msg.PageID, ErrNotFound)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = StatusPending
	}
	if msg.Type == "" {
		msg.Type = TypeChat
	}
	msg.CreatedAt = m.now()

	stored := *msg
	m.messages = append(m.messages, &stored)
	return nil
}

func (m *MemoryStore) GetMessage(_ context.Context, id string) (*ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, msg := range m.messages {
		if msg.ID == id {
			out := *msg
			return &out, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
}

func (m *MemoryStore) UpdateMessageStatus(_ context.Context, id string, status MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages {
		if msg.ID == id {
			msg.Status = status
			return nil
		}
	}
	return fmt.Errorf("message %s: %w", id, ErrNotFound)
}

func (m *MemoryStore) ChatHistory(_ context.Context, pageID string, limit int) ([]ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ChatMessage
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		msg := m.messages[i]
		if msg.PageID != pageID || msg.Status != StatusCompleted || msg.Type == TypeThinking {
			continue
		}
		out = append(out, *msg)
	}
	reverse(out)
	return out, nil
}

func (m *MemoryStore) InsertEditHistory(_ context.Context, entry *EditHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.Changes == nil {
		entry.Changes = []ChangeRecord{}
	}
	if entry.WebSearches == nil {
		entry.WebSearches = []SearchRecord{}
	}
	entry.ID = int64(len(m.history) + 1)
	entry.CreatedAt = m.now()

	stored := *entry
	m.history = append(m.history, &stored)
	return nil
}

func (m *MemoryStore) EditHistory(_ context.Context, pageID string, limit int) ([]EditHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []EditHistoryEntry
	for i := len(m.history) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if m.history[i].PageID == pageID {
			out = append(out, *m.history[i])
		}
	}
	reverse(out)
	return out, nil
}

func (m *MemoryStore) InsertClarification(_ context.Context, c *Clarification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = m.now()
	stored := *c
	m.clarifications = append(m.clarifications, &stored)
	return nil
}

func (m *MemoryStore) PendingClarification(_ context.Context, pageID string) (*Clarification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.clarifications) - 1; i >= 0; i-- {
		c := m.clarifications[i]
		if c.PageID == pageID && !c.Resolved {
			out := *c
			return &out, nil
		}
	}
	return nil, fmt.Errorf("pending clarification for page %s: %w", pageID, ErrNotFound)
}

func (m *MemoryStore) ResolveClarification(_ context.Context, id, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clarifications {
		if c.ID != id {
			continue
		}
		if c.Resolved {
			return fmt.Errorf("clarification %s: %w", id, ErrAlreadyResolved)
		}
		now := m.now()
		c.Answer = &answer
		c.Resolved = true
		c.ResolvedAt = &now
		return nil
	}
	return fmt.Errorf("clarification %s: %w", id, ErrNotFound)
}

func (m *MemoryStore) SnapshotVersion(_ context.Context, pageID, html string) (*Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := 1
	for _, v := range m.versions {
		if v.PageID == pageID && v.VersionNum >= next {
			next = v.VersionNum + 1
		}
	}
	v := &Version{
		ID:           int64(len(m.versions) + 1),
		PageID:       pageID,
		VersionNum:   next,
		HTMLSnapshot: html,
		Checksum:     Checksum(html),
		TriggerType:  TriggerAgentComplete,
		CreatedAt:    m.now(),
	}
	m.versions = append(m.versions, v)
	out := *v
	return &out, nil
}

func (m *MemoryStore) Versions(_ context.Context, pageID string) ([]Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Version
	for _, v := range m.versions {
		if v.PageID == pageID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertAsset(_ context.Context, asset *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.Status == "" {
		asset.Status = AssetPending
	}
	asset.CreatedAt = m.now()
	stored := *asset
	m.assets = append(m.assets, &stored)
	return nil
}

func (m *MemoryStore) GetAsset(_ context.Context, id string) (*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.assets {
		if a.ID == id {
			out := *a
			return &out, nil
		}
	}
	return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
}

func (m *MemoryStore) UpdateAsset(_ context.Context, asset *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, a := range m.assets {
		if a.ID == asset.ID {
			stored := *asset
			stored.CreatedAt = a.CreatedAt
			m.assets[i] = &stored
			return nil
		}
	}
	return fmt.Errorf("asset %s: %w", asset.ID, ErrNotFound)
}

func (m *MemoryStore) ListAssets(_ context.Context, pageID string) ([]Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Asset
	for _, a := range m.assets {
		if a.PageID == pageID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *MemoryStore) AssetsByStatus(_ context.Context, pageID string, status AssetStatus) ([]Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Asset
	for _, a := range m.assets {
		if a.PageID == pageID && a.Status == status {
			out = append(out, *a)
		}
	}
	return out, nil
}

// Open returns the in-memory store for ":memory:" and a SQLite store for
// any other path.
func Open(path string) (Store, error) {
	if path == "" || path == ":memory:" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(path)
}
