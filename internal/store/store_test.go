package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/hyphertext/internal/document"
	"github.com/codefionn/hyphertext/internal/planning"
	"github.com/codefionn/hyphertext/internal/search"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "hyphertext.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) { fn(t, s) })
	}
}

func newPage(t *testing.T, s Store) *Page {
	t.Helper()
	page := &Page{OwnerID: "owner-1"}
	require.NoError(t, s.CreatePage(context.Background(), page))
	return page
}

func TestPages(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		page := newPage(t, s)
		assert.NotEmpty(t, page.ID)

		got, err := s.GetPage(ctx, page.ID)
		require.NoError(t, err)
		assert.Equal(t, document.Placeholder, got.HTMLContent)
		assert.Equal(t, "Untitled", got.Title)
		assert.Empty(t, got.ComponentMap)

		require.NoError(t, s.UpdatePageHTML(ctx, page.ID, "<p>v2</p>"))
		components := []document.Component{{ID: "hero", Selector: "#hero", Type: "section", Description: "top"}}
		require.NoError(t, s.UpdatePageSummary(ctx, page.ID, "a page", components))

		got, err = s.GetPage(ctx, page.ID)
		require.NoError(t, err)
		assert.Equal(t, "<p>v2</p>", got.HTMLContent)
		assert.Equal(t, "a page", got.HTMLSummary)
		assert.Equal(t, components, got.ComponentMap)

		_, err = s.GetPage(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.UpdatePageHTML(ctx, "missing", "x"), ErrNotFound)
	})
}

func TestChatHistory(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		page := newPage(t, s)

		insert := func(role, content string, status MessageStatus, typ MessageType) *ChatMessage {
			msg := &ChatMessage{PageID: page.ID, Role: role, Content: content, Status: status, Type: typ}
			require.NoError(t, s.InsertMessage(ctx, msg))
			return msg
		}

		insert(RoleUser, "one", StatusCompleted, TypeChat)
		insert(RoleAssistant, "plan", StatusCompleted, TypeThinking)
		insert(RoleAssistant, "two", StatusCompleted, TypeChat)
		pending := insert(RoleUser, "three", StatusPending, TypeChat)
		insert(RoleAssistant, "four?", StatusCompleted, TypeClarification)

		history, err := s.ChatHistory(ctx, page.ID, 8)
		require.NoError(t, err)
		var contents []string
		for _, m := range history {
			contents = append(contents, m.Content)
		}
		assert.Equal(t, []string{"one", "two", "four?"}, contents)

		history, err = s.ChatHistory(ctx, page.ID, 2)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "two", history[0].Content)

		require.NoError(t, s.UpdateMessageStatus(ctx, pending.ID, StatusCompleted))
		got, err := s.GetMessage(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got.Status)
		assert.Equal(t, TypeChat, got.Type)

		assert.ErrorIs(t, s.UpdateMessageStatus(ctx, "missing", StatusError), ErrNotFound)
	})
}

func TestMessageMeta(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		page := newPage(t, s)
		msg := &ChatMessage{
			PageID:  page.ID,
			Role:    RoleAssistant,
			Content: "Which colour?",
			Status:  StatusCompleted,
			Type:    TypeClarification,
			Meta:    map[string]any{"awaiting_clarification": true, "reason": "ambiguous"},
		}
		require.NoError(t, s.InsertMessage(ctx, msg))

		got, err := s.GetMessage(ctx, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, true, got.Meta["awaiting_clarification"])
		assert.Equal(t, "ambiguous", got.Meta["reason"])
	})
}

func TestEditHistory(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		page := newPage(t, s)

		for i, decision := range []string{"full_rewrite", "surgical_edit", "clarification", "surgical_edit", "unknown", "surgical_edit"} {
			entry := &EditHistoryEntry{
				PageID:     page.ID,
				MessageID:  "m",
				Complexity: "simple",
				Decision:   decision,
				Plan:       planning.Plan{Decision: "surgical_edit", Description: decision},
				Changes:    []ChangeRecord{{Tool: "str_replace", OldStrPreview: "<h1>", Success: true}},
				WebSearches: []SearchRecord{{
					Query:   "q",
					Results: []search.Result{{Title: "t", URL: "u"}},
				}},
				TokensUsed: i,
				Success:    decision != "unknown",
			}
			require.NoError(t, s.InsertEditHistory(ctx, entry))
			assert.NotZero(t, entry.ID)
		}

		last, err := s.EditHistory(ctx, page.ID, 5)
		require.NoError(t, err)
		require.Len(t, last, 5)
		assert.Equal(t, "surgical_edit", last[0].Decision)
		assert.Equal(t, 1, last[0].TokensUsed)
		assert.Equal(t, 5, last[4].TokensUsed)
		assert.False(t, last[3].Success)
		assert.Equal(t, "clarification", last[1].Plan.Description)
		assert.Equal(t, "<h1>", last[4].Changes[0].OldStrPreview)
		assert.Equal(t, "q", last[4].WebSearches[0].Query)

		all, err := s.EditHistory(ctx, page.ID, 0)
		require.NoError(t, err)
		assert.Len(t, all, 6)
	})
}

func TestClarifications(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		page := newPage(t, s)

		_, err := s.PendingClarification(ctx, page.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		c := &Clarification{PageID: page.ID, MessageID: "m1", Question: "Dark or light?"}
		require.NoError(t, s.InsertClarification(ctx, c))

		pending, err := s.PendingClarification(ctx, page.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, pending.ID)
		assert.Nil(t, pending.Answer)

		require.NoError(t, s.ResolveClarification(ctx, c.ID, "dark"))
		assert.ErrorIs(t, s.ResolveClarification(ctx, c.ID, "light"), ErrAlreadyResolved)
		assert.ErrorIs(t, s.ResolveClarification(ctx, "missing", "x"), ErrNotFound)

		_, err = s.PendingClarification(ctx, page.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestVersionsAreMonotonic(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		page := newPage(t, s)
		other := newPage(t, s)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.SnapshotVersion(ctx, page.ID, "<p>snap</p>")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		v, err := s.SnapshotVersion(ctx, other.ID, "<p>other</p>")
		require.NoError(t, err)
		assert.Equal(t, 1, v.VersionNum)
		assert.Equal(t, Checksum("<p>other</p>"), v.Checksum)
		assert.Equal(t, TriggerAgentComplete, v.TriggerType)

		versions, err := s.Versions(ctx, page.ID)
		require.NoError(t, err)
		require.Len(t, versions, 8)
		for i, v := range versions {
			assert.Equal(t, i+1, v.VersionNum)
		}
	})
}

func TestAssets(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		page := newPage(t, s)

		img := &Asset{PageID: page.ID, OwnerID: "o", AssetType: AssetImage, FileName: "a.png", FileType: "image/png"}
		doc := &Asset{PageID: page.ID, OwnerID: "o", AssetType: AssetDocument, FileName: "b.pdf", FileType: "application/pdf"}
		require.NoError(t, s.InsertAsset(ctx, img))
		require.NoError(t, s.InsertAsset(ctx, doc))

		pending, err := s.AssetsByStatus(ctx, page.ID, AssetPending)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		img.Status = AssetReady
		img.VisionDescription = "a cat"
		img.VisionTags = []string{"animal"}
		img.DominantColors = []string{"#000000"}
		img.Width, img.Height = 640, 480
		require.NoError(t, s.UpdateAsset(ctx, img))

		ready, err := s.AssetsByStatus(ctx, page.ID, AssetReady)
		require.NoError(t, err)
		require.Len(t, ready, 1)
		assert.Equal(t, "a cat", ready[0].VisionDescription)
		assert.Equal(t, []string{"animal"}, ready[0].VisionTags)
		assert.Equal(t, 640, ready[0].Width)

		got, err := s.GetAsset(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, AssetDocument, got.AssetType)

		all, err := s.ListAssets(ctx, page.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		assert.ErrorIs(t, s.UpdateAsset(ctx, &Asset{ID: "missing"}), ErrNotFound)
	})
}

func TestOpen(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)
}
