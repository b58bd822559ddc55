package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/hyphertext/internal/document"
)

// SQLiteStore is the database backed Store.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and migrates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Immediate transactions take the write lock up front so concurrent
	// version snapshots serialize instead of failing on upgrade.
	dsn := dbPath + "?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, dbPath: dbPath, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		html_content TEXT NOT NULL DEFAULT '',
		html_summary TEXT NOT NULL DEFAULT '',
		component_map TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		type TEXT NOT NULL DEFAULT 'chat',
		meta TEXT,
		model_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS edit_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id TEXT NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		complexity TEXT NOT NULL DEFAULT '',
		decision TEXT NOT NULL DEFAULT '',
		plan_json TEXT NOT NULL DEFAULT '{}',
		changes TEXT NOT NULL DEFAULT '[]',
		clarification_asked BOOLEAN NOT NULL DEFAULT FALSE,
		web_searches TEXT NOT NULL DEFAULT '[]',
		model_id TEXT NOT NULL DEFAULT '',
		tokens_used INTEGER NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS clarification_threads (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		question TEXT NOT NULL,
		answer TEXT,
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		resolved_at DATETIME,
		FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS page_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id TEXT NOT NULL,
		version_num INTEGER NOT NULL,
		html_snapshot TEXT NOT NULL,
		checksum TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (page_id, version_num),
		FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		owner_id TEXT NOT NULL DEFAULT '',
		parent_asset_id TEXT NOT NULL DEFAULT '',
		asset_type TEXT NOT NULL,
		processing_status TEXT NOT NULL DEFAULT 'pending',
		file_name TEXT NOT NULL DEFAULT '',
		original_file_name TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL DEFAULT '',
		storage_path TEXT NOT NULL DEFAULT '',
		public_url TEXT NOT NULL DEFAULT '',
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		file_size_bytes INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		vision_description TEXT NOT NULL DEFAULT '',
		vision_tags TEXT NOT NULL DEFAULT '[]',
		vision_suggested_use TEXT NOT NULL DEFAULT '',
		vision_alt_text TEXT NOT NULL DEFAULT '',
		vision_contains_text BOOLEAN NOT NULL DEFAULT FALSE,
		vision_extracted_text TEXT NOT NULL DEFAULT '',
		dominant_colors TEXT NOT NULL DEFAULT '[]',
		extracted_text TEXT NOT NULL DEFAULT '',
		extracted_summary TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_page ON chat_messages(page_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_edit_history_page ON edit_history(page_id, id);
	CREATE INDEX IF NOT EXISTS idx_clarifications_page ON clarification_threads(page_id, resolved);
	CREATE INDEX IF NOT EXISTS idx_assets_page_status ON assets(page_id, processing_status);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalJSON(raw sql.NullString, v any) error {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" || raw.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), v)
}

func checkAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

// Page operations

func (s *SQLiteStore) CreatePage(ctx context.Context, page *Page) error {
	if page.ID == "" {
		page.ID = uuid.NewString()
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
	now := s.now()
	page.CreatedAt, page.UpdatedAt = now, now

	components, err := marshalJSON(page.ComponentMap)
	if err != nil {
		return fmt.Errorf("failed to encode component map: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pages (id, owner_id, title, html_content, html_summary, component_map, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, page.ID, page.OwnerID, page.Title, page.HTMLContent, page.HTMLSummary, components, page.CreatedAt, page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPage(ctx context.Context, id string) (*Page, error) {
	page := &Page{}
	var components sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, html_content, html_summary, component_map, created_at, updated_at
		FROM pages WHERE id = ?
	`, id).Scan(&page.ID, &page.OwnerID, &page.Title, &page.HTMLContent, &page.HTMLSummary, &components, &page.CreatedAt, &page.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	if err := unmarshalJSON(components, &page.ComponentMap); err != nil {
		return nil, fmt.Errorf("failed to decode component map: %w", err)
	}
	if page.ComponentMap == nil {
		page.ComponentMap = []document.Component{}
	}
	return page, nil
}

func (s *SQLiteStore) UpdatePageHTML(ctx context.Context, id, html string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE pages SET html_content = ?, updated_at = ? WHERE id = ?`, html, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update page html: %w", err)
	}
	return checkAffected(res, "page", id)
}

func (s *SQLiteStore) UpdatePageSummary(ctx context.Context, id, summary string, components []document.Component) error {
	if components == nil {
		components = []document.Component{}
	}
	encoded, err := marshalJSON(components)
	if err != nil {
		return fmt.Errorf("failed to encode component map: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE pages SET html_summary = ?, component_map = ?, updated_at = ? WHERE id = ?
	`, summary, encoded, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update page summary: %w", err)
	}
	return checkAffected(res, "page", id)
}

// Message operations

func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = StatusPending
	}
	if msg.Type == "" {
		msg.Type = TypeChat
	}
	msg.CreatedAt = s.now()

	var meta sql.NullString
	if msg.Meta != nil {
		encoded, err := marshalJSON(msg.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode message meta: %w", err)
		}
		meta = sql.NullString{String: encoded, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, page_id, role, content, status, type, meta, model_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.PageID, msg.Role, msg.Content, string(msg.Status), string(msg.Type), meta, msg.ModelID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

const messageColumns = `id, page_id, role, content, status, type, meta, model_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*ChatMessage, error) {
	msg := &ChatMessage{}
	var status, typ string
	var meta sql.NullString
	if err := row.Scan(&msg.ID, &msg.PageID, &msg.Role, &msg.Content, &status, &typ, &meta, &msg.ModelID, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.Status = MessageStatus(status)
	msg.Type = MessageType(typ)
	if err := unmarshalJSON(meta, &msg.Meta); err != nil {
		return nil, fmt.Errorf("failed to decode message meta: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*ChatMessage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, id string, status MessageStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chat_messages SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	return checkAffected(res, "message", id)
}

func (s *SQLiteStore) ChatHistory(ctx context.Context, pageID string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM chat_messages
		WHERE page_id = ? AND status = ? AND type != ?
		ORDER BY rowid DESC
		LIMIT ?
	`, pageID, string(StatusCompleted), string(TypeThinking), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// Edit history operations

func (s *SQLiteStore) InsertEditHistory(ctx context.Context, entry *EditHistoryEntry) error {
	entry.CreatedAt = s.now()
	plan, err := marshalJSON(entry.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if entry.Changes == nil {
		entry.Changes = []ChangeRecord{}
	}
	if entry.WebSearches == nil {
		entry.WebSearches = []SearchRecord{}
	}
	changes, err := marshalJSON(entry.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode changes: %w", err)
	}
	searches, err := marshalJSON(entry.WebSearches)
	if err != nil {
		return fmt.Errorf("failed to encode web searches: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO edit_history (page_id, message_id, complexity, decision, plan_json, changes,
			clarification_asked, web_searches, model_id, tokens_used, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.PageID, entry.MessageID, entry.Complexity, entry.Decision, plan, changes,
		entry.ClarificationAsked, searches, entry.ModelID, entry.TokensUsed, entry.Success, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert edit history: %w", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read edit history id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EditHistory(ctx context.Context, pageID string, limit int) ([]EditHistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, message_id, complexity, decision, plan_json, changes,
			clarification_asked, web_searches, model_id, tokens_used, success, created_at
		FROM edit_history WHERE page_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query edit history: %w", err)
	}
	defer rows.Close()

	var out []EditHistoryEntry
	for rows.Next() {
		var e EditHistoryEntry
		var plan, changes, searches sql.NullString
		if err := rows.Scan(&e.ID, &e.PageID, &e.MessageID, &e.Complexity, &e.Decision, &plan, &changes,
			&e.ClarificationAsked, &searches, &e.ModelID, &e.TokensUsed, &e.Success, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan edit history: %w", err)
		}
		if err := unmarshalJSON(plan, &e.Plan); err != nil {
			return nil, fmt.Errorf("failed to decode plan: %w", err)
		}
		if err := unmarshalJSON(changes, &e.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode changes: %w", err)
		}
		if err := unmarshalJSON(searches, &e.WebSearches); err != nil {
			return nil, fmt.Errorf("failed to decode web searches: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// Clarification operations

func (s *SQLiteStore) InsertClarification(ctx context.Context, c *Clarification) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clarification_threads (id, page_id, message_id, question, answer, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.PageID, c.MessageID, c.Question, c.Answer, c.Resolved, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert clarification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PendingClarification(ctx context.Context, pageID string) (*Clarification, error) {
	c := &Clarification{}
	var answer sql.NullString
	var resolvedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, page_id, message_id, question, answer, resolved, created_at, resolved_at
		FROM clarification_threads
		WHERE page_id = ? AND resolved = FALSE
		ORDER BY rowid DESC
		LIMIT 1
	`, pageID).Scan(&c.ID, &c.PageID, &c.MessageID, &c.Question, &answer, &c.Resolved, &c.CreatedAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending clarification for page %s: %w", pageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load clarification: %w", err)
	}
	if answer.Valid {
		c.Answer = &answer.String
	}
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.Time
	}
	return c, nil
}

func (s *SQLiteStore) ResolveClarification(ctx context.Context, id, answer string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clarification_threads SET answer = ?, resolved = TRUE, resolved_at = ?
		WHERE id = ? AND resolved = FALSE
	`, answer, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve clarification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clarification_threads WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check clarification: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("clarification %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("clarification %s: %w", id, ErrAlreadyResolved)
}

// Version operations

func (s *SQLiteStore) SnapshotVersion(ctx context.Context, pageID, html string) (*Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	v := &Version{
		PageID:       pageID,
		HTMLSnapshot: html,
		Checksum:     Checksum(html),
		TriggerType:  TriggerAgentComplete,
		CreatedAt:    s.now(),
	}
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version_num), 0) + 1 FROM page_versions WHERE page_id = ?
	`, pageID).Scan(&v.VersionNum); err != nil {
		return nil, fmt.Errorf("failed to read next version: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO page_versions (page_id, version_num, html_snapshot, checksum, trigger_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.PageID, v.VersionNum, v.HTMLSnapshot, v.Checksum, v.TriggerType, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read version id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit version: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) Versions(ctx context.Context, pageID string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, version_num, html_snapshot, checksum, trigger_type, created_at
		FROM page_versions WHERE page_id = ?
		ORDER BY version_num
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.PageID, &v.VersionNum, &v.HTMLSnapshot, &v.Checksum, &v.TriggerType, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Asset operations

const assetColumns = `id, page_id, owner_id, parent_asset_id, asset_type, processing_status, file_name,
	original_file_name, file_type, storage_path, public_url, width, height, file_size_bytes, error,
	vision_description, vision_tags, vision_suggested_use, vision_alt_text, vision_contains_text,
	vision_extracted_text, dominant_colors, extracted_text, extracted_summary, created_at`

func assetArgs(a *Asset) ([]any, error) {
	tags, err := marshalJSON(nonNil(a.VisionTags))
	if err != nil {
		return nil, err
	}
	colors, err := marshalJSON(nonNil(a.DominantColors))
	if err != nil {
		return nil, err
	}
	return []any{
		a.ID, a.PageID, a.OwnerID, a.ParentAssetID, string(a.AssetType), string(a.Status), a.FileName,
		a.OriginalFileName, a.FileType, a.StoragePath, a.PublicURL, a.Width, a.Height, a.FileSizeBytes, a.Error,
		a.VisionDescription, tags, a.VisionSuggestedUse, a.VisionAltText, a.VisionContainsText,
		a.VisionExtractedText, colors, a.ExtractedText, a.ExtractedSummary, a.CreatedAt,
	}, nil
}

func scanAsset(row rowScanner) (*Asset, error) {
	a := &Asset{}
	var assetType, status string
	var tags, colors sql.NullString
	if err := row.Scan(&a.ID, &a.PageID, &a.OwnerID, &a.ParentAssetID, &assetType, &status, &a.FileName,
		&a.OriginalFileName, &a.FileType, &a.StoragePath, &a.PublicURL, &a.Width, &a.Height, &a.FileSizeBytes, &a.Error,
		&a.VisionDescription, &tags, &a.VisionSuggestedUse, &a.VisionAltText, &a.VisionContainsText,
		&a.VisionExtractedText, &colors, &a.ExtractedText, &a.ExtractedSummary, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.AssetType = AssetType(assetType)
	a.Status = AssetStatus(status)
	if err := unmarshalJSON(tags, &a.VisionTags); err != nil {
		return nil, fmt.Errorf("failed to decode vision tags: %w", err)
	}
	if err := unmarshalJSON(colors, &a.DominantColors); err != nil {
		return nil, fmt.Errorf("failed to decode dominant colors: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) InsertAsset(ctx context.Context, asset *Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.Status == "" {
		asset.Status = AssetPending
	}
	asset.CreatedAt = s.now()

	args, err := assetArgs(asset)
	if err != nil {
		return fmt.Errorf("failed to encode asset: %w", err)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	if _, err := s.db.ExecContext(ctx, `INSERT INTO assets (`+assetColumns+`) VALUES (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAsset(ctx context.Context, id string) (*Asset, error) {
	a, err := scanAsset(s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) UpdateAsset(ctx context.Context, asset *Asset) error {
	tags, err := marshalJSON(nonNil(asset.VisionTags))
	if err != nil {
		return fmt.Errorf("failed to encode vision tags: %w", err)
	}
	colors, err := marshalJSON(nonNil(asset.DominantColors))
	if err != nil {
		return fmt.Errorf("failed to encode dominant colors: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE assets SET processing_status = ?, file_name = ?, file_type = ?, storage_path = ?, public_url = ?,
			width = ?, height = ?, file_size_bytes = ?, error = ?,
			vision_description = ?, vision_tags = ?, vision_suggested_use = ?, vision_alt_text = ?,
			vision_contains_text = ?, vision_extracted_text = ?, dominant_colors = ?,
			extracted_text = ?, extracted_summary = ?
		WHERE id = ?
	`, string(asset.Status), asset.FileName, asset.FileType, asset.StoragePath, asset.PublicURL,
		asset.Width, asset.Height, asset.FileSizeBytes, asset.Error,
		asset.VisionDescription, tags, asset.VisionSuggestedUse, asset.VisionAltText,
		asset.VisionContainsText, asset.VisionExtractedText, colors,
		asset.ExtractedText, asset.ExtractedSummary, asset.ID)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return checkAffected(res, "asset", asset.ID)
}

func (s *SQLiteStore) queryAssets(ctx context.Context, query string, args ...any) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListAssets(ctx context.Context, pageID string) ([]Asset, error) {
	return s.queryAssets(ctx, `SELECT `+assetColumns+` FROM assets WHERE page_id = ? ORDER BY rowid`, pageID)
}

func (s *SQLiteStore) AssetsByStatus(ctx context.Context, pageID string, status AssetStatus) ([]Asset, error) {
	return s.queryAssets(ctx, `
		SELECT `+assetColumns+` FROM assets
		WHERE page_id = ? AND processing_status = ?
		ORDER BY rowid
	`, pageID, string(status))
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
