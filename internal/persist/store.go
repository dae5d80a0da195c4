package persist

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store handles persistence of channels, chat history, summary blocks and
// the macro variable pool using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new SQLite-backed store at the given path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db}

	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS channels (
			id          TEXT PRIMARY KEY,
			preset      TEXT NOT NULL,
			char_name   TEXT NOT NULL DEFAULT '',
			user_name   TEXT NOT NULL DEFAULT '',
			prefill     TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id  TEXT NOT NULL,
			role        TEXT NOT NULL,
			content     TEXT,
			summarized  INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			FOREIGN KEY (channel_id) REFERENCES channels(id)
		);

		CREATE TABLE IF NOT EXISTS summaries (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id    TEXT NOT NULL,
			content       TEXT NOT NULL,
			covers_until  INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,
			FOREIGN KEY (channel_id) REFERENCES channels(id)
		);

		CREATE TABLE IF NOT EXISTS macros (
			scope       TEXT NOT NULL,
			channel_id  TEXT NOT NULL DEFAULT '',
			name        TEXT NOT NULL,
			value       TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			UNIQUE(scope, channel_id, name)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id);
		CREATE INDEX IF NOT EXISTS idx_summaries_channel ON summaries(channel_id);
	`)
	return err
}

// UpsertChannel creates or updates a channel binding.
func (s *Store) UpsertChannel(ch Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO channels (id, preset, char_name, user_name, prefill, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			preset=excluded.preset, char_name=excluded.char_name,
			user_name=excluded.user_name, prefill=excluded.prefill,
			updated_at=excluded.updated_at
	`, ch.ID, ch.Preset, ch.CharName, ch.UserName, ch.Prefill, now, now)
	return err
}

// GetChannel loads one channel binding.
func (s *Store) GetChannel(id string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, preset, char_name, user_name, prefill, created_at, updated_at
		FROM channels WHERE id = ?
	`, id)

	var ch Channel
	var createdAt, updatedAt string
	if err := row.Scan(&ch.ID, &ch.Preset, &ch.CharName, &ch.UserName, &ch.Prefill, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("unknown channel: %s", id)
		}
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		ch.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		ch.UpdatedAt = t
	}
	return &ch, nil
}

// AddMessage appends a history message to a channel.
func (s *Store) AddMessage(channelID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO messages (channel_id, role, content, summarized, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, channelID, role, content, now)
	return err
}

// GetMessages returns up to limit history messages in chronological order.
// With unsummarizedOnly, messages already folded into a summary block are
// excluded.
func (s *Store) GetMessages(channelID string, limit int, unsummarizedOnly bool) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 200
	}

	query := `
		SELECT id, channel_id, role, content, summarized, created_at
		FROM messages
		WHERE channel_id = ?`
	if unsummarizedOnly {
		query += ` AND summarized = 0`
	}
	query += `
		ORDER BY id DESC
		LIMIT ?`

	rows, err := s.db.Query(query, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reversed []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var content sql.NullString
		var summarized int
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.Role, &content, &summarized, &createdAt); err != nil {
			return nil, err
		}
		msg.Content = content.String
		msg.Summarized = summarized != 0
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			msg.CreatedAt = t
		}
		reversed = append(reversed, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse to chronological order
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	return reversed, nil
}

// AddSummary stores a compressed block and marks the messages it covers.
func (s *Store) AddSummary(channelID, content string, coversUntil int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO summaries (channel_id, content, covers_until, created_at)
		VALUES (?, ?, ?, ?)
	`, channelID, content, coversUntil, now); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE messages SET summarized = 1
		WHERE channel_id = ? AND id <= ?
	`, channelID, coversUntil); err != nil {
		return err
	}
	return tx.Commit()
}

// GetSummaries returns a channel's summary blocks in creation order.
func (s *Store) GetSummaries(channelID string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, channel_id, content, covers_until, created_at
		FROM summaries
		WHERE channel_id = ?
		ORDER BY id ASC
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sm Summary
		var createdAt string
		if err := rows.Scan(&sm.ID, &sm.ChannelID, &sm.Content, &sm.CoversUntil, &createdAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			sm.CreatedAt = t
		}
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

// GetMacro reads one macro. The second return reports presence.
func (s *Store) GetMacro(scope, channelID, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT value FROM macros
		WHERE scope = ? AND channel_id = ? AND name = ?
	`, scope, channelID, name)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SetMacro creates or replaces one macro.
func (s *Store) SetMacro(scope, channelID, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO macros (scope, channel_id, name, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scope, channel_id, name) DO UPDATE SET
			value=excluded.value, updated_at=excluded.updated_at
	`, scope, channelID, name, value, now)
	return err
}

// DeleteMacro removes one macro if present.
func (s *Store) DeleteMacro(scope, channelID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		DELETE FROM macros WHERE scope = ? AND channel_id = ? AND name = ?
	`, scope, channelID, name)
	return err
}

// ListMacros enumerates a scope, sorted by name.
func (s *Store) ListMacros(scope, channelID string) ([]Macro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT scope, channel_id, name, value, updated_at
		FROM macros
		WHERE scope = ? AND channel_id = ?
		ORDER BY name ASC
	`, scope, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var macros []Macro
	for rows.Next() {
		var m Macro
		var updatedAt string
		if err := rows.Scan(&m.Scope, &m.ChannelID, &m.Name, &m.Value, &updatedAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			m.UpdatedAt = t
		}
		macros = append(macros, m)
	}
	return macros, rows.Err()
}

// MacroSnapshot reads a point-in-time copy of the global scope and one
// channel scope for macro expansion.
func (s *Store) MacroSnapshot(channelID string) (global, channel map[string]string, err error) {
	globals, err := s.ListMacros("global", "")
	if err != nil {
		return nil, nil, err
	}
	locals, err := s.ListMacros("channel", channelID)
	if err != nil {
		return nil, nil, err
	}

	global = make(map[string]string, len(globals))
	for _, m := range globals {
		global[m.Name] = m.Value
	}
	channel = make(map[string]string, len(locals))
	for _, m := range locals {
		channel[m.Name] = m.Value
	}
	return global, channel, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
