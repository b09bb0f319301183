// Package store persists chat conversations in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/haleyos/haley/internal/cache"
	"github.com/haleyos/haley/internal/model"
)

var (
	// ErrNotFound is returned when a chat does not exist
	ErrNotFound = errors.New("chat not found")
	// ErrUserRequired is returned when no user id is given
	ErrUserRequired = errors.New("user ID required")
)

const titleLength = 50

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	user_id       TEXT NOT NULL,
	id            TEXT NOT NULL,
	title         TEXT NOT NULL,
	model_mode    TEXT,
	created_at    INTEGER NOT NULL,
	last_active   INTEGER NOT NULL,
	message_count INTEGER NOT NULL,
	PRIMARY KEY (user_id, id)
);
CREATE TABLE IF NOT EXISTS messages (
	user_id   TEXT NOT NULL,
	chat_id   TEXT NOT NULL,
	seq       INTEGER NOT NULL,
	id        TEXT NOT NULL,
	role      TEXT NOT NULL,
	content   TEXT NOT NULL,
	status    TEXT,
	timestamp INTEGER NOT NULL,
	metadata  TEXT,
	PRIMARY KEY (user_id, chat_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_chats_last_active ON chats (user_id, last_active DESC);
`

// Store is a SQLite conversation store
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and creates if needed) the database at path. "~" expands to
// the home directory.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path required")
	}
	path = cache.ExpandDir(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create store directory")
	}

	// modernc.org/sqlite takes pragmas as _pragma= parameters
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db at %s", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to migrate db")
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveChat writes the full message list of a chat, replacing what was
// stored. The creation time of an existing chat is kept.
func (s *Store) SaveChat(ctx context.Context, userID, chatID string, messages []model.Message, modelMode string) error {
	if userID == "" {
		return ErrUserRequired
	}
	if chatID == "" {
		return errors.New("chat ID required")
	}

	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	created := now.UnixMilli()
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM chats WHERE user_id = ? AND id = ?", userID, chatID).Scan(&created)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(err, "failed to read chat")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chats (user_id, id, title, model_mode, created_at, last_active, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO UPDATE SET
			title = excluded.title,
			model_mode = excluded.model_mode,
			last_active = excluded.last_active,
			message_count = excluded.message_count`,
		userID, chatID, Title(messages), nullString(modelMode), created, now.UnixMilli(), countMessages(messages),
	); err != nil {
		return errors.Wrap(err, "failed to save chat")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE user_id = ? AND chat_id = ?", userID, chatID); err != nil {
		return errors.Wrap(err, "failed to clear messages")
	}

	for i, m := range messages {
		var metadata sql.NullString
		if m.Metadata != nil {
			data, err := json.Marshal(m.Metadata)
			if err != nil {
				return errors.Wrapf(err, "failed to encode metadata of message %s", m.ID)
			}
			metadata = sql.NullString{String: string(data), Valid: true}
		}
		ts := m.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (user_id, chat_id, seq, id, role, content, status, timestamp, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, chatID, i, m.ID, string(m.Role), m.Content, nullString(string(m.Status)), ts.UnixMilli(), metadata,
		); err != nil {
			return errors.Wrap(err, "failed to save message")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit chat")
}

// LoadChat returns the messages of a chat in order
func (s *Store) LoadChat(ctx context.Context, userID, chatID string) ([]model.Message, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM chats WHERE user_id = ? AND id = ?)", userID, chatID).Scan(&exists)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read chat")
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, status, timestamp, metadata
		FROM messages WHERE user_id = ? AND chat_id = ? ORDER BY seq`, userID, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load messages")
	}
	defer func() { _ = rows.Close() }()

	messages := []model.Message{}
	for rows.Next() {
		var (
			m        model.Message
			role     string
			status   sql.NullString
			ts       int64
			metadata sql.NullString
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &status, &ts, &metadata); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		m.Role = model.Role(role)
		m.Status = model.MessageStatus(status.String)
		m.Timestamp = time.UnixMilli(ts)
		if metadata.Valid {
			m.Metadata = &model.MessageMetadata{}
			if err := json.Unmarshal([]byte(metadata.String), m.Metadata); err != nil {
				return nil, errors.Wrapf(err, "failed to decode metadata of message %s", m.ID)
			}
		}
		messages = append(messages, m)
	}
	return messages, errors.Wrap(rows.Err(), "failed to load messages")
}

// LoadAllChats lists a user's chats, most recently active first
func (s *Store) LoadAllChats(ctx context.Context, userID string) ([]model.ConversationHistory, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.model_mode, c.created_at, c.last_active, c.message_count,
			COALESCE((SELECT m.content FROM messages m
				WHERE m.user_id = c.user_id AND m.chat_id = c.id
				ORDER BY m.seq DESC LIMIT 1), '')
		FROM chats c
		WHERE c.user_id = ?
		ORDER BY c.last_active DESC, c.created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chats")
	}
	defer func() { _ = rows.Close() }()

	chats := []model.ConversationHistory{}
	for rows.Next() {
		var (
			h                  model.ConversationHistory
			mode               sql.NullString
			created, lastActive int64
		)
		if err := rows.Scan(&h.ID, &h.Title, &mode, &created, &lastActive, &h.MessageCount, &h.LastMessage); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat")
		}
		h.ModelMode = mode.String
		h.Timestamp = time.UnixMilli(created)
		h.LastActive = time.UnixMilli(lastActive)
		chats = append(chats, h)
	}
	return chats, errors.Wrap(rows.Err(), "failed to list chats")
}

// DeleteChat removes a chat and its messages. Deleting a missing chat is not an error.
func (s *Store) DeleteChat(ctx context.Context, userID, chatID string) error {
	if userID == "" {
		return ErrUserRequired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE user_id = ? AND chat_id = ?", userID, chatID); err != nil {
		return errors.Wrap(err, "failed to delete messages")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chats WHERE user_id = ? AND id = ?", userID, chatID); err != nil {
		return errors.Wrap(err, "failed to delete chat")
	}
	return errors.Wrap(tx.Commit(), "failed to commit delete")
}

// Title is the first user message cut to 50 characters, or "New Chat"
func Title(messages []model.Message) string {
	for _, m := range messages {
		if m.Role != model.RoleUser {
			continue
		}
		r := []rune(m.Content)
		if len(r) > titleLength {
			return string(r[:titleLength]) + "..."
		}
		return m.Content
	}
	return "New Chat"
}

func countMessages(messages []model.Message) int {
	n := 0
	for _, m := range messages {
		if m.Role != model.RoleSystem {
			n++
		}
	}
	return n
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// FormatRelativeTime describes how long before now t was
func FormatRelativeTime(now, t time.Time) string {
	diff := now.Sub(t)
	mins := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%d min ago", mins)
	case hours < 24:
		return fmt.Sprintf("%d %s ago", hours, plural(hours, "hour"))
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		weeks := days / 7
		return fmt.Sprintf("%d %s ago", weeks, plural(weeks, "week"))
	default:
		return t.Format("1/2/2006")
	}
}

func plural(n int, word string) string {
	if n > 1 {
		return word + "s"
	}
	return word
}

// Summary is a one-line description of a chat for listings
func Summary(now time.Time, h model.ConversationHistory) string {
	last := strings.Join(strings.Fields(h.LastMessage), " ")
	if r := []rune(last); len(r) > 60 {
		last = string(r[:60]) + "..."
	}
	return fmt.Sprintf("%s  %s  (%d messages, %s)  %s", h.ID, h.Title, h.MessageCount, FormatRelativeTime(now, h.LastActive), last)
}
