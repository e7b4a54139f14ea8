package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	// SQL drivers for the supported archive dialects.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lexlanka/gavel/pkg/config"
)

// ArchivedSession is one durable chat session.
type ArchivedSession struct {
	ID        string    `json:"id"`
	Name      string    `json:"session_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArchivedMessage is one durable chat turn.
type ArchivedMessage struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Metadata    string    `json:"metadata,omitempty"`
	SequenceNum int       `json:"sequence_num"`
	CreatedAt   time.Time `json:"created_at"`
}

// SQLArchive stores chat history in a relational database. It is
// optional infrastructure: callers treat a nil archive as disabled.
type SQLArchive struct {
	db      *sql.DB
	dialect string
}

// NewSQLArchive opens the configured database and ensures the schema.
// Returns (nil, nil) when no driver is configured.
func NewSQLArchive(cfg *config.ArchiveConfig) (*SQLArchive, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening %s archive: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	a := &SQLArchive{db: db, dialect: cfg.Driver}
	if err := a.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing archive schema: %w", err)
	}
	return a, nil
}

func (a *SQLArchive) ensureSchema() error {
	text := "TEXT"
	timestamp := "TIMESTAMP"
	if a.dialect == "mysql" {
		text = "VARCHAR(255)"
		timestamp = "DATETIME"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sessions (
			id %s PRIMARY KEY,
			session_name %s NOT NULL,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, text, text, timestamp, timestamp),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS session_messages (
			id %s PRIMARY KEY,
			session_id %s NOT NULL,
			role %s NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			sequence_num INTEGER NOT NULL,
			created_at %s NOT NULL
		)`, text, text, text, timestamp),
		`CREATE INDEX IF NOT EXISTS idx_session_messages_session
			ON session_messages (session_id, sequence_num)`,
	}

	for _, stmt := range statements {
		if _, err := a.db.Exec(stmt); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; a duplicate
			// index error on re-run is harmless.
			if a.dialect == "mysql" && strings.Contains(stmt, "CREATE INDEX") {
				continue
			}
			return err
		}
	}
	return nil
}

// rebind converts ?-style placeholders to the dialect's form.
func (a *SQLArchive) rebind(query string) string {
	if a.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping checks database reachability.
func (a *SQLArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database handle.
func (a *SQLArchive) Close() error {
	return a.db.Close()
}

// CreateSession inserts a session row and returns it.
func (a *SQLArchive) CreateSession(ctx context.Context, name string) (*ArchivedSession, error) {
	now := time.Now().UTC()
	s := &ArchivedSession{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := a.db.ExecContext(ctx, a.rebind(
		`INSERT INTO sessions (id, session_name, created_at, updated_at) VALUES (?, ?, ?, ?)`),
		s.ID, s.Name, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s, nil
}

// ListSessions returns all sessions, most recently updated first.
func (a *SQLArchive) ListSessions(ctx context.Context) ([]ArchivedSession, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, session_name, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []ArchivedSession
	for rows.Next() {
		var s ArchivedSession
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SessionWithMessages returns one session and its ordered messages.
func (a *SQLArchive) SessionWithMessages(ctx context.Context, sessionID string) (*ArchivedSession, []ArchivedMessage, error) {
	var s ArchivedSession
	err := a.db.QueryRowContext(ctx, a.rebind(
		`SELECT id, session_name, created_at, updated_at FROM sessions WHERE id = ?`),
		sessionID).Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading session: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, a.rebind(
		`SELECT id, session_id, role, content, COALESCE(metadata, ''), sequence_num, created_at
		FROM session_messages WHERE session_id = ? ORDER BY sequence_num`),
		sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var msgs []ArchivedMessage
	for rows.Next() {
		var m ArchivedMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content,
			&m.Metadata, &m.SequenceNum, &m.CreatedAt); err != nil {
			return nil, nil, err
		}
		msgs = append(msgs, m)
	}
	return &s, msgs, rows.Err()
}

// AppendMessage appends one turn, assigning the next sequence number
// and bumping the session's updated_at. The session row is created on
// first append.
func (a *SQLArchive) AppendMessage(ctx context.Context, sessionID, role, content, metadata string) (*ArchivedMessage, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var exists int
	err = tx.QueryRowContext(ctx, a.rebind(
		`SELECT COUNT(1) FROM sessions WHERE id = ?`), sessionID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		if _, err := tx.ExecContext(ctx, a.rebind(
			`INSERT INTO sessions (id, session_name, created_at, updated_at) VALUES (?, ?, ?, ?)`),
			sessionID, sessionID, now, now); err != nil {
			return nil, err
		}
	}

	var next int
	if err := tx.QueryRowContext(ctx, a.rebind(
		`SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM session_messages WHERE session_id = ?`),
		sessionID).Scan(&next); err != nil {
		return nil, err
	}

	m := &ArchivedMessage{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Role:        role,
		Content:     content,
		Metadata:    metadata,
		SequenceNum: next,
		CreatedAt:   now,
	}
	if _, err := tx.ExecContext(ctx, a.rebind(
		`INSERT INTO session_messages (id, session_id, role, content, metadata, sequence_num, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.SessionID, m.Role, m.Content, m.Metadata, m.SequenceNum, m.CreatedAt); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, a.rebind(
		`UPDATE sessions SET updated_at = ? WHERE id = ?`), now, sessionID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteSession removes a session and its messages.
func (a *SQLArchive) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, a.rebind(
		`DELETE FROM session_messages WHERE session_id = ?`), sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, a.rebind(
		`DELETE FROM sessions WHERE id = ?`), sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearAll removes every session and message.
func (a *SQLArchive) ClearAll(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM session_messages`); err != nil {
		return err
	}
	_, err := a.db.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}
