package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatExchange is one answered visitor message.
type ChatExchange struct {
	ID        uuid.UUID
	Message   string
	Reply     string
	Source    string // ai or fallback
	Kind      string // matcher branch for fallback replies
	SectionID string
	Score     int
	Provider  string
	Cached    bool
	LatencyMS int64
	CreatedAt time.Time
}

var migrations = map[string]string{
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS chat_exchanges (
			id          TEXT PRIMARY KEY,
			message     TEXT NOT NULL,
			reply       TEXT NOT NULL,
			source      TEXT NOT NULL,
			kind        TEXT NOT NULL DEFAULT '',
			section_id  TEXT NOT NULL DEFAULT '',
			score       INTEGER NOT NULL DEFAULT 0,
			provider    TEXT NOT NULL DEFAULT '',
			cached      BOOLEAN NOT NULL DEFAULT 0,
			latency_ms  INTEGER NOT NULL DEFAULT 0,
			created_at  TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_exchanges_created_at ON chat_exchanges (created_at);
	`,
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS chat_exchanges (
			id          UUID PRIMARY KEY,
			message     TEXT NOT NULL,
			reply       TEXT NOT NULL,
			source      TEXT NOT NULL,
			kind        TEXT NOT NULL DEFAULT '',
			section_id  TEXT NOT NULL DEFAULT '',
			score       INTEGER NOT NULL DEFAULT 0,
			provider    TEXT NOT NULL DEFAULT '',
			cached      BOOLEAN NOT NULL DEFAULT FALSE,
			latency_ms  BIGINT NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_exchanges_created_at ON chat_exchanges (created_at);
	`,
}

// ChatLogRepository records chat exchanges.
type ChatLogRepository struct {
	db     DB
	driver string
}

// NewChatLogRepository creates a repository for the given driver.
func NewChatLogRepository(db DB, driver string) *ChatLogRepository {
	return &ChatLogRepository{db: db, driver: driver}
}

// Migrate creates the chat_exchanges table if it does not exist.
func (r *ChatLogRepository) Migrate(ctx context.Context) error {
	ddl, ok := migrations[r.driver]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedDriver, r.driver)
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate chat_exchanges: %w", err)
	}
	return nil
}

// Record inserts an exchange, filling in ID and CreatedAt when unset.
func (r *ChatLogRepository) Record(ctx context.Context, ex *ChatExchange) error {
	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO chat_exchanges
			(id, message, reply, source, kind, section_id, score, provider, cached, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		ex.ID.String(), ex.Message, ex.Reply, ex.Source, ex.Kind, ex.SectionID,
		ex.Score, ex.Provider, ex.Cached, ex.LatencyMS, ex.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat exchange: %w", err)
	}
	return nil
}

// Get retrieves an exchange by ID.
func (r *ChatLogRepository) Get(ctx context.Context, id uuid.UUID) (*ChatExchange, error) {
	query := `
		SELECT id, message, reply, source, kind, section_id, score, provider, cached, latency_ms, created_at
		FROM chat_exchanges WHERE id = $1
	`
	ex, err := scanExchange(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat exchange: %w", err)
	}
	return ex, nil
}

// Recent returns up to limit exchanges, newest first.
func (r *ChatLogRepository) Recent(ctx context.Context, limit int) ([]ChatExchange, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, message, reply, source, kind, section_id, score, provider, cached, latency_ms, created_at
		FROM chat_exchanges
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat exchanges: %w", err)
	}
	defer rows.Close()

	var out []ChatExchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat exchange: %w", err)
		}
		out = append(out, *ex)
	}
	return out, rows.Err()
}

// CountBySource returns the number of exchanges per reply source.
func (r *ChatLogRepository) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM chat_exchanges GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("count chat exchanges: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExchange(row rowScanner) (*ChatExchange, error) {
	ex := &ChatExchange{}
	var id string
	err := row.Scan(
		&id, &ex.Message, &ex.Reply, &ex.Source, &ex.Kind, &ex.SectionID,
		&ex.Score, &ex.Provider, &ex.Cached, &ex.LatencyMS, &ex.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ex.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	return ex, nil
}
