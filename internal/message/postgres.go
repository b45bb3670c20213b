package message

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/parley/chat-relay/internal/clock"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("message: open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("message: postgres connection failed: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("message: migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("message: migrate source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("message: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("message: migrate up: %w", err)
	}
	return nil
}

// PostgresLog stores the message log in an append-only PostgreSQL table.
// The BIGSERIAL seq column is the authoritative insertion order.
type PostgresLog struct {
	db  *sql.DB
	clk clock.Clock
}

// NewPostgresLog creates a log backed by the given database handle.
func NewPostgresLog(db *sql.DB, clk clock.Clock) *PostgresLog {
	return &PostgresLog{db: db, clk: clk}
}

// Append inserts msg with a fresh ID and the current time.
func (l *PostgresLog) Append(ctx context.Context, msg Message) (Message, error) {
	msg.ID = uuid.New()
	msg.Time = l.clk.Now()

	const query = `
		INSERT INTO messages (id, from_name, to_name, body, kind, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := l.db.ExecContext(ctx, query,
		msg.ID, msg.From, msg.To, msg.Text, msg.Kind, msg.Time)
	if err != nil {
		return Message{}, fmt.Errorf("message: append: %w", err)
	}
	return msg, nil
}

// For returns name's view of the log in insertion order.
func (l *PostgresLog) For(ctx context.Context, name string) ([]Message, error) {
	const query = `
		SELECT id, from_name, to_name, body, kind, sent_at
		FROM messages
		WHERE from_name = $1 OR to_name = $1 OR to_name = $2
		ORDER BY seq`

	rows, err := l.db.QueryContext(ctx, query, name, Broadcast)
	if err != nil {
		return nil, fmt.Errorf("message: query for %s: %w", name, err)
	}
	return scanMessages(rows)
}

// ForLimited returns at most the last limit entries of name's view. The
// inner query selects the tail in reverse; the outer one restores
// insertion order.
func (l *PostgresLog) ForLimited(ctx context.Context, name string, limit int) ([]Message, error) {
	if limit <= 0 {
		return l.For(ctx, name)
	}

	const query = `
		SELECT id, from_name, to_name, body, kind, sent_at
		FROM (
			SELECT seq, id, from_name, to_name, body, kind, sent_at
			FROM messages
			WHERE from_name = $1 OR to_name = $1 OR to_name = $2
			ORDER BY seq DESC
			LIMIT $3
		) tail
		ORDER BY seq`

	rows, err := l.db.QueryContext(ctx, query, name, Broadcast, limit)
	if err != nil {
		return nil, fmt.Errorf("message: query for %s limit %d: %w", name, limit, err)
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Text, &m.Kind, &m.Time); err != nil {
			return nil, fmt.Errorf("message: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message: rows: %w", err)
	}
	return out, nil
}
