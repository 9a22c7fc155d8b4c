package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/cropcare/backend/internal/audit"
)

// PostgresEventStore keeps the account audit trail in PostgreSQL.
type PostgresEventStore struct {
	pool *pgxpool.Pool
}

func NewPostgresEventStore(pool *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{pool: pool}
}

// NewPostgresPool opens and pings a connection pool.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the account_events table if it doesn't exist.
func (s *PostgresEventStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS account_events (
			id          BIGSERIAL PRIMARY KEY,
			user_id     VARCHAR(24),
			email       VARCHAR(255) NOT NULL DEFAULT '',
			action      VARCHAR(64)  NOT NULL,
			ip          VARCHAR(64)  NOT NULL DEFAULT '',
			success     BOOLEAN      NOT NULL,
			detail      TEXT         NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS account_events_user_idx ON account_events (user_id, occurred_at DESC);
	`)
	return err
}

// Record implements audit.Recorder.
func (s *PostgresEventStore) Record(ctx context.Context, ev audit.Event) error {
	var userID *string
	if ev.UserID != "" {
		userID = &ev.UserID
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO account_events (user_id, email, action, ip, success, detail, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		userID, ev.Email, ev.Action, ev.IP, ev.Success, ev.Detail, at,
	)
	if err != nil {
		return fmt.Errorf("insert account event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events for a user, newest first.
func (s *PostgresEventStore) RecentEvents(ctx context.Context, userID string, limit int) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(user_id, ''), email, action, ip, success, detail, occurred_at
		 FROM account_events WHERE user_id = $1
		 ORDER BY occurred_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query account events: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Event, error) {
		var ev audit.Event
		err := row.Scan(&ev.UserID, &ev.Email, &ev.Action, &ev.IP, &ev.Success, &ev.Detail, &ev.At)
		return ev, err
	})
}
