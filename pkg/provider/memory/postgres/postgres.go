// Package postgres provides a memory.Provider backed by PostgreSQL, for
// deployments where many server instances share one memory store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxhive/voxhive/pkg/provider/llm"
	"github.com/voxhive/voxhive/pkg/provider/memory"
	"github.com/voxhive/voxhive/pkg/types"
)

// schema is applied on startup. One row per device, latest summary wins.
const schema = `
CREATE TABLE IF NOT EXISTS device_memory (
	device_id  TEXT PRIMARY KEY,
	summary    TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Compile-time assertion that Store satisfies memory.Provider.
var _ memory.Provider = (*Store)(nil)

// Store implements memory.Provider on a pgx connection pool.
type Store struct {
	pool  *pgxpool.Pool
	model llm.Provider
}

// New connects to dsn, ensures the schema exists, and returns the store.
// model is used to summarize transcripts on Save.
func New(ctx context.Context, dsn string, model llm.Provider) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: dsn must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return &Store{pool: pool, model: model}, nil
}

// Save implements memory.Provider.
func (s *Store) Save(ctx context.Context, deviceID string, transcript []types.Message) error {
	if deviceID == "" {
		return fmt.Errorf("postgres: deviceID must not be empty")
	}

	summary, err := memory.Summarize(ctx, s.model, transcript)
	if err != nil {
		return err
	}
	if summary == "" {
		return nil
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO device_memory (device_id, summary, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (device_id) DO UPDATE
		SET summary = EXCLUDED.summary, updated_at = now()`,
		deviceID, summary)
	if err != nil {
		return fmt.Errorf("postgres: save memory: %w", err)
	}
	return nil
}

// Query implements memory.Provider.
func (s *Store) Query(ctx context.Context, deviceID, _ string) (string, error) {
	var summary string
	err := s.pool.QueryRow(ctx,
		`SELECT summary FROM device_memory WHERE device_id = $1`, deviceID).Scan(&summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres: query memory: %w", err)
	}
	return summary, nil
}

// Close implements memory.Provider.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
