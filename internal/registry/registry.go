// Package registry stores known vehicles keyed by plate.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a plate is not registered.
var ErrNotFound = errors.New("registry: plate not found")

// Vehicle is a registered plate and its owner.
type Vehicle struct {
	Plate        string    `json:"plate"`
	Owner        string    `json:"owner"`
	Model        string    `json:"model"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Backend is the set of registry operations the service needs.
type Backend interface {
	Lookup(ctx context.Context, plate string) (*Vehicle, error)
	Upsert(ctx context.Context, v Vehicle) error
}

// Store keeps the registry in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and ensures the schema exists.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS plates (
			plate TEXT PRIMARY KEY,
			owner TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Lookup returns the vehicle registered under plate.
func (s *Store) Lookup(ctx context.Context, plate string) (*Vehicle, error) {
	var v Vehicle
	err := s.pool.QueryRow(ctx,
		`SELECT plate, owner, model, registered_at FROM plates WHERE plate = $1`, plate,
	).Scan(&v.Plate, &v.Owner, &v.Model, &v.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Upsert registers a vehicle, replacing owner and model if the plate exists.
func (s *Store) Upsert(ctx context.Context, v Vehicle) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO plates (plate, owner, model)
		VALUES ($1, $2, $3)
		ON CONFLICT (plate) DO UPDATE SET owner = EXCLUDED.owner, model = EXCLUDED.model
	`, v.Plate, v.Owner, v.Model)
	return err
}
