// Package pgstore persists delivery logs, attachments, tracking events and
// scheduled reminders in Postgres.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/reminder"
)

// Migrations holds the goose migrations for this store, under MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"

var ErrDuplicate = errors.New("pgstore: duplicate record")

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements delivery.LogStore and reminder.Store.
type Store struct {
	db DB
}

var (
	_ delivery.LogStore = (*Store)(nil)
	_ reminder.Store    = (*Store)(nil)
)

func New(db DB) *Store {
	return &Store{db: db}
}

// mapError translates driver errors. notFound is returned for missing rows,
// malformed ids and dangling foreign keys.
func mapError(err, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.InvalidTextRepresentation, pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", notFound, pgErr.Message)
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return err
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
