package pgstore

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/postbox/pkg/delivery"
)

func TestHistoryWhere(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter delivery.HistoryFilter
		where  string
		args   []any
	}{
		{"empty", delivery.HistoryFilter{Limit: 20}, "", nil},
		{
			"recipient",
			delivery.HistoryFilter{Recipient: "Ana@Example.com"},
			" WHERE lower(recipient) = lower($1)",
			[]any{"Ana@Example.com"},
		},
		{
			"all filters",
			delivery.HistoryFilter{
				Recipient:    "ana@example.com",
				DocumentType: delivery.DocumentInvoice,
				Status:       delivery.StatusSent,
				From:         &from,
				To:           &to,
			},
			" WHERE lower(recipient) = lower($1) AND document_type = $2 AND status = $3 AND created_at >= $4 AND created_at <= $5",
			[]any{"ana@example.com", "invoice", "sent", from, to},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			where, args := historyWhere(tt.filter)
			assert.Equal(t, tt.where, where)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	other := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, delivery.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), delivery.ErrNotFound},
		{"malformed uuid", &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation}, delivery.ErrNotFound},
		{"dangling log id", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, delivery.ErrNotFound},
		{"duplicate", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "delivery_logs_pkey"}, ErrDuplicate},
		{"other", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := mapError(tt.err, delivery.ErrNotFound)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMigrations(t *testing.T) {
	t.Parallel()

	files, err := fs.Glob(Migrations, MigrationsDir+"/*.sql")
	require.NoError(t, err)
	require.Len(t, files, 3)

	for _, f := range files {
		data, err := fs.ReadFile(Migrations, f)
		require.NoError(t, err)
		assert.Contains(t, string(data), "-- +goose Up", f)
		assert.Contains(t, string(data), "-- +goose Down", f)
	}
}

func TestNullable(t *testing.T) {
	t.Parallel()

	assert.Nil(t, nullable(""))
	require.NotNil(t, nullable("x"))
	assert.Equal(t, "x", *nullable("x"))
	assert.Nil(t, jobID(0))
	assert.Equal(t, int64(7), *jobID(7))
}
