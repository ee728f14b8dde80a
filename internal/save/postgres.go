package save

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"story-engine/pkg/database"
	"story-engine/pkg/migration"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	getRecordQuery    = `SELECT key, payload, updated_at FROM save_records WHERE key = $1`
	upsertRecordQuery = `
        INSERT INTO save_records (key, payload, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET
            payload = EXCLUDED.payload,
            updated_at = EXCLUDED.updated_at
    `
	deleteRecordsQuery = `DELETE FROM save_records WHERE key = ANY($1)`
)

type saveRecord struct {
	Key       string    `db:"key"`
	Payload   []byte    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PostgresBackend stores records in the save_records table.
type PostgresBackend struct {
	db     *database.Database
	logger *zap.Logger
}

var _ Backend = (*PostgresBackend)(nil)

// NewPostgresBackend applies the embedded migrations and returns a backend
// over db. Close closes db.
func NewPostgresBackend(ctx context.Context, db *database.Database, logger *zap.Logger) (*PostgresBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	migrator := migration.NewMigrator(migration.Config{
		MigrationsFS:   migrationsFS,
		MigrationsPath: "migrations",
	}, db.Pool)
	if err := migrator.Up(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate save schema: %w", err)
	}
	return &PostgresBackend{db: db, logger: logger.Named("PostgresBackend")}, nil
}

func (p *PostgresBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var rec saveRecord
	err := pgxscan.Get(ctx, p.db.Pool, &rec, getRecordQuery, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		p.logger.Error("Error getting save record", zap.String("key", key), zap.Error(err))
		return nil, false, fmt.Errorf("failed to get save record %s: %w", key, err)
	}
	return rec.Payload, true, nil
}

// Write applies the batch in one transaction.
func (p *PostgresBackend) Write(ctx context.Context, batch Batch) error {
	return p.db.ExecuteInTransaction(ctx, func(tx pgx.Tx) error {
		for _, rec := range batch.Puts {
			if _, err := tx.Exec(ctx, upsertRecordQuery, rec.Key, rec.Value); err != nil {
				return fmt.Errorf("failed to upsert save record %s: %w", rec.Key, err)
			}
		}
		if len(batch.Deletes) > 0 {
			if _, err := tx.Exec(ctx, deleteRecordsQuery, batch.Deletes); err != nil {
				return fmt.Errorf("failed to delete save records: %w", err)
			}
		}
		return nil
	})
}

func (p *PostgresBackend) Close() error {
	p.db.Close()
	return nil
}
