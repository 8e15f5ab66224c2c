package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"clinicdesk/backend/internal/store/postgres/migrations"
)

const (
	migrationsTable     = "clinicdesk_migrations"
	migrationLocksTable = "clinicdesk_migration_locks"

	migrationLockWait  = 30 * time.Second
	migrationLockRetry = 500 * time.Millisecond
)

func newMigrator(db *bun.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, migrations.Migrations,
		migrate.WithTableName(migrationsTable),
		migrate.WithLocksTableName(migrationLocksTable),
		migrate.WithMarkAppliedOnSuccess(true),
	)
}

// Migrate applies pending migrations and returns the group it applied, which
// is zero when the schema was already current.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	m := newMigrator(db)
	if err := m.Init(ctx); err != nil {
		return nil, fmt.Errorf("migrate: init: %w", err)
	}
	if err := lockMigrations(ctx, m); err != nil {
		return nil, err
	}
	defer func() {
		_ = m.Unlock(context.WithoutCancel(ctx))
	}()

	group, err := m.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return group, nil
}

// lockMigrations waits for another process's run to finish rather than
// failing on the first contended attempt.
func lockMigrations(ctx context.Context, m *migrate.Migrator) error {
	ctx, cancel := context.WithTimeout(ctx, migrationLockWait)
	defer cancel()

	ticker := time.NewTicker(migrationLockRetry)
	defer ticker.Stop()

	for {
		err := m.Lock(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("migrate: waiting for lock: %w", err)
		case <-ticker.C:
		}
	}
}
