package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return execInTx(ctx, db,
			`ALTER TABLE appointments ADD COLUMN IF NOT EXISTS version integer NOT NULL DEFAULT 1 CHECK (version > 0)`,
		)
	}, func(ctx context.Context, db *bun.DB) error {
		return execInTx(ctx, db, `ALTER TABLE appointments DROP COLUMN IF EXISTS version`)
	})
}
