package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return execInTx(ctx, db,
			`CREATE EXTENSION IF NOT EXISTS btree_gist WITH SCHEMA public`,
			`CREATE TABLE IF NOT EXISTS appointments (
				id               text PRIMARY KEY,
				seq              bigserial NOT NULL,
				patient_name     text NOT NULL,
				appointment_date text NOT NULL CHECK (appointment_date ~ '^\d{4}-\d{2}-\d{2}$'),
				appointment_time text NOT NULL CHECK (appointment_time ~ '^\d{2}:\d{2}$'),
				duration_minutes integer NOT NULL CHECK (duration_minutes > 0),
				doctor_name      text NOT NULL,
				status           text NOT NULL CHECK (status IN ('Scheduled', 'Upcoming', 'Confirmed', 'Completed', 'Cancelled')),
				mode             text NOT NULL CHECK (mode IN ('In-Person', 'Video', 'Phone')),
				type             text NOT NULL DEFAULT 'General Consultation',
				starts_at        timestamptz NOT NULL,
				ends_at          timestamptz NOT NULL,
				created_at       timestamptz NOT NULL DEFAULT now(),
				updated_at       timestamptz NOT NULL DEFAULT now(),
				CHECK (ends_at > starts_at)
			)`,
			`CREATE INDEX IF NOT EXISTS appointments_doctor_date_idx ON appointments (doctor_name, appointment_date)`,
			`CREATE INDEX IF NOT EXISTS appointments_status_idx ON appointments (status)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS appointments_seq_idx ON appointments (seq)`,
			`ALTER TABLE appointments
				ADD CONSTRAINT appointments_no_overlap
				EXCLUDE USING gist (doctor_name WITH =, tstzrange(starts_at, ends_at, '[)') WITH &&)
				WHERE (status <> 'Cancelled')`,
		)
	}, func(ctx context.Context, db *bun.DB) error {
		return execInTx(ctx, db, `DROP TABLE IF EXISTS appointments`)
	})
}
