package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables the service needs. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS app_user (
	id            UUID PRIMARY KEY,
	email         VARCHAR(320) NOT NULL UNIQUE,
	password_hash VARCHAR(100) NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS workout (
	id          UUID PRIMARY KEY,
	user_id     UUID NOT NULL REFERENCES app_user (id) ON DELETE CASCADE,
	title       VARCHAR(200) NOT NULL,
	description VARCHAR(500) NULL,
	weight      NUMERIC(8, 2) NOT NULL CHECK (weight >= 0),
	reps        INTEGER NOT NULL CHECK (reps > 0),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS workout_user_lineage_idx
	ON workout (user_id, title, description, created_at DESC);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
