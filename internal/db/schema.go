package db

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	nickname      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS projects (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title      TEXT NOT NULL DEFAULT '',
	script_raw TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS projects_user_created_idx ON projects (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS blocks (
	id         UUID PRIMARY KEY,
	project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	sort_order DOUBLE PRECISION NOT NULL,
	text       TEXT NOT NULL DEFAULT '',
	keywords   TEXT[] NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL DEFAULT 'DRAFT',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS blocks_project_order_idx ON blocks (project_id, sort_order);

CREATE TABLE IF NOT EXISTS assets (
	id            UUID PRIMARY KEY,
	provider      TEXT NOT NULL,
	asset_type    TEXT NOT NULL,
	source_url    TEXT NOT NULL UNIQUE,
	thumbnail_url TEXT NOT NULL DEFAULT '',
	title         TEXT,
	license       TEXT,
	meta          JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS block_assets (
	id         UUID PRIMARY KEY,
	block_id   UUID NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
	asset_id   UUID NOT NULL REFERENCES assets(id),
	score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_primary BOOLEAN NOT NULL DEFAULT FALSE,
	chosen_by  TEXT NOT NULL DEFAULT 'AUTO',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (block_id, asset_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS block_assets_one_primary_idx ON block_assets (block_id) WHERE is_primary;

CREATE TABLE IF NOT EXISTS jobs (
	id            UUID PRIMARY KEY,
	project_id    UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	type          TEXT NOT NULL,
	status        TEXT NOT NULL,
	attempts      INTEGER NOT NULL DEFAULT 0,
	payload       JSONB,
	result        JSONB,
	error_message TEXT,
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS jobs_project_idx ON jobs (project_id, created_at);
`

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
