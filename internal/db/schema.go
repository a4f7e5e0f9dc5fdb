package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('donor', 'ngo')),
		phone         TEXT,
		address       TEXT,
		organization  TEXT,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS listings (
		id             TEXT PRIMARY KEY,
		owner_id       TEXT NOT NULL REFERENCES users (id),
		title          TEXT NOT NULL,
		description    TEXT NOT NULL,
		quantity       TEXT NOT NULL,
		food_type      TEXT NOT NULL CHECK (food_type IN ('veg', 'non-veg', 'both')),
		pickup_address TEXT NOT NULL,
		image_url      TEXT,
		expiry_hours   INTEGER NOT NULL CHECK (expiry_hours IN (2, 4, 6, 12, 24)),
		status         TEXT NOT NULL CHECK (status IN ('available', 'requested', 'completed')),
		claimed_by     TEXT REFERENCES users (id),
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL,
		completed_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS listings_owner_idx ON listings (owner_id)`,
	`CREATE INDEX IF NOT EXISTS listings_status_idx ON listings (status)`,
	`CREATE TABLE IF NOT EXISTS requests (
		id           TEXT PRIMARY KEY,
		listing_id   TEXT NOT NULL REFERENCES listings (id),
		requester_id TEXT NOT NULL REFERENCES users (id),
		message      TEXT,
		status       TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected')),
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS requests_requester_idx ON requests (requester_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS requests_one_accepted_idx ON requests (listing_id) WHERE status = 'accepted'`,
	`CREATE TABLE IF NOT EXISTS outbox_tasks (
		id           UUID PRIMARY KEY,
		status       TEXT NOT NULL,
		payload      JSONB NOT NULL,
		topic        TEXT NOT NULL,
		attempts     INTEGER NOT NULL DEFAULT 0,
		last_error   TEXT,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,
}

// EnsureSchema creates the tables the service needs if they are missing.
func EnsureSchema(ctx context.Context, database DB) error {
	for _, stmt := range schema {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
