// Package services provides repository interfaces and SQLite implementations
// for engagement history. This layer bridges the raw SQLite store with the
// CLI commands and the scan runner.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/netscope/internal/store"
)

// ListOptions controls pagination and sorting for list queries.
type ListOptions struct {
	Limit     int    // Max results per page (default 50, max 1000).
	Offset    int    // Number of results to skip.
	SortBy    string // Column name (validated per-repository).
	SortOrder string // "asc" or "desc" (default "desc").
}

// ListResult wraps a paginated result set with a total count.
type ListResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// Sentinel errors returned by repositories.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// normalizeListOptions applies defaults and caps to list options.
func normalizeListOptions(opts ListOptions) ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.SortOrder != "asc" {
		opts.SortOrder = "desc"
	}
	return opts
}

// timeLayout is how timestamps are stored in TEXT columns. The fixed-width
// fraction keeps lexical order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// migrate applies the engagement schema. Both repositories call it so
// either can be constructed first.
func migrate(ctx context.Context, st *store.SQLiteStore) error {
	if err := st.Migrate(ctx, "engagements", schemaMigrations); err != nil {
		return fmt.Errorf("engagement migrations: %w", err)
	}
	return nil
}

// schemaMigrations defines the engagements and scan_runs tables.
var schemaMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create engagements table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE engagements (
					id            TEXT PRIMARY KEY,
					slug          TEXT NOT NULL,
					customer_name TEXT NOT NULL,
					created_at    TEXT NOT NULL,
					authorized    INTEGER NOT NULL DEFAULT 0,
					profile_yaml  TEXT NOT NULL DEFAULT '',
					output_dir    TEXT NOT NULL DEFAULT '',
					closed_at     TEXT
				)`)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`CREATE INDEX idx_engagements_slug ON engagements(slug, created_at)`)
			return err
		},
	},
	{
		Version:     2,
		Description: "create scan_runs table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE scan_runs (
					id            TEXT PRIMARY KEY,
					engagement_id TEXT NOT NULL REFERENCES engagements(id) ON DELETE CASCADE,
					segment       TEXT NOT NULL,
					phase         TEXT NOT NULL,
					status        TEXT NOT NULL,
					started_at    TEXT NOT NULL,
					ended_at      TEXT,
					attempts      INTEGER NOT NULL DEFAULT 0,
					error_msg     TEXT NOT NULL DEFAULT ''
				)`)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`CREATE INDEX idx_scan_runs_engagement ON scan_runs(engagement_id, started_at)`)
			return err
		},
	},
}
