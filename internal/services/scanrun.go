package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/netscope/internal/store"
	"github.com/HerbHall/netscope/pkg/models"
)

// ScanRunRepository records scanner phase executions.
type ScanRunRepository interface {
	// Create inserts a new scan run. If run.ID is empty, a UUID is generated.
	Create(ctx context.Context, run *models.ScanRun) error

	// UpdateStatus finishes a scan run with its final status.
	UpdateStatus(ctx context.Context, id string, status models.ScanRunStatus, attempts int, errMsg string, endedAt time.Time) error

	// ListByEngagement returns an engagement's runs in start order.
	ListByEngagement(ctx context.Context, engagementID string) ([]models.ScanRun, error)
}

// Compile-time interface guard.
var _ ScanRunRepository = (*SQLiteScanRunRepository)(nil)

// SQLiteScanRunRepository implements ScanRunRepository using SQLite.
type SQLiteScanRunRepository struct {
	db *sql.DB
}

// NewSQLiteScanRunRepository creates a ScanRunRepository and runs the
// engagement schema migrations.
func NewSQLiteScanRunRepository(ctx context.Context, st *store.SQLiteStore) (*SQLiteScanRunRepository, error) {
	if err := migrate(ctx, st); err != nil {
		return nil, err
	}
	return &SQLiteScanRunRepository{db: st.DB()}, nil
}

func (r *SQLiteScanRunRepository) Create(ctx context.Context, run *models.ScanRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.ScanRunRunning
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_runs (id, engagement_id, segment, phase, status, started_at, ended_at, attempts, error_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.EngagementID, run.Segment, run.Phase, string(run.Status),
		formatTime(run.StartedAt), nullTime(run.EndedAt), run.Attempts, run.ErrorMsg,
	)
	if err != nil {
		return fmt.Errorf("create scan run: %w", err)
	}
	return nil
}

func (r *SQLiteScanRunRepository) UpdateStatus(ctx context.Context, id string, status models.ScanRunStatus, attempts int, errMsg string, endedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE scan_runs SET status = ?, attempts = ?, error_msg = ?, ended_at = ? WHERE id = ?`,
		string(status), attempts, errMsg, formatTime(endedAt), id)
	if err != nil {
		return fmt.Errorf("update scan run status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteScanRunRepository) ListByEngagement(ctx context.Context, engagementID string) ([]models.ScanRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, engagement_id, segment, phase, status, started_at, ended_at, attempts, error_msg
		FROM scan_runs WHERE engagement_id = ? ORDER BY started_at, rowid`, engagementID)
	if err != nil {
		return nil, fmt.Errorf("list scan runs: %w", err)
	}
	defer rows.Close()

	runs := []models.ScanRun{}
	for rows.Next() {
		var (
			run       models.ScanRun
			status    string
			startedAt string
			endedAt   sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.EngagementID, &run.Segment, &run.Phase, &status,
			&startedAt, &endedAt, &run.Attempts, &run.ErrorMsg); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		run.Status = models.ScanRunStatus(status)
		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if run.EndedAt, err = parseNullTime(endedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan runs: %w", err)
	}
	return runs, nil
}
