package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/netscope/internal/store"
	"github.com/HerbHall/netscope/pkg/models"
)

// EngagementRepository provides access to recorded engagements.
type EngagementRepository interface {
	// Create inserts a new engagement. If e.ID is empty, a UUID is generated.
	Create(ctx context.Context, e *models.Engagement) error

	// Get returns a single engagement by ID.
	Get(ctx context.Context, id string) (*models.Engagement, error)

	// GetBySlug returns the most recent engagement for a customer slug.
	GetBySlug(ctx context.Context, slug string) (*models.Engagement, error)

	// List returns a paginated list of engagements.
	List(ctx context.Context, opts ListOptions) (*ListResult[models.Engagement], error)

	// Close marks an engagement as archived at the given time.
	Close(ctx context.Context, id string, at time.Time) error
}

// Compile-time interface guard.
var _ EngagementRepository = (*SQLiteEngagementRepository)(nil)

// SQLiteEngagementRepository implements EngagementRepository using SQLite.
type SQLiteEngagementRepository struct {
	db *sql.DB
}

// NewSQLiteEngagementRepository creates an EngagementRepository and runs
// the engagement schema migrations.
func NewSQLiteEngagementRepository(ctx context.Context, st *store.SQLiteStore) (*SQLiteEngagementRepository, error) {
	if err := migrate(ctx, st); err != nil {
		return nil, err
	}
	return &SQLiteEngagementRepository{db: st.DB()}, nil
}

const engagementColumns = `id, slug, customer_name, created_at, authorized, profile_yaml, output_dir, closed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEngagement(row rowScanner) (*models.Engagement, error) {
	var (
		e         models.Engagement
		createdAt string
		closedAt  sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Slug, &e.CustomerName, &createdAt, &e.Authorized,
		&e.ProfileYAML, &e.OutputDir, &closedAt); err != nil {
		return nil, err
	}
	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.ClosedAt, err = parseNullTime(closedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *SQLiteEngagementRepository) Create(ctx context.Context, e *models.Engagement) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO engagements (`+engagementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Slug, e.CustomerName, formatTime(e.CreatedAt), e.Authorized,
		e.ProfileYAML, e.OutputDir, nullTime(e.ClosedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create engagement %s: %w", e.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("create engagement: %w", err)
	}
	return nil
}

func (r *SQLiteEngagementRepository) Get(ctx context.Context, id string) (*models.Engagement, error) {
	e, err := scanEngagement(r.db.QueryRowContext(ctx,
		`SELECT `+engagementColumns+` FROM engagements WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get engagement %q: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteEngagementRepository) GetBySlug(ctx context.Context, slug string) (*models.Engagement, error) {
	e, err := scanEngagement(r.db.QueryRowContext(ctx,
		`SELECT `+engagementColumns+` FROM engagements WHERE slug = ?
		ORDER BY created_at DESC LIMIT 1`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get engagement by slug %q: %w", slug, err)
	}
	return e, nil
}

func (r *SQLiteEngagementRepository) List(ctx context.Context, opts ListOptions) (*ListResult[models.Engagement], error) {
	opts = normalizeListOptions(opts)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM engagements`,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count engagements: %w", err)
	}

	// Validate sortBy against allowed columns.
	sortCol := "created_at"
	allowedSorts := map[string]string{
		"created_at":    "created_at",
		"customer_name": "customer_name",
		"slug":          "slug",
	}
	if col, ok := allowedSorts[opts.SortBy]; ok {
		sortCol = col
	}
	orderDir := "DESC"
	if opts.SortOrder == "asc" {
		orderDir = "ASC"
	}

	//nolint:gosec // sortCol and orderDir are validated above
	query := fmt.Sprintf(`SELECT %s FROM engagements ORDER BY %s %s, id LIMIT ? OFFSET ?`,
		engagementColumns, sortCol, orderDir)

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list engagements: %w", err)
	}
	defer rows.Close()

	items := []models.Engagement{}
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan engagement row: %w", err)
		}
		items = append(items, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engagements: %w", err)
	}

	return &ListResult[models.Engagement]{Items: items, Total: total}, nil
}

func (r *SQLiteEngagementRepository) Close(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE engagements SET closed_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("close engagement %q: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
