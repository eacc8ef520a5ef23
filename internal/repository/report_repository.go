package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/room-reservation-api/internal/models"
)

const reportColumns = `rp.id, rp.reporter_id, u.name AS reporter_name, rp.category, rp.title, rp.content, rp.created_at, rp.updated_at`

// ReportRepository persists user reports and their comments.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// List returns reports newest first.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	var conditions []string
	var args []interface{}
	if filter.ReporterID != "" {
		args = append(args, filter.ReporterID)
		conditions = append(conditions, fmt.Sprintf("rp.reporter_id = $%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		conditions = append(conditions, fmt.Sprintf("rp.category = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := paginate(filter.Page, filter.PageSize)

	var out []models.Report
	listQuery := fmt.Sprintf("SELECT %s FROM reports rp JOIN users u ON u.id = rp.reporter_id%s ORDER BY rp.created_at DESC LIMIT %d OFFSET %d", reportColumns, where, size, offset)
	if err := r.db.SelectContext(ctx, &out, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reports rp"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return out, total, nil
}

// FindByID returns a report.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	var rp models.Report
	query := `SELECT ` + reportColumns + ` FROM reports rp JOIN users u ON u.id = rp.reporter_id WHERE rp.id = $1`
	if err := r.db.GetContext(ctx, &rp, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return &rp, nil
}

// Create inserts a report.
func (r *ReportRepository) Create(ctx context.Context, rp *models.Report) error {
	if rp.ID == "" {
		rp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rp.CreatedAt, rp.UpdatedAt = now, now
	const query = `INSERT INTO reports (id, reporter_id, category, title, content, created_at, updated_at) VALUES (:id, :reporter_id, :category, :title, :content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rp); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// Update overwrites a report.
func (r *ReportRepository) Update(ctx context.Context, rp *models.Report) error {
	rp.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reports SET category = :category, title = :title, content = :content, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, rp)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a report; comments cascade.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return expectAffected(res)
}

const commentColumns = `c.id, c.report_id, c.author_id, u.name AS author_name, c.content, c.created_at, c.updated_at`

// ListComments returns the comments of a report oldest first.
func (r *ReportRepository) ListComments(ctx context.Context, reportID string) ([]models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments c JOIN users u ON u.id = c.author_id WHERE c.report_id = $1 ORDER BY c.created_at ASC`
	var out []models.Comment
	if err := r.db.SelectContext(ctx, &out, query, reportID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return out, nil
}

// FindComment returns a comment.
func (r *ReportRepository) FindComment(ctx context.Context, id string) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments c JOIN users u ON u.id = c.author_id WHERE c.id = $1`
	var c models.Comment
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return &c, nil
}

// CreateComment inserts a comment.
func (r *ReportRepository) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	const query = `INSERT INTO comments (id, report_id, author_id, content, created_at, updated_at) VALUES (:id, :report_id, :author_id, :content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// UpdateComment overwrites a comment's content.
func (r *ReportRepository) UpdateComment(ctx context.Context, c *models.Comment) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1`, c.ID, c.Content, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return expectAffected(res)
}

// DeleteComment removes a comment.
func (r *ReportRepository) DeleteComment(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return expectAffected(res)
}
