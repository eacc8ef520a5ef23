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

const noticeColumns = `id, popup, start_at, end_at, title, content, created_by, created_at, updated_at`

// NoticeRepository persists notices.
type NoticeRepository struct {
	db *sqlx.DB
}

// NewNoticeRepository constructs a NoticeRepository.
func NewNoticeRepository(db *sqlx.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// List returns notices newest first.
func (r *NoticeRepository) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	var conditions []string
	var args []interface{}
	if filter.ActiveAt != nil {
		args = append(args, *filter.ActiveAt)
		conditions = append(conditions, fmt.Sprintf("start_at <= $%d AND end_at >= $%d", len(args), len(args)))
	}
	if filter.Popup != nil {
		args = append(args, *filter.Popup)
		conditions = append(conditions, fmt.Sprintf("popup = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := paginate(filter.Page, filter.PageSize)

	var out []models.Notice
	listQuery := fmt.Sprintf("SELECT %s FROM notices%s ORDER BY created_at DESC LIMIT %d OFFSET %d", noticeColumns, where, size, offset)
	if err := r.db.SelectContext(ctx, &out, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list notices: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notices"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count notices: %w", err)
	}
	return out, total, nil
}

// FindByID returns a notice.
func (r *NoticeRepository) FindByID(ctx context.Context, id string) (*models.Notice, error) {
	var n models.Notice
	if err := r.db.GetContext(ctx, &n, `SELECT `+noticeColumns+` FROM notices WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notice: %w", err)
	}
	return &n, nil
}

// Create inserts a notice.
func (r *NoticeRepository) Create(ctx context.Context, n *models.Notice) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	const query = `INSERT INTO notices (id, popup, start_at, end_at, title, content, created_by, created_at, updated_at) VALUES (:id, :popup, :start_at, :end_at, :title, :content, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notice: %w", err)
	}
	return nil
}

// Update overwrites a notice.
func (r *NoticeRepository) Update(ctx context.Context, n *models.Notice) error {
	n.UpdatedAt = time.Now().UTC()
	const query = `UPDATE notices SET popup = :popup, start_at = :start_at, end_at = :end_at, title = :title, content = :content, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, n)
	if err != nil {
		return fmt.Errorf("update notice: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a notice.
func (r *NoticeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	return expectAffected(res)
}
