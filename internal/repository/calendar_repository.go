package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/room-reservation-api/internal/models"
)

// CalendarRepository stores linked Google accounts and the events pushed for reservations.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a CalendarRepository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// UpsertAccount creates or replaces the account of acc.UserID.
func (r *CalendarRepository) UpsertAccount(ctx context.Context, acc *models.CalendarAccount) error {
	now := time.Now().UTC()
	if acc.LinkedAt.IsZero() {
		acc.LinkedAt = now
	}
	acc.UpdatedAt = now
	const query = `INSERT INTO calendar_accounts (user_id, access_token, refresh_token, token_type, expiry, calendar_id, linked_at, updated_at)
VALUES (:user_id, :access_token, :refresh_token, :token_type, :expiry, :calendar_id, :linked_at, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET access_token = EXCLUDED.access_token,
	refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), calendar_accounts.refresh_token),
	token_type = EXCLUDED.token_type, expiry = EXCLUDED.expiry, calendar_id = EXCLUDED.calendar_id, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, acc); err != nil {
		return fmt.Errorf("upsert calendar account: %w", err)
	}
	return nil
}

// FindAccount returns the linked account of a user.
func (r *CalendarRepository) FindAccount(ctx context.Context, userID string) (*models.CalendarAccount, error) {
	const query = `SELECT user_id, access_token, refresh_token, token_type, expiry, calendar_id, linked_at, updated_at FROM calendar_accounts WHERE user_id = $1`
	var acc models.CalendarAccount
	if err := r.db.GetContext(ctx, &acc, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find calendar account: %w", err)
	}
	return &acc, nil
}

// UpdateToken persists a rotated OAuth token.
func (r *CalendarRepository) UpdateToken(ctx context.Context, acc *models.CalendarAccount) error {
	acc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE calendar_accounts SET access_token = :access_token, refresh_token = :refresh_token, token_type = :token_type, expiry = :expiry, updated_at = :updated_at WHERE user_id = :user_id`
	if _, err := r.db.NamedExecContext(ctx, query, acc); err != nil {
		return fmt.Errorf("update calendar token: %w", err)
	}
	return nil
}

// DeleteAccount unlinks a user's Google account.
func (r *CalendarRepository) DeleteAccount(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calendar_accounts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete calendar account: %w", err)
	}
	return expectAffected(res)
}

// CreateSyncLog records the remote event created for a participant.
func (r *CalendarRepository) CreateSyncLog(ctx context.Context, log *models.CalendarSyncLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO calendar_sync_logs (id, reservation_id, owner_id, event_id, created_at) VALUES (:id, :reservation_id, :owner_id, :event_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create calendar sync log: %w", err)
	}
	return nil
}

// ListSyncLogs returns every log of a reservation.
func (r *CalendarRepository) ListSyncLogs(ctx context.Context, reservationID string) ([]models.CalendarSyncLog, error) {
	const query = `SELECT id, reservation_id, owner_id, event_id, created_at FROM calendar_sync_logs WHERE reservation_id = $1 ORDER BY created_at`
	var out []models.CalendarSyncLog
	if err := r.db.SelectContext(ctx, &out, query, reservationID); err != nil {
		return nil, fmt.Errorf("list calendar sync logs: %w", err)
	}
	return out, nil
}

// DeleteSyncLog removes one log row.
func (r *CalendarRepository) DeleteSyncLog(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM calendar_sync_logs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete calendar sync log: %w", err)
	}
	return nil
}
