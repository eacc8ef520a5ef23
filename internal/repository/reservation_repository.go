package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/room-reservation-api/internal/models"
)

var (
	// ErrSlotTaken is returned when an occupying reservation overlaps the requested interval.
	ErrSlotTaken = errors.New("reservation slot already taken")
	// ErrSlotBusy is returned when the room/day lock was not granted within lock_timeout.
	ErrSlotBusy = errors.New("reservation slot is locked by another writer")
)

const pqLockNotAvailable = "55P03"

const reservationColumns = `r.id, r.room_id, rm.name AS room_name, r.date, r.start_at, r.end_at, r.status, r.booker_id,
u.user_no AS booker_no, u.name AS booker_name,
ARRAY(SELECT c.user_id::text FROM reservation_companions c WHERE c.reservation_id = r.id ORDER BY c.user_id) AS companion_ids,
r.reason, r.is_attended, r.check_in_deadline, r.cancelled_at, r.created_at, r.updated_at`

const reservationFrom = `FROM reservations r JOIN rooms rm ON rm.id = r.room_id JOIN users u ON u.id = r.booker_id`

// ReservationRepository persists reservations and serialises writes per room and day.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository constructs a ReservationRepository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// slotLockKey is hashed into the advisory lock that guards one room on one day.
func slotLockKey(roomID string, date time.Time) string {
	return "room:" + roomID + ":" + date.Format(models.DateLayout)
}

// lockSlot takes a transaction-scoped advisory lock; Postgres releases it at commit or rollback.
func lockSlot(ctx context.Context, tx *sqlx.Tx, roomID string, date time.Time) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotLockKey(roomID, date)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable {
			return ErrSlotBusy
		}
		return fmt.Errorf("lock reservation slot: %w", err)
	}
	return nil
}

func findOverlap(ctx context.Context, tx *sqlx.Tx, res *models.Reservation, excludeID string) error {
	query := `SELECT id FROM reservations WHERE room_id = $1 AND date = $2 AND status IN ('RESERVED', 'BLOCKED') AND start_at < $3 AND end_at > $4`
	args := []interface{}{res.RoomID, res.Date, res.EndAt, res.StartAt}
	if excludeID != "" {
		query += ` AND id <> $5`
		args = append(args, excludeID)
	}
	query += ` LIMIT 1`

	var existing string
	err := tx.GetContext(ctx, &existing, query, args...)
	switch {
	case err == nil:
		return ErrSlotTaken
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return fmt.Errorf("check reservation overlap: %w", err)
	}
}

func insertCompanions(ctx context.Context, tx *sqlx.Tx, reservationID string, userIDs []string) error {
	const query = `INSERT INTO reservation_companions (reservation_id, user_id) VALUES ($1, $2)`
	for _, id := range userIDs {
		if _, err := tx.ExecContext(ctx, query, reservationID, id); err != nil {
			return fmt.Errorf("insert companion: %w", err)
		}
	}
	return nil
}

// CreateWithConflictCheck inserts res and its companions unless an occupying reservation
// overlaps it. The check and the insert share one transaction under the slot lock.
func (r *ReservationRepository) CreateWithConflictCheck(ctx context.Context, res *models.Reservation) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reservation transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockSlot(ctx, tx, res.RoomID, res.Date); err != nil {
		return err
	}
	if err = findOverlap(ctx, tx, res, ""); err != nil {
		return err
	}

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	res.CreatedAt, res.UpdatedAt = now, now
	const insertQuery = `INSERT INTO reservations (id, room_id, date, start_at, end_at, status, booker_id, reason, is_attended, check_in_deadline, created_at, updated_at)
VALUES (:id, :room_id, :date, :start_at, :end_at, :status, :booker_id, :reason, :is_attended, :check_in_deadline, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, res); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	if err = insertCompanions(ctx, tx, res.ID, res.CompanionIDs); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}
	return nil
}

// UpdateWithConflictCheck stores the new room, time and reason of res after re-running the
// overlap check without res itself. Companions are replaced when replaceCompanions is set.
func (r *ReservationRepository) UpdateWithConflictCheck(ctx context.Context, res *models.Reservation, replaceCompanions bool) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reservation transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockSlot(ctx, tx, res.RoomID, res.Date); err != nil {
		return err
	}
	if err = findOverlap(ctx, tx, res, res.ID); err != nil {
		return err
	}

	res.UpdatedAt = time.Now().UTC()
	const updateQuery = `UPDATE reservations SET room_id = :room_id, date = :date, start_at = :start_at, end_at = :end_at, reason = :reason, check_in_deadline = :check_in_deadline, updated_at = :updated_at
WHERE id = :id AND status <> 'CANCELLED'`
	result, err := tx.NamedExecContext(ctx, updateQuery, res)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if err = expectAffected(result); err != nil {
		return err
	}

	if replaceCompanions {
		if _, err = tx.ExecContext(ctx, `DELETE FROM reservation_companions WHERE reservation_id = $1`, res.ID); err != nil {
			return fmt.Errorf("clear companions: %w", err)
		}
		if err = insertCompanions(ctx, tx, res.ID, res.CompanionIDs); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reservation update: %w", err)
	}
	return nil
}

// FindByID returns a reservation in any status.
func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` ` + reservationFrom + ` WHERE r.id = $1`
	var res models.Reservation
	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	return &res, nil
}

// List returns reservations matching the filter ordered by date and start time.
func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if filter.Date != nil {
		add("r.date = ?", *filter.Date)
	}
	if filter.From != nil {
		add("r.date >= ?", *filter.From)
	}
	if filter.To != nil {
		add("r.date <= ?", *filter.To)
	}
	if filter.RoomID != "" {
		add("r.room_id = ?", filter.RoomID)
	}
	if filter.BookerID != "" {
		add("r.booker_id = ?", filter.BookerID)
	}
	if filter.ParticipantID != "" {
		add("(r.booker_id = ? OR EXISTS (SELECT 1 FROM reservation_companions c WHERE c.reservation_id = r.id AND c.user_id = ?))", filter.ParticipantID)
	}
	if filter.Status != nil {
		add("r.status = ?", *filter.Status)
	} else if !filter.IncludeCancelled {
		conditions = append(conditions, "r.status <> 'CANCELLED'")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := paginate(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s %s%s ORDER BY r.date ASC, r.start_at ASC LIMIT %d OFFSET %d", reservationColumns, reservationFrom, where, size, offset)
	var out []models.Reservation
	if err := r.db.SelectContext(ctx, &out, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reservations r"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}
	return out, total, nil
}

// ListOccupying returns the RESERVED and BLOCKED reservations of a room on one day.
func (r *ReservationRepository) ListOccupying(ctx context.Context, roomID string, date time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` ` + reservationFrom + ` WHERE r.room_id = $1 AND r.date = $2 AND r.status IN ('RESERVED', 'BLOCKED') ORDER BY r.start_at`
	var out []models.Reservation
	if err := r.db.SelectContext(ctx, &out, query, roomID, date); err != nil {
		return nil, fmt.Errorf("list occupying reservations: %w", err)
	}
	return out, nil
}

// Cancel marks a live reservation CANCELLED. Cancelling twice yields sql.ErrNoRows.
func (r *ReservationRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE reservations SET status = 'CANCELLED', cancelled_at = $2, updated_at = $2 WHERE id = $1 AND status <> 'CANCELLED'`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	return expectAffected(res)
}

// MarkAttended records a successful check-in.
func (r *ReservationRepository) MarkAttended(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE reservations SET is_attended = TRUE, updated_at = $2 WHERE id = $1 AND status <> 'CANCELLED'`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark reservation attended: %w", err)
	}
	return expectAffected(res)
}
