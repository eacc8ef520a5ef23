package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/room-reservation-api/internal/models"
)

const roomColumns = `id, name, description, amenities, notification, created_at, updated_at`

// RoomRepository persists rooms and their images.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms ordered by name with their images attached.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	baseQuery := `FROM rooms WHERE 1=1`
	var args []interface{}
	if filter.Search != "" {
		baseQuery += ` AND LOWER(name) LIKE $1`
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	_, size, offset := paginate(filter.Page, filter.PageSize)

	var rooms []models.Room
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", roomColumns, baseQuery, size, offset)
	if err := r.db.SelectContext(ctx, &rooms, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}
	if err := r.attachImages(ctx, rooms); err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

// FindByID returns a room with its images.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find room: %w", err)
	}
	rooms := []models.Room{room}
	if err := r.attachImages(ctx, rooms); err != nil {
		return nil, err
	}
	return &rooms[0], nil
}

func (r *RoomRepository) attachImages(ctx context.Context, rooms []models.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	ids := make([]string, len(rooms))
	index := make(map[string]int, len(rooms))
	for i := range rooms {
		ids[i] = rooms[i].ID
		index[rooms[i].ID] = i
		rooms[i].Images = []models.RoomImage{}
	}
	const query = `SELECT id, room_id, image_url, object_key, sequence, created_at FROM room_images WHERE room_id = ANY($1) ORDER BY room_id, sequence`
	var images []models.RoomImage
	if err := r.db.SelectContext(ctx, &images, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list room images: %w", err)
	}
	for _, img := range images {
		if i, ok := index[img.RoomID]; ok {
			rooms[i].Images = append(rooms[i].Images, img)
		}
	}
	return nil
}

// Create inserts a room.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	room.CreatedAt, room.UpdatedAt = now, now
	if room.Amenities == nil {
		room.Amenities = pq.StringArray{}
	}
	const query = `INSERT INTO rooms (id, name, description, amenities, notification, created_at, updated_at) VALUES (:id, :name, :description, :amenities, :notification, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update overwrites the mutable room fields.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	if room.Amenities == nil {
		room.Amenities = pq.StringArray{}
	}
	const query = `UPDATE rooms SET name = :name, description = :description, amenities = :amenities, notification = :notification, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, room)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a room. Reservations and images cascade.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return expectAffected(res)
}

// AddImage appends an image after the room's highest sequence number.
func (r *RoomRepository) AddImage(ctx context.Context, img *models.RoomImage) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	img.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO room_images (id, room_id, image_url, object_key, sequence, created_at)
SELECT $1, $2, $3, $4, COALESCE(MAX(sequence), 0) + 1, $5 FROM room_images WHERE room_id = $2
RETURNING sequence`
	if err := r.db.GetContext(ctx, &img.Sequence, query, img.ID, img.RoomID, img.ImageURL, img.ObjectKey, img.CreatedAt); err != nil {
		return fmt.Errorf("add room image: %w", err)
	}
	return nil
}

// FindImage returns one image of a room.
func (r *RoomRepository) FindImage(ctx context.Context, roomID, imageID string) (*models.RoomImage, error) {
	const query = `SELECT id, room_id, image_url, object_key, sequence, created_at FROM room_images WHERE id = $1 AND room_id = $2`
	var img models.RoomImage
	if err := r.db.GetContext(ctx, &img, query, imageID, roomID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find room image: %w", err)
	}
	return &img, nil
}

// DeleteImage removes an image row.
func (r *RoomRepository) DeleteImage(ctx context.Context, imageID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM room_images WHERE id = $1`, imageID)
	if err != nil {
		return fmt.Errorf("delete room image: %w", err)
	}
	return expectAffected(res)
}

// expectAffected maps a zero-row write to sql.ErrNoRows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
