package models

import (
	"time"

	"github.com/lib/pq"
)

// Room is a bookable meeting room.
type Room struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Description  string         `db:"description" json:"description"`
	Amenities    pq.StringArray `db:"amenities" json:"amenities"`
	Notification *string        `db:"notification" json:"notification,omitempty"`
	Images       []RoomImage    `db:"-" json:"images"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// RoomImage is an ordered picture of a room.
type RoomImage struct {
	ID        string    `db:"id" json:"id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	ImageURL  string    `db:"image_url" json:"image_url"`
	ObjectKey string    `db:"object_key" json:"-"`
	Sequence  int       `db:"sequence" json:"sequence"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RoomFilter narrows room listings.
type RoomFilter struct {
	Search   string
	Page     int
	PageSize int
}
