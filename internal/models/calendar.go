package models

import "time"

// CalendarAccount stores the Google OAuth credential of a linked user.
type CalendarAccount struct {
	UserID       string    `db:"user_id" json:"user_id"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	TokenType    string    `db:"token_type" json:"-"`
	Expiry       time.Time `db:"expiry" json:"expiry"`
	CalendarID   string    `db:"calendar_id" json:"calendar_id"`
	LinkedAt     time.Time `db:"linked_at" json:"linked_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CalendarSyncLog links a reservation to the remote event created for one participant.
type CalendarSyncLog struct {
	ID            string    `db:"id" json:"id"`
	ReservationID string    `db:"reservation_id" json:"reservation_id"`
	OwnerID       string    `db:"owner_id" json:"owner_id"`
	EventID       string    `db:"event_id" json:"event_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
