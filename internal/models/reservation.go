package models

import (
	"time"

	"github.com/lib/pq"
)

// ReservationStatus is the booking state of a time slot.
type ReservationStatus string

const (
	// StatusAvailable only appears on free slots of the availability view; it is never stored.
	StatusAvailable ReservationStatus = "AVAILABLE"
	StatusReserved  ReservationStatus = "RESERVED"
	StatusBlocked   ReservationStatus = "BLOCKED"
	StatusCancelled ReservationStatus = "CANCELLED"
)

// Occupies reports whether a reservation in this status holds its slot.
func (s ReservationStatus) Occupies() bool {
	return s == StatusReserved || s == StatusBlocked
}

// Reservation is a booking of a room for [StartAt, EndAt) on Date.
type Reservation struct {
	ID              string            `db:"id" json:"id"`
	RoomID          string            `db:"room_id" json:"room_id"`
	RoomName        string            `db:"room_name" json:"room_name,omitempty"`
	Date            time.Time         `db:"date" json:"-"`
	StartAt         time.Time         `db:"start_at" json:"start_at"`
	EndAt           time.Time         `db:"end_at" json:"end_at"`
	Status          ReservationStatus `db:"status" json:"status"`
	BookerID        string            `db:"booker_id" json:"booker_id"`
	BookerNo        string            `db:"booker_no" json:"booker_no,omitempty"`
	BookerName      string            `db:"booker_name" json:"booker_name,omitempty"`
	CompanionIDs    pq.StringArray    `db:"companion_ids" json:"companion_ids"`
	Reason          string            `db:"reason" json:"reason"`
	IsAttended      bool              `db:"is_attended" json:"is_attended"`
	CheckInDeadline *time.Time        `db:"check_in_deadline" json:"check_in_deadline,omitempty"`
	CancelledAt     *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// DateString renders Date as YYYY-MM-DD.
func (r *Reservation) DateString() string {
	return r.Date.Format(DateLayout)
}

// Participants returns the booker followed by every companion.
func (r *Reservation) Participants() []string {
	out := make([]string, 0, len(r.CompanionIDs)+1)
	out = append(out, r.BookerID)
	out = append(out, r.CompanionIDs...)
	return out
}

// HasParticipant reports whether userID booked or accompanies the reservation.
func (r *Reservation) HasParticipant(userID string) bool {
	for _, id := range r.Participants() {
		if id == userID {
			return true
		}
	}
	return false
}

// DateLayout is the wire format of reservation dates.
const DateLayout = "2006-01-02"

// ClockLayout is the wire format of reservation start and end times.
const ClockLayout = "15:04"

// ReservationFilter narrows reservation listings.
type ReservationFilter struct {
	Date             *time.Time
	RoomID           string
	BookerID         string
	ParticipantID    string
	Status           *ReservationStatus
	IncludeCancelled bool
	From             *time.Time
	To               *time.Time
	Page             int
	PageSize         int
}

// Slot is one cell of a room's daily availability timeline.
type Slot struct {
	StartAt       time.Time         `json:"start_at"`
	EndAt         time.Time         `json:"end_at"`
	Status        ReservationStatus `json:"status"`
	ReservationID *string           `json:"reservation_id,omitempty"`
}
