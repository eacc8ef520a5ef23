package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/mailer"
)

const mailService = "smtp"

type recipientDirectory interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// NotificationService e-mails reservation participants.
type NotificationService struct {
	mailer   mailer.Mailer
	users    recipientDirectory
	metrics  *MetricsService
	location *time.Location
	logger   *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(m mailer.Mailer, users recipientDirectory, metrics *MetricsService, loc *time.Location, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationService{mailer: m, users: users, metrics: metrics, location: loc, logger: logger}
}

// ReservationConfirmed tells every participant about a new booking.
func (s *NotificationService) ReservationConfirmed(ctx context.Context, res models.Reservation) error {
	return s.send(ctx, res, "[Room Reservation] Confirmed: "+res.RoomName, "Your reservation is confirmed.")
}

// ReservationCancelled tells every participant a booking was cancelled.
func (s *NotificationService) ReservationCancelled(ctx context.Context, res models.Reservation) error {
	return s.send(ctx, res, "[Room Reservation] Cancelled: "+res.RoomName, "The following reservation was cancelled.")
}

func (s *NotificationService) send(ctx context.Context, res models.Reservation, subject, lead string) error {
	if s.mailer == nil {
		return nil
	}
	users, err := s.users.FindByIDs(ctx, res.Participants())
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	to := make([]string, 0, len(users))
	for _, u := range users {
		if u.Active && u.Email != "" {
			to = append(to, u.Email)
		}
	}
	if len(to) == 0 {
		return nil
	}

	if err := s.mailer.Send(ctx, mailer.Message{To: to, Subject: subject, Body: s.body(res, lead)}); err != nil {
		s.metrics.RecordExternalFailure(mailService, "send")
		s.logger.Warn("reservation mail failed", zap.String("reservation_id", res.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *NotificationService) body(res models.Reservation, lead string) string {
	start := res.StartAt.In(s.location)
	end := res.EndAt.In(s.location)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", lead)
	fmt.Fprintf(&b, "Room:   %s\n", res.RoomName)
	fmt.Fprintf(&b, "Date:   %s\n", start.Format(models.DateLayout))
	fmt.Fprintf(&b, "Time:   %s - %s\n", start.Format(models.ClockLayout), end.Format(models.ClockLayout))
	fmt.Fprintf(&b, "Booker: %s (%s)\n", res.BookerName, res.BookerNo)
	if res.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", res.Reason)
	}
	return b.String()
}
