package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/jobs"
	"github.com/noah-isme/room-reservation-api/pkg/middleware/requestid"
)

// Job types handled by the reservation dispatcher.
const (
	JobCalendarSync   = "calendar.sync"
	JobCalendarUpdate = "calendar.update"
	JobCalendarRemove = "calendar.remove"
	JobMailConfirm    = "mail.confirm"
	JobMailCancel     = "mail.cancel"
)

type jobQueue interface {
	Register(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) error
}

// ReservationDispatcher turns committed reservation changes into background jobs, so calendar
// and mail calls never run inside the booking transaction. Jobs are keyed by reservation id, so
// the sync, update and remove jobs of one reservation run in commit order.
type ReservationDispatcher struct {
	queue    jobQueue
	calendar *CalendarSyncService
	notifier *NotificationService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewReservationDispatcher registers the job handlers on queue. calendar and notifier may be nil.
func NewReservationDispatcher(queue jobQueue, calendar *CalendarSyncService, notifier *NotificationService, metrics *MetricsService, logger *zap.Logger) *ReservationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &ReservationDispatcher{queue: queue, calendar: calendar, notifier: notifier, metrics: metrics, logger: logger}
	queue.Register(JobCalendarSync, d.reservationJob(func(ctx context.Context, res models.Reservation) error {
		return d.calendar.SyncReservation(ctx, res)
	}))
	queue.Register(JobCalendarUpdate, d.reservationJob(func(ctx context.Context, res models.Reservation) error {
		return d.calendar.UpdateReservation(ctx, res)
	}))
	queue.Register(JobCalendarRemove, d.reservationJob(func(ctx context.Context, res models.Reservation) error {
		return d.calendar.RemoveReservation(ctx, res.ID)
	}))
	queue.Register(JobMailConfirm, d.reservationJob(func(ctx context.Context, res models.Reservation) error {
		return d.notifier.ReservationConfirmed(ctx, res)
	}))
	queue.Register(JobMailCancel, d.reservationJob(func(ctx context.Context, res models.Reservation) error {
		return d.notifier.ReservationCancelled(ctx, res)
	}))
	return d
}

func (d *ReservationDispatcher) reservationJob(fn func(context.Context, models.Reservation) error) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		res, ok := job.Payload.(models.Reservation)
		if !ok {
			return fmt.Errorf("unexpected payload %T", job.Payload)
		}
		return fn(ctx, res)
	}
}

// ReservationCreated queues calendar sync and the confirmation mail.
func (d *ReservationDispatcher) ReservationCreated(ctx context.Context, res models.Reservation) {
	if d.calendar.Enabled() {
		d.enqueue(ctx, JobCalendarSync, res)
	}
	if d.notifier != nil {
		d.enqueue(ctx, JobMailConfirm, res)
	}
}

// ReservationUpdated queues a calendar refresh.
func (d *ReservationDispatcher) ReservationUpdated(ctx context.Context, res models.Reservation) {
	if d.calendar.Enabled() {
		d.enqueue(ctx, JobCalendarUpdate, res)
	}
}

// ReservationCancelled queues event removal and the cancellation mail. Removal runs even when
// calendar sync is disabled so stale sync logs are cleared.
func (d *ReservationDispatcher) ReservationCancelled(ctx context.Context, res models.Reservation) {
	if d.calendar != nil {
		d.enqueue(ctx, JobCalendarRemove, res)
	}
	if d.notifier != nil {
		d.enqueue(ctx, JobMailCancel, res)
	}
}

func (d *ReservationDispatcher) enqueue(ctx context.Context, jobType string, res models.Reservation) {
	job := jobs.Job{Type: jobType, Key: res.ID, Payload: res, RequestID: requestid.FromContext(ctx)}
	if err := d.queue.Enqueue(job); err != nil {
		d.metrics.RecordExternalFailure("job_queue", jobType)
		d.logger.Warn("failed to enqueue reservation job", zap.String("type", jobType), zap.String("reservation_id", res.ID), zap.Error(err))
	}
}
