package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	"github.com/noah-isme/room-reservation-api/internal/repository"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/geo"
)

type reservationRepository interface {
	CreateWithConflictCheck(ctx context.Context, res *models.Reservation) error
	UpdateWithConflictCheck(ctx context.Context, res *models.Reservation, replaceCompanions bool) error
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error)
	ListOccupying(ctx context.Context, roomID string, date time.Time) ([]models.Reservation, error)
	Cancel(ctx context.Context, id string, at time.Time) error
	MarkAttended(ctx context.Context, id string, at time.Time) error
}

type reservationUserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUserNos(ctx context.Context, userNos []string) ([]models.User, error)
}

type roomLookup interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type durationLimiter interface {
	MaxDuration(ctx context.Context, userType models.UserType) (time.Duration, error)
}

// ReservationEvents receives committed reservation changes. Implementations must not block.
type ReservationEvents interface {
	ReservationCreated(ctx context.Context, res models.Reservation)
	ReservationUpdated(ctx context.Context, res models.Reservation)
	ReservationCancelled(ctx context.Context, res models.Reservation)
}

// ReservationPolicy holds the booking and check-in rules.
type ReservationPolicy struct {
	Location      *time.Location
	AllowPast     bool
	OpenHour      int
	CloseHour     int
	SlotMinutes   int
	CheckInWindow time.Duration
	MaxDistance   float64
	CheckInPoint  geo.Point
}

func (p ReservationPolicy) withDefaults() ReservationPolicy {
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.CloseHour <= p.OpenHour || p.CloseHour > 24 {
		p.OpenHour, p.CloseHour = 9, 22
	}
	if p.SlotMinutes <= 0 {
		p.SlotMinutes = 30
	}
	if p.CheckInWindow <= 0 {
		p.CheckInWindow = 10 * time.Minute
	}
	if p.MaxDistance <= 0 {
		p.MaxDistance = 25
	}
	return p
}

// CreateReservationRequest books a room. Companions are user numbers.
type CreateReservationRequest struct {
	RoomID     string                   `json:"room_id" validate:"required"`
	Date       string                   `json:"date" validate:"required,datetime=2006-01-02"`
	StartAt    string                   `json:"start_at" validate:"required,datetime=15:04"`
	EndAt      string                   `json:"end_at" validate:"required,datetime=15:04"`
	Companions []string                 `json:"companions" validate:"omitempty,dive,required,max=45"`
	Reason     string                   `json:"reason" validate:"max=255"`
	Status     models.ReservationStatus `json:"status" validate:"omitempty,oneof=RESERVED BLOCKED"`
}

// UpdateReservationRequest changes only the fields present.
type UpdateReservationRequest struct {
	RoomID     *string   `json:"room_id"`
	Date       *string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartAt    *string   `json:"start_at" validate:"omitempty,datetime=15:04"`
	EndAt      *string   `json:"end_at" validate:"omitempty,datetime=15:04"`
	Companions *[]string `json:"companions" validate:"omitempty,dive,required,max=45"`
	Reason     *string   `json:"reason" validate:"omitempty,max=255"`
}

// CheckInRequest carries the caller's current position.
type CheckInRequest struct {
	Latitude  float64 `form:"latitude" json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `form:"longitude" json:"longitude" validate:"gte=-180,lte=180"`
}

// ReservationServiceParams groups the collaborators of ReservationService.
type ReservationServiceParams struct {
	Repo      reservationRepository
	Users     reservationUserDirectory
	Rooms     roomLookup
	Limits    durationLimiter
	Audit     auditRecorder
	Events    ReservationEvents
	Metrics   *MetricsService
	Policy    ReservationPolicy
	Validator *validator.Validate
	Logger    *zap.Logger
}

// ReservationService owns the booking state machine: creation under the conflict check,
// updates, cancellation and location check-in.
type ReservationService struct {
	repo      reservationRepository
	users     reservationUserDirectory
	rooms     roomLookup
	limits    durationLimiter
	audit     auditRecorder
	events    ReservationEvents
	metrics   *MetricsService
	policy    ReservationPolicy
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReservationService constructs a ReservationService.
func NewReservationService(params ReservationServiceParams) *ReservationService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &ReservationService{
		repo:      params.Repo,
		users:     params.Users,
		rooms:     params.Rooms,
		limits:    params.Limits,
		audit:     params.Audit,
		events:    params.Events,
		metrics:   params.Metrics,
		policy:    params.Policy.withDefaults(),
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create books a room for the actor.
func (s *ReservationService) Create(ctx context.Context, actor policy.Actor, req CreateReservationRequest, meta RequestMeta) (*models.Reservation, error) {
	if !actor.Can(policy.Create) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to create reservations")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid reservation payload")
	}

	date, start, end, err := s.parseInterval(req.Date, req.StartAt, req.EndAt)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotPast(start); err != nil {
		return nil, err
	}

	booker, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, lookupError(err, "booker not found", "failed to load booker")
	}
	if !booker.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	room, err := s.rooms.FindByID(ctx, req.RoomID)
	if err != nil {
		return nil, lookupError(err, "room not found", "failed to load room")
	}
	if err := s.checkDuration(ctx, booker.UserType, start, end); err != nil {
		return nil, err
	}
	companions, err := s.resolveCompanions(ctx, req.Companions, booker.ID)
	if err != nil {
		return nil, err
	}

	status := models.StatusReserved
	if req.Status == models.StatusBlocked && actor.Can(policy.BlockRooms) {
		status = models.StatusBlocked
	}

	deadline := start.Add(s.policy.CheckInWindow)
	res := &models.Reservation{
		RoomID:          room.ID,
		RoomName:        room.Name,
		Date:            date,
		StartAt:         start,
		EndAt:           end,
		Status:          status,
		BookerID:        booker.ID,
		BookerNo:        booker.UserNo,
		BookerName:      booker.Name,
		CompanionIDs:    companions,
		Reason:          strings.TrimSpace(req.Reason),
		CheckInDeadline: &deadline,
	}

	if err := s.repo.CreateWithConflictCheck(ctx, res); err != nil {
		return nil, s.writeError(err, "failed to create reservation")
	}
	s.metrics.RecordReservation(res.Status)
	s.record(ctx, actor, models.AuditActionReservationCreate, res, meta)

	if s.events != nil {
		s.events.ReservationCreated(ctx, *res)
	}
	return res, nil
}

// Update changes room, time, companions or reason. Time changes re-run the conflict check.
func (s *ReservationService) Update(ctx context.Context, actor policy.Actor, id string, req UpdateReservationRequest, meta RequestMeta) (*models.Reservation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid reservation payload")
	}

	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "reservation not found", "failed to load reservation")
	}
	if !policy.CanModify(actor, res.BookerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the booker or an administrator can change this reservation")
	}
	if res.Status == models.StatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cancelled reservations cannot be changed")
	}

	timeChanged := req.Date != nil || req.StartAt != nil || req.EndAt != nil
	if timeChanged {
		dateRaw := s.pick(req.Date, res.DateString())
		startRaw := s.pick(req.StartAt, res.StartAt.In(s.policy.Location).Format(models.ClockLayout))
		endRaw := s.pick(req.EndAt, res.EndAt.In(s.policy.Location).Format(models.ClockLayout))
		date, start, end, err := s.parseInterval(dateRaw, startRaw, endRaw)
		if err != nil {
			return nil, err
		}
		if err := s.checkNotPast(start); err != nil {
			return nil, err
		}
		deadline := start.Add(s.policy.CheckInWindow)
		res.Date, res.StartAt, res.EndAt, res.CheckInDeadline = date, start, end, &deadline
	}

	if req.RoomID != nil && *req.RoomID != res.RoomID {
		room, err := s.rooms.FindByID(ctx, *req.RoomID)
		if err != nil {
			return nil, lookupError(err, "room not found", "failed to load room")
		}
		res.RoomID, res.RoomName = room.ID, room.Name
	}

	if timeChanged {
		booker, err := s.users.FindByID(ctx, res.BookerID)
		if err != nil {
			return nil, lookupError(err, "booker not found", "failed to load booker")
		}
		if err := s.checkDuration(ctx, booker.UserType, res.StartAt, res.EndAt); err != nil {
			return nil, err
		}
	}

	replaceCompanions := req.Companions != nil
	if replaceCompanions {
		companions, err := s.resolveCompanions(ctx, *req.Companions, res.BookerID)
		if err != nil {
			return nil, err
		}
		res.CompanionIDs = companions
	}
	if req.Reason != nil {
		res.Reason = strings.TrimSpace(*req.Reason)
	}

	if err := s.repo.UpdateWithConflictCheck(ctx, res, replaceCompanions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "cancelled reservations cannot be changed")
		}
		return nil, s.writeError(err, "failed to update reservation")
	}
	s.record(ctx, actor, models.AuditActionReservationUpdate, res, meta)

	if s.events != nil {
		s.events.ReservationUpdated(ctx, *res)
	}
	return res, nil
}

// Cancel marks a reservation CANCELLED. Only the booker or an administrator may cancel.
func (s *ReservationService) Cancel(ctx context.Context, actor policy.Actor, id string, meta RequestMeta) error {
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "reservation not found", "failed to load reservation")
	}
	if res.Status == models.StatusCancelled {
		return appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
	}
	if !policy.CanDelete(actor, res.BookerID) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the booker or an administrator can cancel this reservation")
	}

	at := s.now().UTC()
	if err := s.repo.Cancel(ctx, id, at); err != nil {
		return lookupError(err, "reservation not found", "failed to cancel reservation")
	}
	res.Status = models.StatusCancelled
	res.CancelledAt = &at
	s.record(ctx, actor, models.AuditActionReservationCancel, res, meta)

	if s.events != nil {
		s.events.ReservationCancelled(ctx, *res)
	}
	return nil
}

// CheckIn marks attendance when the caller is near the room around the start time.
func (s *ReservationService) CheckIn(ctx context.Context, actor policy.Actor, id string, req CheckInRequest) (*models.Reservation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid coordinates")
	}
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "reservation not found", "failed to load reservation")
	}
	if res.Status != models.StatusReserved {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
	}
	if !res.HasParticipant(actor.ID) && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only participants can check in")
	}

	now := s.now()
	if !withinWindow(now, res.StartAt, s.policy.CheckInWindow) {
		s.metrics.RecordCheckIn("window")
		return nil, appErrors.Clone(appErrors.ErrCheckInWindow, "")
	}
	distance := geo.DistanceMeters(geo.Point{Latitude: req.Latitude, Longitude: req.Longitude}, s.policy.CheckInPoint)
	if distance >= s.policy.MaxDistance {
		s.metrics.RecordCheckIn("distance")
		return nil, appErrors.Clone(appErrors.ErrCheckInDistance, fmt.Sprintf("current location is %.0fm from the room", distance))
	}

	if !res.IsAttended {
		if err := s.repo.MarkAttended(ctx, id, now.UTC()); err != nil {
			return nil, lookupError(err, "reservation not found", "failed to record check-in")
		}
		res.IsAttended = true
	}
	s.metrics.RecordCheckIn("success")
	return res, nil
}

// withinWindow reports start-window < now < start+window.
func withinWindow(now, start time.Time, window time.Duration) bool {
	return now.After(start.Add(-window)) && now.Before(start.Add(window))
}

// Get returns one reservation in any status.
func (s *ReservationService) Get(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "reservation not found", "failed to load reservation")
	}
	return res, nil
}

// List returns reservations ordered by date and start time.
func (s *ReservationService) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list reservations")
	}
	return items, newPagination(filter.Page, filter.PageSize, total), nil
}

// ListMine returns reservations the actor booked or accompanies.
func (s *ReservationService) ListMine(ctx context.Context, actor policy.Actor, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error) {
	filter.BookerID = ""
	filter.ParticipantID = actor.ID
	return s.List(ctx, filter)
}

// Timezone names the location reservation dates and times are interpreted in.
func (s *ReservationService) Timezone() string {
	return s.policy.Location.String()
}

// ParseDate parses a YYYY-MM-DD query value into the stored date form.
func (s *ReservationService) ParseDate(raw string) (time.Time, error) {
	day, err := time.ParseInLocation(models.DateLayout, raw, s.policy.Location)
	if err != nil {
		return time.Time{}, validationError(err, "date must be YYYY-MM-DD")
	}
	return storedDate(day), nil
}

// Availability lays the room's occupying reservations over the day's opening hours.
func (s *ReservationService) Availability(ctx context.Context, roomID, rawDate string) ([]models.Slot, error) {
	date, err := s.ParseDate(rawDate)
	if err != nil {
		return nil, err
	}
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		return nil, lookupError(err, "room not found", "failed to load room")
	}
	occupying, err := s.repo.ListOccupying(ctx, roomID, date)
	if err != nil {
		return nil, internalError(err, "failed to load reservations")
	}
	return buildTimeline(date, s.policy, occupying), nil
}

func buildTimeline(date time.Time, p ReservationPolicy, occupying []models.Reservation) []models.Slot {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, p.Location)
	open := day.Add(time.Duration(p.OpenHour) * time.Hour)
	closing := day.Add(time.Duration(p.CloseHour) * time.Hour)
	step := time.Duration(p.SlotMinutes) * time.Minute

	var slots []models.Slot
	for start := open; start.Before(closing); start = start.Add(step) {
		end := start.Add(step)
		if end.After(closing) {
			end = closing
		}
		slot := models.Slot{StartAt: start, EndAt: end, Status: models.StatusAvailable}
		for i := range occupying {
			r := occupying[i]
			if r.StartAt.Before(end) && r.EndAt.After(start) {
				id := r.ID
				slot.Status, slot.ReservationID = r.Status, &id
				break
			}
		}
		slots = append(slots, slot)
	}
	return slots
}

// parseInterval reads the wire date and clock values in the reservation time zone.
func (s *ReservationService) parseInterval(rawDate, rawStart, rawEnd string) (time.Time, time.Time, time.Time, error) {
	loc := s.policy.Location
	day, err := time.ParseInLocation(models.DateLayout, rawDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, validationError(err, "date must be YYYY-MM-DD")
	}
	start, err := atClock(day, rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, validationError(err, "start_at must be HH:MM")
	}
	end, err := atClock(day, rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, validationError(err, "end_at must be HH:MM")
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_at must be before end_at")
	}
	return storedDate(day), start, end, nil
}

func atClock(day time.Time, raw string) (time.Time, error) {
	clock, err := time.Parse(models.ClockLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, day.Location()), nil
}

// storedDate is the calendar day as UTC midnight, the form written to the date column.
func storedDate(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *ReservationService) pick(v *string, fallback string) string {
	if v != nil {
		return *v
	}
	return fallback
}

func (s *ReservationService) checkNotPast(start time.Time) error {
	if s.policy.AllowPast || !start.Before(s.now()) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, "reservations cannot start in the past")
}

func (s *ReservationService) checkDuration(ctx context.Context, userType models.UserType, start, end time.Time) error {
	if s.limits == nil {
		return nil
	}
	limit, err := s.limits.MaxDuration(ctx, userType)
	if err != nil {
		return err
	}
	if limit > 0 && end.Sub(start) > limit {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("reservations are limited to %s for %s users", limit, strings.ToLower(string(userType))))
	}
	return nil
}

// resolveCompanions maps user numbers to active user ids, dropping duplicates and the booker.
func (s *ReservationService) resolveCompanions(ctx context.Context, userNos []string, bookerID string) ([]string, error) {
	wanted := make([]string, 0, len(userNos))
	seen := make(map[string]struct{}, len(userNos))
	for _, no := range userNos {
		no = strings.TrimSpace(no)
		if _, dup := seen[no]; dup || no == "" {
			continue
		}
		seen[no] = struct{}{}
		wanted = append(wanted, no)
	}
	if len(wanted) == 0 {
		return []string{}, nil
	}

	users, err := s.users.FindByUserNos(ctx, wanted)
	if err != nil {
		return nil, internalError(err, "failed to resolve companions")
	}
	found := make(map[string]models.User, len(users))
	for _, u := range users {
		found[u.UserNo] = u
	}

	var missing []string
	ids := make([]string, 0, len(wanted))
	for _, no := range wanted {
		u, ok := found[no]
		if !ok || !u.Active {
			missing = append(missing, no)
			continue
		}
		if u.ID != bookerID {
			ids = append(ids, u.ID)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown companions: "+strings.Join(missing, ", "))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *ReservationService) writeError(err error, message string) error {
	if errors.Is(err, repository.ErrSlotTaken) {
		s.metrics.RecordConflict()
		return appErrors.Clone(appErrors.ErrReservationConflict, "")
	}
	if errors.Is(err, repository.ErrSlotBusy) {
		return appErrors.Clone(appErrors.ErrReservationBusy, "")
	}
	return internalError(err, message)
}

func (s *ReservationService) record(ctx context.Context, actor policy.Actor, action string, res *models.Reservation, meta RequestMeta) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"room_id":  res.RoomID,
		"date":     res.DateString(),
		"start_at": res.StartAt,
		"end_at":   res.EndAt,
		"status":   res.Status,
	})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		Resource:   "reservations",
		ResourceID: &res.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record reservation audit log", zap.String("action", action), zap.Error(err))
	}
}
