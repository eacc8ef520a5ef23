package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/calendar"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

const calendarService = "google_calendar"

type calendarProvider interface {
	Configured() bool
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (calendar.Token, error)
	PushEvent(ctx context.Context, tok calendar.Token, calendarID string, ev calendar.Event) (calendar.Result, error)
	UpdateEvent(ctx context.Context, tok calendar.Token, calendarID, eventID string, ev calendar.Event) (calendar.Result, error)
	RemoveEvent(ctx context.Context, tok calendar.Token, calendarID, eventID string) (calendar.Result, error)
}

type calendarStore interface {
	UpsertAccount(ctx context.Context, acc *models.CalendarAccount) error
	FindAccount(ctx context.Context, userID string) (*models.CalendarAccount, error)
	UpdateToken(ctx context.Context, acc *models.CalendarAccount) error
	DeleteAccount(ctx context.Context, userID string) error
	CreateSyncLog(ctx context.Context, log *models.CalendarSyncLog) error
	ListSyncLogs(ctx context.Context, reservationID string) ([]models.CalendarSyncLog, error)
	DeleteSyncLog(ctx context.Context, id string) error
}

type reservationReader interface {
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
}

type oauthStateStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Take(ctx context.Context, key string) (string, error)
}

// CalendarSyncService mirrors reservations into the Google calendars of their participants.
// Remote failures are logged and counted; they never fail the reservation itself.
type CalendarSyncService struct {
	provider     calendarProvider
	store        calendarStore
	reservations reservationReader
	metrics      *MetricsService
	logger       *zap.Logger
	timeZone     string
}

// NewCalendarSyncService constructs a CalendarSyncService.
func NewCalendarSyncService(provider calendarProvider, store calendarStore, metrics *MetricsService, loc *time.Location, logger *zap.Logger) *CalendarSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	tz := "UTC"
	if loc != nil {
		tz = loc.String()
	}
	return &CalendarSyncService{provider: provider, store: store, metrics: metrics, logger: logger, timeZone: tz}
}

// WithReservations lets sync jobs re-read the reservation so a booking cancelled while its
// job was queued is not pushed or logged.
func (s *CalendarSyncService) WithReservations(r reservationReader) *CalendarSyncService {
	s.reservations = r
	return s
}

// Enabled reports whether a provider is configured.
func (s *CalendarSyncService) Enabled() bool {
	return s != nil && s.provider != nil && s.provider.Configured()
}

// SyncReservation pushes an event to every linked participant and records a sync log for each.
func (s *CalendarSyncService) SyncReservation(ctx context.Context, res models.Reservation) error {
	if !s.Enabled() || s.cancelled(ctx, res.ID) {
		return nil
	}
	var failures []error
	for _, userID := range res.Participants() {
		if err := s.push(ctx, res, userID); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

// UpdateReservation updates existing events, drops events of removed companions and creates
// events for new ones.
func (s *CalendarSyncService) UpdateReservation(ctx context.Context, res models.Reservation) error {
	if !s.Enabled() || s.cancelled(ctx, res.ID) {
		return nil
	}
	logs, err := s.store.ListSyncLogs(ctx, res.ID)
	if err != nil {
		return fmt.Errorf("list sync logs: %w", err)
	}

	participants := make(map[string]struct{})
	for _, id := range res.Participants() {
		participants[id] = struct{}{}
	}

	var failures []error
	synced := make(map[string]struct{}, len(logs))
	for _, log := range logs {
		if _, ok := participants[log.OwnerID]; !ok {
			s.removeLogged(ctx, log)
			continue
		}
		synced[log.OwnerID] = struct{}{}
		if err := s.update(ctx, res, log); err != nil {
			failures = append(failures, err)
		}
	}
	for id := range participants {
		if _, ok := synced[id]; ok {
			continue
		}
		if err := s.push(ctx, res, id); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

// RemoveReservation deletes the remote events of a reservation. Every sync log row is removed
// even when the remote delete fails.
func (s *CalendarSyncService) RemoveReservation(ctx context.Context, reservationID string) error {
	logs, err := s.store.ListSyncLogs(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("list sync logs: %w", err)
	}
	for _, log := range logs {
		s.removeLogged(ctx, log)
	}
	return nil
}

func (s *CalendarSyncService) push(ctx context.Context, res models.Reservation, userID string) error {
	acc, ok, err := s.account(ctx, userID)
	if err != nil || !ok {
		return err
	}
	result, err := s.provider.PushEvent(ctx, token(acc), acc.CalendarID, s.event(res))
	if err != nil {
		s.failed("push", res.ID, userID, err)
		return err
	}
	s.persistToken(ctx, acc, result)
	if s.cancelled(ctx, res.ID) {
		if _, err := s.provider.RemoveEvent(ctx, token(acc), acc.CalendarID, result.EventID); err != nil {
			s.failed("remove", res.ID, userID, err)
		}
		return nil
	}
	if err := s.store.CreateSyncLog(ctx, &models.CalendarSyncLog{ReservationID: res.ID, OwnerID: userID, EventID: result.EventID}); err != nil {
		s.logger.Error("failed to record calendar sync log", zap.String("reservation_id", res.ID), zap.String("event_id", result.EventID), zap.Error(err))
		return err
	}
	return nil
}

func (s *CalendarSyncService) update(ctx context.Context, res models.Reservation, log models.CalendarSyncLog) error {
	acc, ok, err := s.account(ctx, log.OwnerID)
	if err != nil || !ok {
		return err
	}
	result, err := s.provider.UpdateEvent(ctx, token(acc), acc.CalendarID, log.EventID, s.event(res))
	if err != nil {
		s.failed("update", res.ID, log.OwnerID, err)
		return err
	}
	s.persistToken(ctx, acc, result)
	return nil
}

func (s *CalendarSyncService) removeLogged(ctx context.Context, log models.CalendarSyncLog) {
	if s.Enabled() {
		acc, ok, err := s.account(ctx, log.OwnerID)
		if err == nil && ok {
			result, err := s.provider.RemoveEvent(ctx, token(acc), acc.CalendarID, log.EventID)
			if err != nil {
				s.failed("remove", log.ReservationID, log.OwnerID, err)
			} else {
				s.persistToken(ctx, acc, result)
			}
		}
	}
	if err := s.store.DeleteSyncLog(ctx, log.ID); err != nil {
		s.logger.Error("failed to delete calendar sync log", zap.String("log_id", log.ID), zap.Error(err))
	}
}

// cancelled reports whether the reservation was cancelled or removed since the job was queued.
func (s *CalendarSyncService) cancelled(ctx context.Context, reservationID string) bool {
	if s.reservations == nil {
		return false
	}
	current, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true
		}
		s.logger.Warn("failed to reload reservation for calendar sync", zap.String("reservation_id", reservationID), zap.Error(err))
		return false
	}
	return current.Status == models.StatusCancelled
}

// account returns the linked account of userID; ok is false when the user never linked one.
func (s *CalendarSyncService) account(ctx context.Context, userID string) (*models.CalendarAccount, bool, error) {
	acc, err := s.store.FindAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("calendar sync skipped, account not linked", zap.String("user_id", userID))
			return nil, false, nil
		}
		s.logger.Warn("failed to load calendar account", zap.String("user_id", userID), zap.Error(err))
		return nil, false, err
	}
	return acc, true, nil
}

func (s *CalendarSyncService) persistToken(ctx context.Context, acc *models.CalendarAccount, result calendar.Result) {
	if !result.Rotated {
		return
	}
	acc.AccessToken = result.Token.AccessToken
	if result.Token.RefreshToken != "" {
		acc.RefreshToken = result.Token.RefreshToken
	}
	acc.TokenType = result.Token.TokenType
	acc.Expiry = result.Token.Expiry
	if err := s.store.UpdateToken(ctx, acc); err != nil {
		s.logger.Warn("failed to persist rotated calendar token", zap.String("user_id", acc.UserID), zap.Error(err))
	}
}

func (s *CalendarSyncService) failed(op, reservationID, userID string, err error) {
	s.metrics.RecordExternalFailure(calendarService, op)
	s.logger.Warn("calendar sync failed",
		zap.String("operation", op),
		zap.String("reservation_id", reservationID),
		zap.String("user_id", userID),
		zap.Error(err),
	)
}

func (s *CalendarSyncService) event(res models.Reservation) calendar.Event {
	summary := res.RoomName
	if reason := strings.TrimSpace(res.Reason); reason != "" {
		summary += " - " + reason
	}
	return calendar.Event{
		Summary:     summary,
		Description: fmt.Sprintf("Booked by %s (%s)", res.BookerName, res.BookerNo),
		Location:    res.RoomName,
		Start:       res.StartAt,
		End:         res.EndAt,
		TimeZone:    s.timeZone,
	}
}

func token(acc *models.CalendarAccount) calendar.Token {
	return calendar.Token{AccessToken: acc.AccessToken, RefreshToken: acc.RefreshToken, TokenType: acc.TokenType, Expiry: acc.Expiry}
}

// CalendarLinkService runs the OAuth consent flow that links a Google account.
type CalendarLinkService struct {
	provider calendarProvider
	store    calendarStore
	states   oauthStateStore
	stateTTL time.Duration
	logger   *zap.Logger
}

// NewCalendarLinkService constructs a CalendarLinkService.
func NewCalendarLinkService(provider calendarProvider, store calendarStore, states oauthStateStore, stateTTL time.Duration, logger *zap.Logger) *CalendarLinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &CalendarLinkService{provider: provider, store: store, states: states, stateTTL: stateTTL, logger: logger}
}

func stateKey(state string) string {
	return "calendar:oauth:state:" + state
}

// AuthURL returns the consent URL for userID. The state is single use and expires.
func (s *CalendarLinkService) AuthURL(ctx context.Context, userID string) (string, error) {
	if s.provider == nil || !s.provider.Configured() {
		return "", appErrors.Clone(appErrors.ErrExternalService, "calendar integration is not configured")
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", internalError(err, "failed to create oauth state")
	}
	state := hex.EncodeToString(buf)
	if err := s.states.Put(ctx, stateKey(state), userID, s.stateTTL); err != nil {
		return "", internalError(err, "failed to store oauth state")
	}
	url, err := s.provider.AuthCodeURL(state)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "failed to build consent url")
	}
	return url, nil
}

// Callback exchanges the authorization code and stores the linked account.
func (s *CalendarLinkService) Callback(ctx context.Context, state, code string) (*models.CalendarAccount, error) {
	if state == "" || code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "state and code are required")
	}
	userID, err := s.states.Take(ctx, stateKey(state))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "oauth state is invalid or expired")
		}
		return nil, internalError(err, "failed to read oauth state")
	}
	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("calendar oauth exchange failed", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "failed to link google account")
	}
	acc := &models.CalendarAccount{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		CalendarID:   calendar.DefaultCalendarID,
	}
	if err := s.store.UpsertAccount(ctx, acc); err != nil {
		return nil, internalError(err, "failed to store calendar account")
	}
	return acc, nil
}

// Unlink forgets the user's Google credential.
func (s *CalendarLinkService) Unlink(ctx context.Context, userID string) error {
	if err := s.store.DeleteAccount(ctx, userID); err != nil {
		return lookupError(err, "calendar account not linked", "failed to unlink calendar account")
	}
	return nil
}
