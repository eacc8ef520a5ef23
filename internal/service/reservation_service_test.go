package service

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	"github.com/noah-isme/room-reservation-api/internal/repository"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/geo"
)

// memoryReservations mirrors the repository contract: the overlap check and the write happen
// under one lock.
type memoryReservations struct {
	mu        sync.Mutex
	items     map[string]*models.Reservation
	seq       int
	attended  []string
	cancelled []string
	writeErr  error
}

func newMemoryReservations() *memoryReservations {
	return &memoryReservations{items: map[string]*models.Reservation{}}
}

func (m *memoryReservations) overlaps(res *models.Reservation, excludeID string) bool {
	for _, other := range m.items {
		if other.ID == excludeID || !other.Status.Occupies() {
			continue
		}
		if other.RoomID == res.RoomID && other.Date.Equal(res.Date) && other.StartAt.Before(res.EndAt) && other.EndAt.After(res.StartAt) {
			return true
		}
	}
	return false
}

func (m *memoryReservations) CreateWithConflictCheck(ctx context.Context, res *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	if m.overlaps(res, "") {
		return repository.ErrSlotTaken
	}
	m.seq++
	res.ID = fmt.Sprintf("res-%d", m.seq)
	copy := *res
	m.items[res.ID] = &copy
	return nil
}

func (m *memoryReservations) UpdateWithConflictCheck(ctx context.Context, res *models.Reservation, replaceCompanions bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.items[res.ID]
	if !ok || current.Status == models.StatusCancelled {
		return sql.ErrNoRows
	}
	if m.overlaps(res, res.ID) {
		return repository.ErrSlotTaken
	}
	copy := *res
	if !replaceCompanions {
		copy.CompanionIDs = current.CompanionIDs
	}
	m.items[res.ID] = &copy
	return nil
}

func (m *memoryReservations) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *res
	return &copy, nil
}

func (m *memoryReservations) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, res := range m.items {
		if res.Status == models.StatusCancelled && !filter.IncludeCancelled {
			continue
		}
		if filter.ParticipantID != "" && !res.HasParticipant(filter.ParticipantID) {
			continue
		}
		if filter.RoomID != "" && res.RoomID != filter.RoomID {
			continue
		}
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, len(out), nil
}

func (m *memoryReservations) ListOccupying(ctx context.Context, roomID string, date time.Time) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, res := range m.items {
		if res.RoomID == roomID && res.Date.Equal(date) && res.Status.Occupies() {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (m *memoryReservations) Cancel(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.items[id]
	if !ok || res.Status == models.StatusCancelled {
		return sql.ErrNoRows
	}
	res.Status = models.StatusCancelled
	res.CancelledAt = &at
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *memoryReservations) MarkAttended(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id].IsAttended = true
	m.attended = append(m.attended, id)
	return nil
}

type directory struct {
	users map[string]models.User
}

func (d directory) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (d directory) FindByUserNos(ctx context.Context, userNos []string) ([]models.User, error) {
	var out []models.User
	for _, no := range userNos {
		for _, u := range d.users {
			if u.UserNo == no {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type roomCatalog map[string]models.Room

func (c roomCatalog) FindByID(ctx context.Context, id string) (*models.Room, error) {
	r, ok := c[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

type fixedLimits map[models.UserType]time.Duration

func (l fixedLimits) MaxDuration(ctx context.Context, t models.UserType) (time.Duration, error) {
	return l[t], nil
}

type recordedEvents struct {
	mu        sync.Mutex
	created   []models.Reservation
	updated   []models.Reservation
	cancelled []models.Reservation
}

func (e *recordedEvents) ReservationCreated(_ context.Context, res models.Reservation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, res)
}

func (e *recordedEvents) ReservationUpdated(_ context.Context, res models.Reservation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updated = append(e.updated, res)
}

func (e *recordedEvents) ReservationCancelled(_ context.Context, res models.Reservation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled = append(e.cancelled, res)
}

var (
	seoul        = time.FixedZone("KST", 9*3600)
	checkInPoint = geo.Point{Latitude: 37.5509, Longitude: 127.0754}
	bookerActor  = policy.Actor{ID: "booker", UserType: models.UserTypeFaculty}
	friendActor  = policy.Actor{ID: "friend", UserType: models.UserTypeUndergraduate}
	otherActor   = policy.Actor{ID: "other", UserType: models.UserTypePostgraduate}
)

type reservationFixture struct {
	svc    *ReservationService
	repo   *memoryReservations
	events *recordedEvents
	now    time.Time
}

func newReservationFixture(t *testing.T) *reservationFixture {
	t.Helper()
	repo := newMemoryReservations()
	events := &recordedEvents{}
	users := directory{users: map[string]models.User{
		"booker": {ID: "booker", UserNo: "F001", Name: "Prof", UserType: models.UserTypeFaculty, Active: true},
		"friend": {ID: "friend", UserNo: "20231234", Name: "Kim", UserType: models.UserTypeUndergraduate, Active: true},
		"other":  {ID: "other", UserNo: "G100", Name: "Lee", UserType: models.UserTypePostgraduate, Active: true},
		"gone":   {ID: "gone", UserNo: "X999", Name: "Gone", UserType: models.UserTypeUndergraduate, Active: false},
		"admin":  {ID: "admin", UserNo: "A000", Name: "Admin", UserType: models.UserTypeAdmin, Active: true},
	}}
	svc := NewReservationService(ReservationServiceParams{
		Repo:   repo,
		Users:  users,
		Rooms:  roomCatalog{"room-a": {ID: "room-a", Name: "Room A"}, "room-b": {ID: "room-b", Name: "Room B"}},
		Limits: fixedLimits{models.UserTypeFaculty: 12 * time.Hour, models.UserTypePostgraduate: 2 * time.Hour, models.UserTypeUndergraduate: time.Hour},
		Events: events,
		Policy: ReservationPolicy{Location: seoul, OpenHour: 9, CloseHour: 22, SlotMinutes: 30, CheckInWindow: 10 * time.Minute, MaxDistance: 25, CheckInPoint: checkInPoint},
	})
	now := time.Date(2024, 1, 9, 12, 0, 0, 0, seoul)
	svc.now = func() time.Time { return now }
	return &reservationFixture{svc: svc, repo: repo, events: events, now: now}
}

func booking(room, date, start, end string) CreateReservationRequest {
	return CreateReservationRequest{RoomID: room, Date: date, StartAt: start, EndAt: end, Reason: "meeting"}
}

func TestReservationExampleRoomA(t *testing.T) {
	f := newReservationFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, bookerActor, booking("room-a", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, first.Status)
	assert.Equal(t, "Room A", first.RoomName)

	_, err = f.svc.Create(ctx, otherActor, booking("room-a", "2024-01-10", "10:30", "11:30"), RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrReservationConflict)

	second, err := f.svc.Create(ctx, otherActor, booking("room-a", "2024-01-10", "11:00", "12:00"), RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 11, 0, 0, 0, seoul), second.StartAt)

	assert.Len(t, f.events.created, 2)
}

func TestReservationLockTimeoutIsRetryable(t *testing.T) {
	f := newReservationFixture(t)
	f.repo.writeErr = repository.ErrSlotBusy

	_, err := f.svc.Create(context.Background(), bookerActor, booking("room-a", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrReservationBusy)
	assert.Empty(t, f.events.created)
}

func TestReservationConflictRules(t *testing.T) {
	f := newReservationFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, bookerActor, booking("room-a", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, otherActor, booking("room-a", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrReservationConflict, "identical window")

	_, err = f.svc.Create(ctx, otherActor, booking("room-b", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	assert.NoError(t, err, "other room")

	_, err = f.svc.Create(ctx, otherActor, booking("room-a", "2024-01-10", "09:00", "10:00"), RequestMeta{})
	assert.NoError(t, err, "touching boundary")

	_, err = f.svc.Create(ctx, otherActor, booking("room-a", "2024-01-11", "10:00", "11:00"), RequestMeta{})
	assert.NoError(t, err, "other day")
}

func TestReservationNonOverlapProperty(t *testing.T) {
	f := newReservationFixture(t)
	f.svc.limits = nil
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		startMin := rng.Intn(24*60 - 30)
		length := 15 + rng.Intn(180)
		endMin := startMin + length
		if endMin > 23*60+59 {
			endMin = 23*60 + 59
		}
		room := []string{"room-a", "room-b"}[rng.Intn(2)]
		req := booking(room, "2024-01-10", fmt.Sprintf("%02d:%02d", startMin/60, startMin%60), fmt.Sprintf("%02d:%02d", endMin/60, endMin%60))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, bookerActor, req, RequestMeta{})
			if err != nil {
				assert.ErrorIs(t, err, appErrors.ErrReservationConflict)
			}
		}()
	}
	wg.Wait()

	stored, _, err := f.repo.List(ctx, models.ReservationFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, stored)
	for i := range stored {
		for j := i + 1; j < len(stored); j++ {
			a, b := stored[i], stored[j]
			if a.RoomID != b.RoomID || !a.Date.Equal(b.Date) {
				continue
			}
			assert.False(t, a.StartAt.Before(b.EndAt) && b.StartAt.Before(a.EndAt), "%s and %s overlap", a.ID, b.ID)
		}
	}
}

func TestReservationCreateValidation(t *testing.T) {
	f := newReservationFixture(t)
	ctx := context.Background()

	cases := map[string]CreateReservationRequest{
		"start after end": booking("room-a", "2024-01-10", "11:00", "10:00"),
		"empty interval":  booking("room-a", "2024-01-10", "10:00", "10:00"),
		"bad date":        booking("room-a", "10-01-2024", "10:00", "11:00"),
		"bad clock":       booking("room-a", "2024-01-10", "10h", "11:00"),
		"in the past":     booking("room-a", "2024-01-09", "08:00", "09:00"),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, bookerActor, req, RequestMeta{})
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}

	_, err := f.svc.Create(ctx, bookerActor, booking("room-z", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReservationDurationLimit(t *testing.T) {
	f := newReservationFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, friendActor, booking("room-a", "2024-01-10", "10:00", "11:30"), RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Create(ctx, friendActor, booking("room-a", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	assert.NoError(t, err)

	_, err = f.svc.Create(ctx, adminActor, booking("room-b", "2024-01-10", "09:00", "21:00"), RequestMeta{})
	assert.NoError(t, err)
}

func TestReservationCompanions(t *testing.T) {
	f := newReservationFixture(t)
	ctx := context.Background()

	req := booking("room-a", "2024-01-10", "10:00", "11:00")
	req.Companions = []string{"20231234", "20231234", "F001", "G100"}
	res, err := f.svc.Create(ctx, bookerActor, req, RequestMeta{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"friend", "other"}, []string(res.CompanionIDs))

	req = booking("room-b", "2024-01-10", "10:00", "11:00")
	req.Companions = []string{"X999", "NOPE"}
	_, err = f.svc.Create(ctx, bookerActor, req, RequestMeta{})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "X999")
	assert.Contains(t, err.Error(), "NOPE")

	mine, _, err := f.svc.ListMine(ctx, friendActor, models.ReservationFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestReservationBlockedRequiresAdmin(t *testing.T) {
	f := newReservationFixture(t)
	ctx := context.Background()

	req := booking("room-a", "2024-01-10", "10:00", "11:00")
	req.Status = models.StatusBlocked
	res, err := f.svc.Create(ctx, bookerActor, req, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, res.Status)

	req.RoomID = "room-b"
	res, err = f.svc.Create(ctx, adminActor, req, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, res.Status)

	_, err = f.svc.Create(ctx, otherActor, booking("room-b", "2024-01-10", "10:30", "11:00"), RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrReservationConflict)
}

func TestReservationUpdate(t *testing.T) {
	f := newReservationFixture(t)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, bookerActor, booking("room-a", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, otherActor, booking("room-a", "2024-01-10", "12:00", "13:00"), RequestMeta{})
	require.NoError(t, err)

	// shifting inside its own slot must not conflict with itself
	updated, err := f.svc.Update(ctx, bookerActor, first.ID, UpdateReservationRequest{EndAt: strPtr("11:30")}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 11, 30, 0, 0, seoul), updated.EndAt.In(seoul))

	_, err = f.svc.Update(ctx, bookerActor, first.ID, UpdateReservationRequest{EndAt: strPtr("12:30")}, RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrReservationConflict)

	_, err = f.svc.Update(ctx, otherActor, first.ID, UpdateReservationRequest{Reason: strPtr("mine now")}, RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Update(ctx, adminActor, first.ID, UpdateReservationRequest{RoomID: strPtr("room-b")}, RequestMeta{})
	require.NoError(t, err)

	companions := []string{"20231234"}
	updated, err = f.svc.Update(ctx, bookerActor, first.ID, UpdateReservationRequest{Companions: &companions}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, []string{"friend"}, []string(updated.CompanionIDs))
	assert.Len(t, f.events.updated, 3)

	require.NoError(t, f.svc.Cancel(ctx, bookerActor, first.ID, RequestMeta{}))
	_, err = f.svc.Update(ctx, bookerActor, first.ID, UpdateReservationRequest{Reason: strPtr("again")}, RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestReservationCancel(t *testing.T) {
	f := newReservationFixture(t)
	ctx := context.Background()
	res, err := f.svc.Create(ctx, bookerActor, booking("room-a", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Cancel(ctx, otherActor, res.ID, RequestMeta{}), appErrors.ErrForbidden)
	assert.ErrorIs(t, f.svc.Cancel(ctx, bookerActor, "missing", RequestMeta{}), appErrors.ErrNotFound)

	require.NoError(t, f.svc.Cancel(ctx, bookerActor, res.ID, RequestMeta{}))
	assert.ErrorIs(t, f.svc.Cancel(ctx, bookerActor, res.ID, RequestMeta{}), appErrors.ErrNotFound)
	require.Len(t, f.events.cancelled, 1)
	assert.Equal(t, models.StatusCancelled, f.events.cancelled[0].Status)

	list, _, err := f.svc.List(ctx, models.ReservationFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// the freed slot can be booked again
	_, err = f.svc.Create(ctx, otherActor, booking("room-a", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	assert.NoError(t, err)

	second, err := f.svc.Create(ctx, bookerActor, booking("room-b", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	require.NoError(t, err)
	assert.NoError(t, f.svc.Cancel(ctx, adminActor, second.ID, RequestMeta{}))
}

func TestReservationCheckIn(t *testing.T) {
	f := newReservationFixture(t)
	ctx := context.Background()
	req := booking("room-a", "2024-01-10", "10:00", "11:00")
	req.Companions = []string{"20231234"}
	res, err := f.svc.Create(ctx, bookerActor, req, RequestMeta{})
	require.NoError(t, err)

	near := CheckInRequest{Latitude: checkInPoint.Latitude, Longitude: checkInPoint.Longitude}
	far := CheckInRequest{Latitude: checkInPoint.Latitude + 0.001, Longitude: checkInPoint.Longitude}
	start := res.StartAt

	cases := []struct {
		name  string
		actor policy.Actor
		at    time.Time
		pos   CheckInRequest
		want  *appErrors.Error
	}{
		{"too early", bookerActor, start.Add(-10 * time.Minute), near, appErrors.ErrCheckInWindow},
		{"too late", bookerActor, start.Add(10 * time.Minute), near, appErrors.ErrCheckInWindow},
		{"too far", bookerActor, start, far, appErrors.ErrCheckInDistance},
		{"stranger", otherActor, start, near, appErrors.ErrForbidden},
		{"latitude out of range", bookerActor, start, CheckInRequest{Latitude: 91, Longitude: checkInPoint.Longitude}, appErrors.ErrValidation},
		{"companion inside window", friendActor, start.Add(9*time.Minute + 59*time.Second), near, nil},
		{"booker early edge", bookerActor, start.Add(-9*time.Minute - 59*time.Second), near, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at := tc.at
			f.svc.now = func() time.Time { return at }
			got, err := f.svc.CheckIn(ctx, tc.actor, res.ID, tc.pos)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.IsAttended)
		})
	}
	assert.Equal(t, []string{res.ID}, f.repo.attended)
}

func TestReservationAvailability(t *testing.T) {
	f := newReservationFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, bookerActor, booking("room-a", "2024-01-10", "10:00", "11:00"), RequestMeta{})
	require.NoError(t, err)

	slots, err := f.svc.Availability(ctx, "room-a", "2024-01-10")
	require.NoError(t, err)
	require.Len(t, slots, 26)
	assert.Equal(t, time.Date(2024, 1, 10, 9, 0, 0, 0, seoul), slots[0].StartAt)
	assert.Equal(t, models.StatusAvailable, slots[1].Status)
	assert.Equal(t, models.StatusReserved, slots[2].Status)
	assert.Equal(t, models.StatusReserved, slots[3].Status)
	assert.Equal(t, models.StatusAvailable, slots[4].Status)

	_, err = f.svc.Availability(ctx, "room-z", "2024-01-10")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Availability(ctx, "room-a", "tomorrow")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
