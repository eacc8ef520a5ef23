// Package calendar talks to the Google Calendar API on behalf of users that linked
// their Google account.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/noah-isme/room-reservation-api/pkg/config"
)

// DefaultCalendarID targets the user's primary calendar.
const DefaultCalendarID = "primary"

// ErrNotConfigured is returned when no OAuth client is configured.
var ErrNotConfigured = errors.New("google calendar is not configured")

// Token is the persisted OAuth credential of a linked account.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

func (t Token) oauth() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

func fromOAuth(t *oauth2.Token) Token {
	return Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// Event describes a calendar entry for a reservation.
type Event struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// Result carries the remote event id and the token after any refresh, so callers can
// persist rotated credentials.
type Result struct {
	EventID string
	Token   Token
	Rotated bool
}

// Google implements calendar operations with golang.org/x/oauth2 token sources.
type Google struct {
	oauth    *oauth2.Config
	endpoint string
}

// Option customises the Google client.
type Option func(*Google)

// WithEndpoint overrides the Calendar API base URL.
func WithEndpoint(endpoint string) Option {
	return func(g *Google) { g.endpoint = endpoint }
}

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(tokenURL string) Option {
	return func(g *Google) { g.oauth.Endpoint.TokenURL = tokenURL }
}

// NewGoogle builds a client from configuration.
func NewGoogle(cfg config.CalendarConfig, opts ...Option) *Google {
	g := &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gcal.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured reports whether OAuth client credentials are present.
func (g *Google) Configured() bool {
	return g != nil && g.oauth.ClientID != "" && g.oauth.ClientSecret != ""
}

// AuthCodeURL returns the consent URL. Offline access is requested so a refresh token is issued.
func (g *Google) AuthCodeURL(state string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an authorization code for a token.
func (g *Google) Exchange(ctx context.Context, code string) (Token, error) {
	if !g.Configured() {
		return Token{}, ErrNotConfigured
	}
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return Token{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	return fromOAuth(tok), nil
}

// PushEvent inserts an event and returns its id.
func (g *Google) PushEvent(ctx context.Context, tok Token, calendarID string, ev Event) (Result, error) {
	svc, ts, err := g.service(ctx, tok)
	if err != nil {
		return Result{}, err
	}
	created, err := svc.Events.Insert(calendarOrDefault(calendarID), toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return Result{}, fmt.Errorf("insert calendar event: %w", err)
	}
	res := Result{EventID: created.Id}
	res.Token, res.Rotated = current(ts, tok)
	return res, nil
}

// UpdateEvent replaces an existing event.
func (g *Google) UpdateEvent(ctx context.Context, tok Token, calendarID, eventID string, ev Event) (Result, error) {
	svc, ts, err := g.service(ctx, tok)
	if err != nil {
		return Result{}, err
	}
	if _, err := svc.Events.Update(calendarOrDefault(calendarID), eventID, toGoogleEvent(ev)).Context(ctx).Do(); err != nil {
		return Result{}, fmt.Errorf("update calendar event %s: %w", eventID, err)
	}
	res := Result{EventID: eventID}
	res.Token, res.Rotated = current(ts, tok)
	return res, nil
}

// RemoveEvent deletes an event. An event that is already gone counts as removed.
func (g *Google) RemoveEvent(ctx context.Context, tok Token, calendarID, eventID string) (Result, error) {
	svc, ts, err := g.service(ctx, tok)
	if err != nil {
		return Result{}, err
	}
	if err := svc.Events.Delete(calendarOrDefault(calendarID), eventID).Context(ctx).Do(); err != nil && !isGone(err) {
		return Result{}, fmt.Errorf("delete calendar event %s: %w", eventID, err)
	}
	res := Result{EventID: eventID}
	res.Token, res.Rotated = current(ts, tok)
	return res, nil
}

func (g *Google) service(ctx context.Context, tok Token) (*gcal.Service, oauth2.TokenSource, error) {
	if !g.Configured() {
		return nil, nil, ErrNotConfigured
	}
	ts := g.oauth.TokenSource(ctx, tok.oauth())
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create calendar service: %w", err)
	}
	return svc, ts, nil
}

func current(ts oauth2.TokenSource, prev Token) (Token, bool) {
	tok, err := ts.Token()
	if err != nil || tok == nil {
		return prev, false
	}
	next := fromOAuth(tok)
	if next.RefreshToken == "" {
		next.RefreshToken = prev.RefreshToken
	}
	return next, next.AccessToken != prev.AccessToken
}

func toGoogleEvent(ev Event) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.TimeZone},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.TimeZone},
	}
}

func calendarOrDefault(id string) string {
	if id == "" {
		return DefaultCalendarID
	}
	return id
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
