package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/export"
	"github.com/noah-isme/room-reservation-api/pkg/storage"
)

const exportPageSize = 100

type reservationLister interface {
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	// DownloadPrefix is the route under which tokens are served, e.g. /api/v1/exports.
	DownloadPrefix string
	ResultTTL      time.Duration
	MaxRows        int
	Location       *time.Location
}

// ExportRequest selects reservations for an export. Dates are inclusive YYYY-MM-DD bounds.
type ExportRequest struct {
	Format           string `json:"format" validate:"required,oneof=csv xlsx pdf"`
	From             string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To               string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	RoomID           string `json:"room_id"`
	IncludeCancelled bool   `json:"include_cancelled"`
}

// ExportDownload is an opened export file.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
}

var exportHeaders = []string{"ID", "Room", "Date", "Start", "End", "Status", "Booker No", "Booker", "Companions", "Reason", "Attended"}

// ExportService renders reservation listings and hands out signed download links.
type ExportService struct {
	reservations reservationLister
	storage      fileStorage
	signer       *storage.SignedURLSigner
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          ExportConfig
	now          func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(reservations reservationLister, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10000
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DownloadPrefix == "" {
		cfg.DownloadPrefix = "/api/v1/exports"
	}
	return &ExportService{
		reservations: reservations,
		storage:      files,
		signer:       signer,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Export renders the selected reservations and stores the file.
func (s *ExportService) Export(ctx context.Context, actor policy.Actor, req ExportRequest) (*models.ExportFile, error) {
	if !actor.Can(policy.Export) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can export reservations")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid export request")
	}
	filter, err := s.filter(req)
	if err != nil {
		return nil, err
	}
	renderer, err := export.NewRenderer(export.Format(req.Format))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	rows, err := s.collect(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to load reservations")
	}
	dataset := export.Dataset{Title: "Reservations", Headers: exportHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, res := range rows {
		dataset.Rows = append(dataset.Rows, s.row(res))
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, internalError(err, "failed to render export")
	}

	id := uuid.NewString()
	filename := fmt.Sprintf("reservations_%s_%s.%s", s.now().UTC().Format("20060102_150405"), id[:8], renderer.Extension())
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, internalError(err, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, internalError(err, "failed to sign export link")
	}
	s.logger.Info("reservation export generated", zap.String("export_id", id), zap.String("format", req.Format), zap.Int("rows", len(rows)))
	return &models.ExportFile{
		ID:          id,
		Format:      req.Format,
		Rows:        len(rows),
		DownloadURL: storage.DownloadURL(s.cfg.DownloadPrefix, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Open resolves a download token to its file. The caller closes the file.
func (s *ExportService) Open(token string) (*ExportDownload, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer exists")
		}
		return nil, internalError(err, "failed to open export")
	}
	contentType := "application/octet-stream"
	if renderer, err := export.NewRenderer(export.Format(strings.TrimPrefix(filepath.Ext(relPath), "."))); err == nil {
		contentType = renderer.ContentType()
	}
	return &ExportDownload{File: file, Filename: filepath.Base(relPath), ContentType: contentType}, nil
}

// Cleanup removes files older than ttl, or the configured result TTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) filter(req ExportRequest) (models.ReservationFilter, error) {
	filter := models.ReservationFilter{RoomID: req.RoomID, IncludeCancelled: req.IncludeCancelled}
	if req.From != "" {
		from, _ := time.ParseInLocation(models.DateLayout, req.From, time.UTC)
		filter.From = &from
	}
	if req.To != "" {
		to, _ := time.ParseInLocation(models.DateLayout, req.To, time.UTC)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return filter, nil
}

func (s *ExportService) collect(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error) {
	var out []models.Reservation
	filter.PageSize = exportPageSize
	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := s.reservations.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < exportPageSize || len(out) >= total {
			break
		}
		if len(out) >= s.cfg.MaxRows {
			s.logger.Warn("reservation export truncated", zap.Int("max_rows", s.cfg.MaxRows), zap.Int("total", total))
			break
		}
	}
	if len(out) > s.cfg.MaxRows {
		out = out[:s.cfg.MaxRows]
	}
	return out, nil
}

func (s *ExportService) row(res models.Reservation) map[string]string {
	start := res.StartAt.In(s.cfg.Location)
	end := res.EndAt.In(s.cfg.Location)
	attended := "no"
	if res.IsAttended {
		attended = "yes"
	}
	return map[string]string{
		"ID":         res.ID,
		"Room":       res.RoomName,
		"Date":       start.Format(models.DateLayout),
		"Start":      start.Format(models.ClockLayout),
		"End":        end.Format(models.ClockLayout),
		"Status":     string(res.Status),
		"Booker No":  res.BookerNo,
		"Booker":     res.BookerName,
		"Companions": strconv.Itoa(len(res.CompanionIDs)),
		"Reason":     res.Reason,
		"Attended":   attended,
	}
}
