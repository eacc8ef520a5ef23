package service

import (
	"context"
	"encoding/json"
	"io"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/storage"
)

type roomRepository interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, id string) error
	AddImage(ctx context.Context, img *models.RoomImage) error
	FindImage(ctx context.Context, roomID, imageID string) (*models.RoomImage, error)
	DeleteImage(ctx context.Context, imageID string) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RoomRequest is used by create (all fields) and update (only the fields present).
type RoomRequest struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=60"`
	Description  *string  `json:"description"`
	Amenities    []string `json:"amenities" validate:"omitempty,dive,max=60"`
	Notification *string  `json:"notification" validate:"omitempty,max=1000"`
}

// ImageUpload is an uploaded room picture.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// RoomService manages the room catalog. Every mutation requires manage-rooms.
type RoomService struct {
	repo      roomRepository
	audit     auditRecorder
	images    storage.ObjectStore
	maxBytes  int64
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService constructs a RoomService.
func NewRoomService(repo roomRepository, audit auditRecorder, images storage.ObjectStore, maxBytes int64, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RoomService{repo: repo, audit: audit, images: images, maxBytes: maxBytes, validator: validate, logger: logger}
}

// List returns rooms with their images.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	rooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list rooms")
	}
	return rooms, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one room.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "room not found", "failed to load room")
	}
	return room, nil
}

// Create adds a room.
func (s *RoomService) Create(ctx context.Context, actor policy.Actor, req RoomRequest, meta RequestMeta) (*models.Room, error) {
	if !actor.Can(policy.ManageRooms) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage rooms")
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "room name is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid room payload")
	}

	room := &models.Room{Name: strings.TrimSpace(*req.Name), Amenities: req.Amenities, Notification: req.Notification}
	if req.Description != nil {
		room.Description = *req.Description
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, internalError(err, "failed to create room")
	}
	s.record(ctx, actor, models.AuditActionRoomCreate, room.ID, room, meta)
	return room, nil
}

// Update changes the fields present in req.
func (s *RoomService) Update(ctx context.Context, actor policy.Actor, id string, req RoomRequest, meta RequestMeta) (*models.Room, error) {
	if !actor.Can(policy.ManageRooms) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage rooms")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid room payload")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "room not found", "failed to load room")
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "room name is required")
		}
		room.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		room.Description = *req.Description
	}
	if req.Amenities != nil {
		room.Amenities = req.Amenities
	}
	if req.Notification != nil {
		if *req.Notification == "" {
			room.Notification = nil
		} else {
			room.Notification = req.Notification
		}
	}

	if err := s.repo.Update(ctx, room); err != nil {
		return nil, lookupError(err, "room not found", "failed to update room")
	}
	s.record(ctx, actor, models.AuditActionRoomUpdate, room.ID, room, meta)
	return room, nil
}

// Delete removes the room, its reservations and its images.
func (s *RoomService) Delete(ctx context.Context, actor policy.Actor, id string, meta RequestMeta) error {
	if !actor.Can(policy.ManageRooms) {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage rooms")
	}
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "room not found", "failed to load room")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "room not found", "failed to delete room")
	}
	for _, img := range room.Images {
		s.removeObject(ctx, img.ObjectKey)
	}
	s.record(ctx, actor, models.AuditActionRoomDelete, id, map[string]string{"name": room.Name}, meta)
	return nil
}

// AddImage stores an image and appends it to the room's gallery.
func (s *RoomService) AddImage(ctx context.Context, actor policy.Actor, roomID string, upload ImageUpload) (*models.RoomImage, error) {
	if !actor.Can(policy.ManageRooms) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage rooms")
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(upload.ContentType, ";")[0]))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file must be an image")
	}
	if s.maxBytes > 0 && upload.Size > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image is too large")
	}
	if s.images == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "image storage is not configured")
	}
	if _, err := s.repo.FindByID(ctx, roomID); err != nil {
		return nil, lookupError(err, "room not found", "failed to load room")
	}

	ext := imageExtensions[contentType]
	if ext == "" {
		ext = strings.ToLower(path.Ext(upload.Filename))
	}
	key := path.Join("rooms", roomID, uuid.NewString()+ext)
	url, err := s.images.Put(ctx, key, contentType, upload.Body)
	if err != nil {
		return nil, internalError(err, "failed to store image")
	}

	img := &models.RoomImage{RoomID: roomID, ImageURL: url, ObjectKey: key}
	if err := s.repo.AddImage(ctx, img); err != nil {
		s.removeObject(ctx, key)
		return nil, internalError(err, "failed to save image")
	}
	return img, nil
}

// DeleteImage removes an image row and its stored object.
func (s *RoomService) DeleteImage(ctx context.Context, actor policy.Actor, roomID, imageID string) error {
	if !actor.Can(policy.ManageRooms) {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage rooms")
	}
	img, err := s.repo.FindImage(ctx, roomID, imageID)
	if err != nil {
		return lookupError(err, "image not found", "failed to load image")
	}
	if err := s.repo.DeleteImage(ctx, img.ID); err != nil {
		return lookupError(err, "image not found", "failed to delete image")
	}
	s.removeObject(ctx, img.ObjectKey)
	return nil
}

func (s *RoomService) removeObject(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete stored image", zap.String("key", key), zap.Error(err))
	}
}

func (s *RoomService) record(ctx context.Context, actor policy.Actor, action, id string, values interface{}, meta RequestMeta) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		Resource:   "rooms",
		ResourceID: &id,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record room audit log", zap.String("action", action), zap.Error(err))
	}
}
