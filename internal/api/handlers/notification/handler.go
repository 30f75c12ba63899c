package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/akarpovich/notification-service/internal/api/respond"
	"github.com/akarpovich/notification-service/internal/config"
	"github.com/akarpovich/notification-service/internal/model"
	notifrepo "github.com/akarpovich/notification-service/internal/repository/notification"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// notificationService defines the interface that the Handler depends on.
//
//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/notification/mock.go -package=mocks
type notificationService interface {
	Submit(ctx context.Context, strategy retry.Strategy, recipientID, payload string, channels []model.Channel) ([]model.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	List(ctx context.Context, f notifrepo.ListFilter) ([]model.Notification, int, error)
	SetRead(ctx context.Context, id uuid.UUID, read bool) error
}

// Handler handles HTTP requests related to notifications.
type Handler struct {
	service   notificationService
	validator *validator.Validate
	cfg       *config.Config
}

func NewHandler(
	s notificationService,
	v *validator.Validate,
	cfg *config.Config,
) *Handler {
	return &Handler{service: s, validator: v, cfg: cfg}
}

// CreateRequest represents the JSON body expected in a notification creation request.
type CreateRequest struct {
	RecipientID string   `json:"recipientId" validate:"required"`
	Payload     string   `json:"payload" validate:"required"`
	Channels    []string `json:"channels" validate:"required,min=1,dive,required"`
}

// ListResponse is one page of notifications plus pagination metadata.
type ListResponse struct {
	Content       []model.Notification `json:"content"`
	TotalElements int                  `json:"totalElements"`
	Page          int                  `json:"page"`
	Size          int                  `json:"size"`
}

// partialResponse is returned when fan-out created some records but not all.
type partialResponse struct {
	Created []model.Notification `json:"created"`
	Error   string               `json:"error"`
}

// Create handles POST /api/notifications.
//
// It validates the request body, fans the request out into one record per
// channel and responds 201 with the created records. When only some channels
// could be persisted it responds 207 naming both sides.
func (h *Handler) Create(c *ginext.Context) {
	var req CreateRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	channels := make([]model.Channel, 0, len(req.Channels))
	for _, raw := range req.Channels {
		channel, err := model.ParseChannel(raw)
		if err != nil {
			zlog.Logger.Warn().Err(err).Msg("invalid channel in request")
			respond.Fail(c.Writer, http.StatusBadRequest, err)
			return
		}

		channels = append(channels, channel)
	}

	created, err := h.service.Submit(c.Request.Context(), h.cfg.Retry, req.RecipientID, req.Payload, channels)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("recipient", req.RecipientID).Msg("failed to create notifications")

		if len(created) == 0 {
			respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
			return
		}

		respond.JSON(c.Writer, http.StatusMultiStatus, partialResponse{Created: created, Error: err.Error()})
		return
	}

	respond.Created(c.Writer, created)
}

// GetByID handles GET /api/notifications/:id.
func (h *Handler) GetByID(c *ginext.Context) {
	id, err := parseID(c)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, err)
		return
	}

	n, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, notifrepo.ErrNotificationNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, n)
}

// List handles GET /api/notifications.
//
// recipientId is required; channels and statuses are optional comma-separated
// filters defaulting to all values; page defaults to 0 and size to 20.
func (h *Handler) List(c *ginext.Context) {
	recipientID := c.Query("recipientId")
	if recipientID == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("missing recipientId"))
		return
	}

	channels, err := parseChannels(c.Query("channels"))
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, err)
		return
	}

	statuses, err := parseStatuses(c.Query("statuses"))
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, err)
		return
	}

	page, err := parseIntParam(c.DefaultQuery("page", "0"), "page")
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, err)
		return
	}

	size, err := parseIntParam(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)), "size")
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, err)
		return
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	filter := notifrepo.ListFilter{
		RecipientID: recipientID,
		Channels:    channels,
		Statuses:    statuses,
		Page:        page,
		Size:        size,
	}

	notifications, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("recipient", recipientID).Msg("failed to list notifications")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, ListResponse{
		Content:       notifications,
		TotalElements: total,
		Page:          page,
		Size:          size,
	})
}

// MarkRead handles PATCH /api/notifications/:id/read.
//
// Responds 204 whether or not the id exists.
func (h *Handler) MarkRead(c *ginext.Context) {
	h.setRead(c, true)
}

// MarkUnread handles PATCH /api/notifications/:id/unread.
func (h *Handler) MarkUnread(c *ginext.Context) {
	h.setRead(c, false)
}

func (h *Handler) setRead(c *ginext.Context, read bool) {
	id, err := parseID(c)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, err)
		return
	}

	if err := h.service.SetRead(c.Request.Context(), id, read); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to update read flag")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.NoContent(c.Writer)
}

func parseID(c *ginext.Context) (uuid.UUID, error) {
	idStr := c.Param("id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("id", idStr).Msg("failed to parse id")
		return uuid.Nil, fmt.Errorf("invalid id")
	}

	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("missing id")
	}

	return id, nil
}

func parseChannels(raw string) ([]model.Channel, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	channels := make([]model.Channel, 0, len(parts))
	for _, p := range parts {
		channel, err := model.ParseChannel(p)
		if err != nil {
			return nil, err
		}

		channels = append(channels, channel)
	}

	return channels, nil
}

func parseStatuses(raw string) ([]model.Status, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	statuses := make([]model.Status, 0, len(parts))
	for _, p := range parts {
		status, err := model.ParseStatus(p)
		if err != nil {
			return nil, err
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

func parseIntParam(raw, name string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}

	return v, nil
}
