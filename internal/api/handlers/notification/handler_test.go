package notification

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/retry"

	"github.com/akarpovich/notification-service/internal/config"
	mocks "github.com/akarpovich/notification-service/internal/mocks/api/handlers/notification"
	"github.com/akarpovich/notification-service/internal/model"
	notifrepo "github.com/akarpovich/notification-service/internal/repository/notification"
)

func setupHandler(t *testing.T) (*Handler, *mocks.MocknotificationService, *config.Config) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMocknotificationService(ctrl)
	cfg := &config.Config{Retry: retry.Strategy{Attempts: 3, Delay: 2 * time.Second}}
	validate := validator.New()
	handler := NewHandler(mockService, validate, cfg)
	return handler, mockService, cfg
}

func TestHandler_Create_Success(t *testing.T) {
	handler, mockService, cfg := setupHandler(t)

	reqBody := CreateRequest{
		RecipientID: "user-1",
		Payload:     "order shipped",
		Channels:    []string{"email", "SMS"},
	}

	bodyBytes, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/notifications", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	created := []model.Notification{
		{ID: uuid.New(), RecipientID: "user-1", Channel: model.ChannelEmail, Status: model.StatusPending},
		{ID: uuid.New(), RecipientID: "user-1", Channel: model.ChannelSMS, Status: model.StatusPending},
	}

	mockService.EXPECT().
		Submit(gomock.Any(), cfg.Retry, "user-1", "order shipped", []model.Channel{model.ChannelEmail, model.ChannelSMS}).
		Return(created, nil)

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)

	var got []model.Notification
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, model.ChannelEmail, got[0].Channel)
}

func TestHandler_Create_ValidationError(t *testing.T) {
	handler, _, _ := setupHandler(t)

	reqBody := CreateRequest{
		RecipientID: "user-1",
		Payload:     "order shipped",
		// no channels
	}

	bodyBytes, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/notifications", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandler_Create_InvalidChannel(t *testing.T) {
	handler, _, _ := setupHandler(t)

	reqBody := CreateRequest{
		RecipientID: "user-1",
		Payload:     "order shipped",
		Channels:    []string{"EMAIL", "FAX"},
	}

	bodyBytes, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/notifications", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandler_Create_PartialFailure(t *testing.T) {
	handler, mockService, cfg := setupHandler(t)

	reqBody := CreateRequest{
		RecipientID: "user-1",
		Payload:     "order shipped",
		Channels:    []string{"EMAIL", "PUSH"},
	}

	bodyBytes, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/notifications", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	created := []model.Notification{
		{ID: uuid.New(), RecipientID: "user-1", Channel: model.ChannelEmail, Status: model.StatusPending},
	}

	mockService.EXPECT().
		Submit(gomock.Any(), cfg.Retry, "user-1", "order shipped", []model.Channel{model.ChannelEmail, model.ChannelPush}).
		Return(created, errors.New("create notification for channel PUSH: db down"))

	handler.Create(c)

	assert.Equal(t, http.StatusMultiStatus, w.Result().StatusCode)

	var got partialResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Created, 1)
	assert.Contains(t, got.Error, "PUSH")
}

func TestHandler_Create_AllChannelsFail(t *testing.T) {
	handler, mockService, cfg := setupHandler(t)

	reqBody := CreateRequest{
		RecipientID: "user-1",
		Payload:     "order shipped",
		Channels:    []string{"EMAIL"},
	}

	bodyBytes, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/notifications", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	mockService.EXPECT().
		Submit(gomock.Any(), cfg.Retry, "user-1", "order shipped", []model.Channel{model.ChannelEmail}).
		Return(nil, errors.New("db down"))

	handler.Create(c)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
}

func TestHandler_GetByID_Success(t *testing.T) {
	handler, mockService, _ := setupHandler(t)
	id := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/"+id.String(), nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	mockService.EXPECT().
		GetByID(gomock.Any(), id).
		Return(model.Notification{ID: id, Status: model.StatusSent}, nil)

	handler.GetByID(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var got model.Notification
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, model.StatusSent, got.Status)
}

func TestHandler_GetByID_NotFound(t *testing.T) {
	handler, mockService, _ := setupHandler(t)
	id := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/"+id.String(), nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	mockService.EXPECT().
		GetByID(gomock.Any(), id).
		Return(model.Notification{}, notifrepo.ErrNotificationNotFound)

	handler.GetByID(c)

	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestHandler_GetByID_InvalidID(t *testing.T) {
	handler, _, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/not-a-uuid", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	handler.GetByID(c)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandler_List_Success(t *testing.T) {
	handler, mockService, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications?recipientId=u1&channels=EMAIL,SMS&statuses=FAILED&page=1&size=10", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	mockService.EXPECT().
		List(gomock.Any(), notifrepo.ListFilter{
			RecipientID: "u1",
			Channels:    []model.Channel{model.ChannelEmail, model.ChannelSMS},
			Statuses:    []model.Status{model.StatusFailed},
			Page:        1,
			Size:        10,
		}).
		Return([]model.Notification{{RecipientID: "u1", Channel: model.ChannelEmail}}, 11, nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var got ListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 11, got.TotalElements)
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, 10, got.Size)
	assert.Len(t, got.Content, 1)
}

func TestHandler_List_Defaults(t *testing.T) {
	handler, mockService, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications?recipientId=u1", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	mockService.EXPECT().
		List(gomock.Any(), notifrepo.ListFilter{
			RecipientID: "u1",
			Page:        0,
			Size:        defaultPageSize,
		}).
		Return([]model.Notification{}, 0, nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
}

func TestHandler_List_MissingRecipient(t *testing.T) {
	handler, _, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandler_List_InvalidStatus(t *testing.T) {
	handler, _, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications?recipientId=u1&statuses=DELIVERED", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandler_List_SizeCapped(t *testing.T) {
	handler, mockService, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications?recipientId=u1&size=500", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	mockService.EXPECT().
		List(gomock.Any(), notifrepo.ListFilter{
			RecipientID: "u1",
			Page:        0,
			Size:        maxPageSize,
		}).
		Return([]model.Notification{}, 0, nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
}

func TestHandler_MarkRead_Success(t *testing.T) {
	handler, mockService, _ := setupHandler(t)
	id := uuid.New()

	req := httptest.NewRequest(http.MethodPatch, "/api/notifications/"+id.String()+"/read", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	mockService.EXPECT().
		SetRead(gomock.Any(), id, true).
		Return(nil)

	handler.MarkRead(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Result().StatusCode)
}

func TestHandler_MarkUnread_UnknownID(t *testing.T) {
	handler, mockService, _ := setupHandler(t)
	id := uuid.New()

	req := httptest.NewRequest(http.MethodPatch, "/api/notifications/"+id.String()+"/unread", nil)
	w := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	// Missing ids are swallowed by the service; the endpoint still answers 204.
	mockService.EXPECT().
		SetRead(gomock.Any(), id, false).
		Return(nil)

	handler.MarkUnread(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Result().StatusCode)
}
