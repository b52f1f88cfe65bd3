package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync-service/internal/config"
	"chat-sync-service/internal/mocks"
	"chat-sync-service/internal/relay"
	"chat-sync-service/internal/repositories"
)

func setupRelayRouter(users *mocks.UserRepositoryMock, gateway *mocks.GatewayMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := config.Config{}
	cfg.App.CurrentVersion = "1.2.0"
	cfg.App.Latest = config.LatestVersion{
		Version:      "1.3.0",
		VersionCode:  13,
		DownloadURL:  "https://example.com/app.apk",
		ReleaseNotes: []string{"bug fixes"},
		MinVersion:   "1.0.0",
	}

	dispatcher := relay.NewDispatcher(users, gateway, logger)
	handler := NewRelayHandler(dispatcher, users, cfg)

	r := gin.New()
	r.POST("/api/send-notification", handler.SendNotification)
	r.GET("/api/user/:user_id/token", handler.GetToken)
	r.POST("/api/user/:user_id/token", handler.SetToken)
	r.GET("/api/app/version", handler.AppVersion)
	r.GET("/", handler.Liveness)
	return r
}

func TestSendNotificationSuccess(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	gateway := new(mocks.GatewayMock)
	router := setupRelayRouter(users, gateway)

	users.On("GetToken", mock.Anything, "bob").Return("token-bob", nil).Once()
	gateway.On("Send", mock.Anything, "token-bob", mock.Anything).Return("dispatch-1", nil).Once()

	body := bytes.NewBufferString(`{"receiverId":"bob","senderId":"alice","senderName":"Alice","message":"hi","chatRoomId":"room1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/send-notification", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "dispatch-1", resp["messageId"])
	users.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestSendNotificationNoToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	gateway := new(mocks.GatewayMock)
	router := setupRelayRouter(users, gateway)

	users.On("GetToken", mock.Anything, "bob").Return("", nil).Once()

	body := bytes.NewBufferString(`{"receiverId":"bob","senderId":"alice","senderName":"Alice","message":"hi","chatRoomId":"room1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/send-notification", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, false, resp["success"])
	gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendNotificationGatewayFailure(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	gateway := new(mocks.GatewayMock)
	router := setupRelayRouter(users, gateway)

	users.On("GetToken", mock.Anything, "bob").Return("token-bob", nil).Once()
	gateway.On("Send", mock.Anything, "token-bob", mock.Anything).Return("", assert.AnError).Once()

	body := bytes.NewBufferString(`{"receiverId":"bob","senderId":"alice","senderName":"Alice","message":"hi","chatRoomId":"room1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/send-notification", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSendNotificationMissingFields(t *testing.T) {
	router := setupRelayRouter(new(mocks.UserRepositoryMock), new(mocks.GatewayMock))

	req := httptest.NewRequest(http.MethodPost, "/api/send-notification", bytes.NewBufferString(`{"receiverId":"bob"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTokenPresent(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupRelayRouter(users, new(mocks.GatewayMock))

	users.On("GetToken", mock.Anything, "bob").Return("token-bob", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/user/bob/token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "bob", resp["userId"])
	assert.Equal(t, "token-bob", resp["fcmToken"])
}

func TestGetTokenAbsentUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupRelayRouter(users, new(mocks.GatewayMock))

	users.On("GetToken", mock.Anything, "ghost").Return("", repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/user/ghost/token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTokenUnsetIsNull(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupRelayRouter(users, new(mocks.GatewayMock))

	users.On("GetToken", mock.Anything, "bob").Return("", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/user/bob/token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Nil(t, resp["fcmToken"])
}

func TestSetToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupRelayRouter(users, new(mocks.GatewayMock))

	users.On("SetToken", mock.Anything, "bob", "new-token").Return(nil).Once()

	body := bytes.NewBufferString(`{"fcmToken":"new-token"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/user/bob/token", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestAppVersion(t *testing.T) {
	router := setupRelayRouter(new(mocks.UserRepositoryMock), new(mocks.GatewayMock))

	req := httptest.NewRequest(http.MethodGet, "/api/app/version", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success        bool                 `json:"success"`
		CurrentVersion string               `json:"currentVersion"`
		LatestVersion  config.LatestVersion `json:"latestVersion"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "1.2.0", resp.CurrentVersion)
	assert.Equal(t, "1.3.0", resp.LatestVersion.Version)
}

func TestLiveness(t *testing.T) {
	router := setupRelayRouter(new(mocks.UserRepositoryMock), new(mocks.GatewayMock))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp["timestamp"])
}
