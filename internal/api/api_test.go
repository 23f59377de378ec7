package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fun-friday-chat/backend/internal/history"
	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/internal/repository"
	"fun-friday-chat/backend/internal/rooms"
	"fun-friday-chat/backend/internal/service"
	"fun-friday-chat/backend/pkg/jwt"
	"fun-friday-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoomRepo struct{}

func (fakeRoomRepo) EnsureByName(ctx context.Context, name string) (*models.Room, error) {
	return &models.Room{ID: 1, Name: name}, nil
}

type fakeMessageRepo struct {
	rows []repository.MessageWithAuthor
}

func (f *fakeMessageRepo) Insert(ctx context.Context, roomID uint, userID *uint, text string, isAnonymous bool) (*models.Message, error) {
	return nil, nil
}

func (f *fakeMessageRepo) ListRecent(ctx context.Context, roomID uint, limit int) ([]repository.MessageWithAuthor, error) {
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

type fakeUserRepo struct {
	byEmail map[string]*models.User
	nextID  uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: map[string]*models.User{}, nextID: 1}
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = f.nextID
	f.nextID++
	if user.Email != nil {
		f.byEmail[*user.Email] = user
	}
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	if user.Email != nil {
		f.byEmail[*user.Email] = user
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", JSON: false})
}

func historyRouter(msgRepo *fakeMessageRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := testLogger()
	reg := rooms.NewRegistry(fakeRoomRepo{}, log)
	provider := history.New(reg, msgRepo, nil, 50, time.Minute, log)
	handler := NewHistoryHandler(provider, log)

	r := gin.New()
	r.GET("/api/rooms/:room/messages", handler.Messages)
	return r
}

func TestHistoryEndpoint(t *testing.T) {
	uid := uint(7)
	r := historyRouter(&fakeMessageRepo{rows: []repository.MessageWithAuthor{
		{ID: 1, Text: "hello", CreatedAt: time.Now(), UserName: "Pat", UserID: &uid},
	}})

	req, _ := http.NewRequest(http.MethodGet, "/api/rooms/fun-friday/messages?limit=10", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var rows []models.MessagePayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0].Text)
	assert.Equal(t, "Pat", rows[0].UserName)
}

func TestHistoryEndpointRejectsBadLimit(t *testing.T) {
	r := historyRouter(&fakeMessageRepo{})

	req, _ := http.NewRequest(http.MethodGet, "/api/rooms/fun-friday/messages?limit=nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := testLogger()
	auth := service.NewAuthService(newFakeUserRepo(), log)
	jwtService := jwt.NewService("test-secret", time.Hour)
	handler := NewAuthHandler(auth, jwtService, log)

	r := gin.New()
	r.POST("/api/register", handler.Register)
	r.POST("/api/login", handler.Login)
	return r
}

func TestRegisterEndpoint(t *testing.T) {
	r := authRouter()

	body := `{"email":"pat@example.com","password":"hunter2","display_name":"Pat"}`
	req, _ := http.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User  models.PublicUser `json:"user"`
		Token string            `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Pat", resp.User.DisplayName)
	assert.NotEmpty(t, resp.Token)

	// Same email again conflicts
	req, _ = http.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginEndpointValidation(t *testing.T) {
	r := authRouter()

	req, _ := http.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginEndpointPasswordless(t *testing.T) {
	r := authRouter()

	req, _ := http.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"sam@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User models.PublicUser `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sam", resp.User.DisplayName)
}
