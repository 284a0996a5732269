package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"zanhu/internal/config"
	"zanhu/internal/database"
	"zanhu/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	s   *Server
	app *fiber.App
	db  *gorm.DB
	rdb *redis.Client
	mr  *miniredis.Miniredis
}

// newTestEnv wires a full Server against in-memory SQLite and miniredis.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s, err := NewServerWithDeps(&config.Config{JWTSecret: testSecret, Env: "test"}, db, rdb)
	require.NoError(t, err)

	return &testEnv{s: s, app: s.newApp(), db: db, rdb: rdb, mr: mr}
}

// user inserts a user whose password is "Password123!".
func (e *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Username: username, Email: username + "@example.com", Password: string(hash)}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := e.s.generateToken(u.ID, u.Username)
	require.NoError(t, err)
	return tok
}

// do sends a JSON request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestReadinessCheck(t *testing.T) {
	e := newTestEnv(t)

	status, raw := e.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	body := decode[map[string]any](t, raw)
	assert.Equal(t, "healthy", body["status"])

	e.mr.Close()
	status, _ = e.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/api/news", "/api/messages", "/api/notifications", "/api/users/me"} {
		status, _ := e.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
	}

	status, _ := e.do(t, http.MethodGet, "/api/articles", "", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, http.MethodGet, "/api/questions/unanswered", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAdminRequired(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	root := e.user(t, "root")
	require.NoError(t, e.db.Model(root).Update("is_admin", true).Error)

	status, _ := e.do(t, http.MethodGet, "/api/admin/feature-flags", e.token(t, alice), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, raw := e.do(t, http.MethodGet, "/api/admin/feature-flags", e.token(t, root), nil)
	require.Equal(t, http.StatusOK, status)
	body := decode[struct {
		Evaluated map[string]bool `json:"evaluated"`
	}](t, raw)
	assert.True(t, body.Evaluated["news_broadcast"])

	status, raw = e.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/promote", alice.ID), e.token(t, root), nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[models.User](t, raw).IsAdmin)
}
