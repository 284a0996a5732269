package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"zanhu/internal/models"
	"zanhu/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

// --- humanizeParam (pure function, no HTTP) ---

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"answerId", "answer ID"},
		{"newsItemId", "news item ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

// --- parsePagination / parsePage ---

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, 25)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset, "page": parsePage(c)})
	})

	tests := []struct {
		query  string
		limit  float64
		offset float64
		page   float64
	}{
		{"", 25, 0, 1},
		{"?limit=10&offset=30", 10, 30, 1},
		{"?limit=1000", 100, 0, 1},
		{"?limit=-4&offset=-1", 25, 0, 1},
		{"?page=3", 25, 0, 3},
		{"?page=0", 25, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			var body map[string]float64
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.limit, body["limit"])
			assert.Equal(t, tt.offset, body["offset"])
			assert.Equal(t, tt.page, body["page"])
		})
	}
}

// --- parseID / parseUUID ---

func TestParseID(t *testing.T) {
	tests := []struct {
		param  string
		value  string
		status int
		errMsg string
	}{
		{"id", "42", http.StatusOK, ""},
		{"id", "abc", http.StatusBadRequest, "Invalid ID"},
		{"id", "0", http.StatusBadRequest, "Invalid ID"},
		{"userId", "abc", http.StatusBadRequest, "Invalid user ID"},
		{"answerId", "-3", http.StatusBadRequest, "Invalid answer ID"},
	}
	for _, tt := range tests {
		t.Run(tt.param+"="+tt.value, func(t *testing.T) {
			app := fiber.New()
			s := &Server{}
			app.Get("/items/:"+tt.param, func(c *fiber.Ctx) error {
				id, err := s.parseID(c, tt.param)
				if err != nil {
					return nil
				}
				return c.JSON(fiber.Map{"id": id})
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+tt.value, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.errMsg != "" {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.errMsg, body.Error)
			}
		})
	}
}

func TestParseUUID(t *testing.T) {
	app := fiber.New()
	s := &Server{}
	app.Get("/news/:id", func(c *fiber.Ctx) error {
		id, err := s.parseUUID(c, "id")
		if err != nil {
			return nil
		}
		return c.SendString(id.String())
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/news/6f1c3c0e-9a43-4c8e-9df5-0c2b1f7e1a11", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/news/42", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// --- respondAppError ---

func TestRespondAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", models.NewNotFoundError("News", 1), http.StatusNotFound, models.CodeNotFound},
		{"validation", models.NewValidationError("bad"), http.StatusBadRequest, models.CodeValidation},
		{"forbidden", models.NewForbiddenError("no"), http.StatusForbidden, models.CodeForbidden},
		{"conflict", models.NewConflictError("dup"), http.StatusConflict, models.CodeConflict},
		{"plain error", errors.New("db exploded"), http.StatusInternalServerError, models.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return respondAppError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Error, "db exploded")
		})
	}
}

// --- tagList ---

func TestTagListUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want tagList
	}{
		{"array", `{"tags":["go","redis"]}`, tagList{"go", "redis"}},
		{"comma string", `{"tags":" go, redis ,,go"}`, tagList{"go", "redis"}},
		{"null", `{"tags":null}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Tags tagList `json:"tags"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &body))
			assert.Equal(t, tt.want, body.Tags)
		})
	}

	var bad struct {
		Tags tagList `json:"tags"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"tags":42}`), &bad))
}

// --- AdminRequired middleware ---

func adminApp(s *Server, userID uint) *fiber.App {
	app := fiber.New()
	app.Use(withUser(userID))
	app.Get("/admin", s.AdminRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestAdminRequired_AllowsAdmin(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	s := &Server{userRepo: repository.NewUserRepository(gormDB)}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WithArgs(uint(1), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "is_admin"}).AddRow(1, "root", true))

	resp, err := adminApp(s, 1).Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRequired_RejectsNonAdmin(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	s := &Server{userRepo: repository.NewUserRepository(gormDB)}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WithArgs(uint(2), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "is_admin"}).AddRow(2, "alice", false))

	resp, err := adminApp(s, 2).Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Admin access required", body.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRequired_UnknownUser(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	s := &Server{userRepo: repository.NewUserRepository(gormDB)}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WithArgs(uint(999), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	resp, err := adminApp(s, 999).Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
