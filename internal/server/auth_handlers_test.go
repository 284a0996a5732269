package server

import (
	"net/http"
	"strconv"
	"testing"

	"zanhu/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

func TestSignup(t *testing.T) {
	e := newTestEnv(t)

	status, raw := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "Password123!",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	resp := decode[authResponse](t, raw)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, "alice@example.com", resp.User.Email)

	claims, err := middleware.ParseAccessToken(resp.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.NotEmpty(t, claims.JTI)

	t.Run("duplicate username", func(t *testing.T) {
		status, _ := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"username": "alice",
			"email":    "other@example.com",
			"password": "Password123!",
		})
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("weak password", func(t *testing.T) {
		status, _ := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"username": "bob",
			"email":    "bob@example.com",
			"password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("invalid email", func(t *testing.T) {
		status, _ := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"username": "carol",
			"email":    "not-an-email",
			"password": "Password123!",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"by username", map[string]string{"username": "alice", "password": "Password123!"}, http.StatusOK},
		{"by email", map[string]string{"email": "alice@example.com", "password": "Password123!"}, http.StatusOK},
		{"wrong password", map[string]string{"username": "alice", "password": "nope"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"username": "nobody", "password": "Password123!"}, http.StatusUnauthorized},
		{"no identifier", map[string]string{"password": "Password123!"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := e.do(t, http.MethodPost, "/api/auth/login", "", tt.body)
			require.Equal(t, tt.status, status, string(raw))
			if tt.status == http.StatusOK {
				assert.Equal(t, alice.ID, decode[authResponse](t, raw).User.ID)
			}
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t, e.user(t, "alice"))

	status, _ := e.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)

	claims, err := middleware.ParseAccessToken(token, testSecret)
	require.NoError(t, err)
	assert.True(t, e.mr.Exists(revokedTokenKey(claims.JTI)))

	status, _ = e.do(t, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestIssueWSTicket(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")

	status, raw := e.do(t, http.MethodPost, "/api/ws/ticket", e.token(t, alice), nil)
	require.Equal(t, http.StatusOK, status, string(raw))

	body := decode[struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}](t, raw)
	require.NotEmpty(t, body.Ticket)
	assert.Equal(t, 30, body.ExpiresIn)

	stored, err := e.mr.Get(wsTicketKey(body.Ticket))
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(uint64(alice.ID), 10), stored)
	assert.Positive(t, e.mr.TTL(wsTicketKey(body.Ticket)))
}
