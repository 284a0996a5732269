package server

import (
	"net/http"
	"testing"

	"zanhu/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifications(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	aliceTok, bobTok := e.token(t, alice), e.token(t, bob)

	status, raw := e.do(t, http.MethodPost, "/api/news", aliceTok, map[string]string{"content": "post"})
	require.Equal(t, http.StatusCreated, status)
	news := decode[models.News](t, raw)
	base := "/api/news/" + news.ID.String()

	// A like and a reply from bob, plus alice liking her own post which is not notified.
	e.do(t, http.MethodPost, base+"/like", bobTok, nil)
	e.do(t, http.MethodPost, base+"/comments", bobTok, map[string]string{"reply": "first"})
	e.do(t, http.MethodPost, base+"/like", aliceTok, nil)

	status, raw = e.do(t, http.MethodGet, "/api/notifications", aliceTok, nil)
	require.Equal(t, http.StatusOK, status)
	unread := decode[[]models.Notification](t, raw)
	require.Len(t, unread, 2)
	for _, n := range unread {
		assert.Equal(t, bob.ID, n.ActorID)
		assert.NotEmpty(t, n.Slug)
	}

	status, raw = e.do(t, http.MethodGet, "/api/notifications/latest", aliceTok, nil)
	require.Equal(t, http.StatusOK, status)
	latest := decode[struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int64                 `json:"unread"`
	}](t, raw)
	assert.Equal(t, int64(2), latest.Unread)
	assert.Len(t, latest.Notifications, 2)

	t.Run("mark one", func(t *testing.T) {
		slug := unread[0].Slug
		status, _ := e.do(t, http.MethodPost, "/api/notifications/"+slug+"/read", bobTok, nil)
		assert.Equal(t, http.StatusNotFound, status)

		status, raw := e.do(t, http.MethodPost, "/api/notifications/"+slug+"/read", aliceTok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.False(t, decode[models.Notification](t, raw).Unread)

		status, raw = e.do(t, http.MethodGet, "/api/notifications?read=true", aliceTok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, decode[[]models.Notification](t, raw), 1)

		status, raw = e.do(t, http.MethodPost, "/api/notifications/"+slug+"/unread", aliceTok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, decode[models.Notification](t, raw).Unread)
	})

	t.Run("mark all", func(t *testing.T) {
		status, raw := e.do(t, http.MethodPost, "/api/notifications/mark-all-read", aliceTok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"updated":2}`, string(raw))

		_, raw = e.do(t, http.MethodGet, "/api/notifications", aliceTok, nil)
		assert.Empty(t, decode[[]models.Notification](t, raw))

		_, raw = e.do(t, http.MethodPost, "/api/notifications/mark-all-unread", aliceTok, nil)
		assert.JSONEq(t, `{"updated":2}`, string(raw))
	})

	status, raw = e.do(t, http.MethodGet, "/api/notifications", bobTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]models.Notification](t, raw))
}
