package server

import (
	"net/http"
	"testing"

	"zanhu/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewsLifecycle(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	aliceTok, bobTok := e.token(t, alice), e.token(t, bob)

	status, raw := e.do(t, http.MethodPost, "/api/news", aliceTok, map[string]string{"content": "  hello zanhu  "})
	require.Equal(t, http.StatusCreated, status, string(raw))
	news := decode[models.News](t, raw)
	assert.Equal(t, "hello zanhu", news.Content)
	assert.False(t, news.Reply)
	base := "/api/news/" + news.ID.String()

	t.Run("like toggles", func(t *testing.T) {
		status, raw := e.do(t, http.MethodPost, base+"/like", bobTok, nil)
		require.Equal(t, http.StatusOK, status, string(raw))
		assert.JSONEq(t, `{"likes":1}`, string(raw))

		var n models.Notification
		require.NoError(t, e.db.Where("recipient_id = ? AND verb = ?", alice.ID, models.VerbLike).First(&n).Error)
		assert.Equal(t, bob.ID, n.ActorID)
		assert.True(t, n.Unread)

		_, raw = e.do(t, http.MethodPost, base+"/like", bobTok, nil)
		assert.JSONEq(t, `{"likes":0}`, string(raw))
	})

	t.Run("reply and thread", func(t *testing.T) {
		status, raw := e.do(t, http.MethodPost, base+"/comments", bobTok, map[string]string{"reply": "nice"})
		require.Equal(t, http.StatusOK, status, string(raw))
		assert.JSONEq(t, `{"comments":1}`, string(raw))

		status, _ = e.do(t, http.MethodPost, base+"/comments", bobTok, map[string]string{"reply": "   "})
		assert.Equal(t, http.StatusBadRequest, status)

		status, raw = e.do(t, http.MethodGet, base+"/thread", aliceTok, nil)
		require.Equal(t, http.StatusOK, status)
		body := decode[struct {
			UUID   string        `json:"uuid"`
			News   models.News   `json:"news"`
			Thread []models.News `json:"thread"`
		}](t, raw)
		assert.Equal(t, news.ID.String(), body.UUID)
		require.Len(t, body.Thread, 1)
		assert.True(t, body.Thread[0].Reply)
		assert.Equal(t, "nice", body.Thread[0].Content)

		status, raw = e.do(t, http.MethodPost, base+"/interactions", aliceTok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"likes":0,"comments":1}`, string(raw))
	})

	t.Run("feed lists roots only", func(t *testing.T) {
		status, raw := e.do(t, http.MethodGet, "/api/news", bobTok, nil)
		require.Equal(t, http.StatusOK, status)
		feed := decode[[]models.News](t, raw)
		require.Len(t, feed, 1)
		assert.Equal(t, news.ID, feed[0].ID)
	})

	t.Run("only the author deletes", func(t *testing.T) {
		status, _ := e.do(t, http.MethodDelete, base, bobTok, nil)
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = e.do(t, http.MethodDelete, base, aliceTok, nil)
		assert.Equal(t, http.StatusNoContent, status)

		status, _ = e.do(t, http.MethodPost, base+"/like", bobTok, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("bad id", func(t *testing.T) {
		status, _ := e.do(t, http.MethodPost, "/api/news/not-a-uuid/like", bobTok, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}
