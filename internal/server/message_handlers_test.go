package server

import (
	"net/http"
	"testing"

	"zanhu/internal/models"
	"zanhu/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessaging(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	e.user(t, "carol")
	aliceTok, bobTok := e.token(t, alice), e.token(t, bob)

	status, raw := e.do(t, http.MethodPost, "/api/messages", aliceTok, map[string]string{"to": "bob", "message": " hi bob "})
	require.Equal(t, http.StatusCreated, status, string(raw))
	msg := decode[models.Message](t, raw)
	assert.Equal(t, "hi bob", msg.Body)
	assert.True(t, msg.Unread)

	t.Run("rejects bad sends", func(t *testing.T) {
		status, _ := e.do(t, http.MethodPost, "/api/messages", aliceTok, map[string]string{"to": "alice", "message": "me"})
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = e.do(t, http.MethodPost, "/api/messages", aliceTok, map[string]string{"to": "nobody", "message": "hey"})
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = e.do(t, http.MethodPost, "/api/messages", aliceTok, map[string]string{"to": "bob", "message": "  "})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("only the recipient marks read", func(t *testing.T) {
		path := "/api/messages/" + msg.ID.String() + "/read"
		status, _ := e.do(t, http.MethodPost, path, aliceTok, nil)
		assert.Equal(t, http.StatusNotFound, status)

		status, raw := e.do(t, http.MethodPost, path, bobTok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"status":"true"}`, string(raw))

		var stored models.Message
		require.NoError(t, e.db.First(&stored, "id = ?", msg.ID).Error)
		assert.False(t, stored.Unread)
	})

	t.Run("conversation", func(t *testing.T) {
		status, _ := e.do(t, http.MethodPost, "/api/messages", bobTok, map[string]string{"to": "alice", "message": "hey alice"})
		require.Equal(t, http.StatusCreated, status)

		status, raw := e.do(t, http.MethodGet, "/api/messages/bob", aliceTok, nil)
		require.Equal(t, http.StatusOK, status)
		conv := decode[service.Conversation](t, raw)
		assert.Equal(t, "bob", conv.With.Username)
		require.Len(t, conv.Messages, 2)
		assert.Equal(t, "hi bob", conv.Messages[0].Body)

		var unread int64
		require.NoError(t, e.db.Model(&models.Message{}).Where("recipient_id = ? AND unread = ?", alice.ID, true).Count(&unread).Error)
		assert.Zero(t, unread)

		status, _ = e.do(t, http.MethodGet, "/api/messages/nobody", aliceTok, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("inbox", func(t *testing.T) {
		status, raw := e.do(t, http.MethodGet, "/api/messages", aliceTok, nil)
		require.Equal(t, http.StatusOK, status)
		inbox := decode[service.Inbox](t, raw)
		assert.Equal(t, "bob", inbox.ActiveUsername)
		assert.Len(t, inbox.Users, 2)
		assert.Len(t, inbox.Conversation, 2)
	})
}
