package server

import (
	"fmt"
	"net/http"
	"testing"

	"zanhu/internal/models"
	"zanhu/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticles(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	aliceTok, bobTok := e.token(t, alice), e.token(t, bob)

	status, raw := e.do(t, http.MethodPost, "/api/articles", aliceTok, map[string]any{
		"title":   "Hello World",
		"content": "# Heading\n\nbody",
		"status":  "P",
		"tags":    "go,web",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	article := decode[models.Article](t, raw)
	assert.Equal(t, "hello-world", article.Slug)
	assert.Len(t, article.Tags, 2)

	status, _ = e.do(t, http.MethodPost, "/api/articles", aliceTok, map[string]any{
		"title":   "Hello World",
		"content": "again",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, raw = e.do(t, http.MethodPost, "/api/articles", aliceTok, map[string]any{
		"title":   "Unfinished",
		"content": "wip",
		"tags":    []string{"draft"},
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.ArticleDraft, decode[models.Article](t, raw).Status)

	t.Run("published list is public", func(t *testing.T) {
		status, raw := e.do(t, http.MethodGet, "/api/articles", "", nil)
		require.Equal(t, http.StatusOK, status)
		list := decode[service.ArticleList](t, raw)
		assert.Equal(t, int64(1), list.Total)
		require.Len(t, list.Articles, 1)
		assert.Equal(t, "hello-world", list.Articles[0].Slug)
	})

	t.Run("drafts are per author", func(t *testing.T) {
		_, raw := e.do(t, http.MethodGet, "/api/articles/drafts", aliceTok, nil)
		assert.Len(t, decode[[]models.Article](t, raw), 1)

		_, raw = e.do(t, http.MethodGet, "/api/articles/drafts", bobTok, nil)
		assert.Empty(t, decode[[]models.Article](t, raw))
	})

	t.Run("detail renders markdown", func(t *testing.T) {
		status, raw := e.do(t, http.MethodGet, "/api/articles/hello-world", bobTok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, decode[models.Article](t, raw).ContentHTML, "<h1>Heading</h1>")

		status, _ = e.do(t, http.MethodGet, "/api/articles/missing", bobTok, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("only the author edits", func(t *testing.T) {
		path := fmt.Sprintf("/api/articles/%d", article.ID)
		body := map[string]any{"title": "Hello Again", "content": "edited"}

		status, _ := e.do(t, http.MethodPut, path, bobTok, body)
		assert.Equal(t, http.StatusForbidden, status)

		status, raw := e.do(t, http.MethodPut, path, aliceTok, body)
		require.Equal(t, http.StatusOK, status, string(raw))
		updated := decode[models.Article](t, raw)
		assert.True(t, updated.Edited)
		assert.Equal(t, "hello-again", updated.Slug)
		assert.Equal(t, models.ArticlePublished, updated.Status)
	})

	t.Run("comments notify the author", func(t *testing.T) {
		status, raw := e.do(t, http.MethodPost, "/api/articles/hello-again/comments", bobTok, map[string]string{"content": "great read"})
		require.Equal(t, http.StatusCreated, status, string(raw))

		_, raw = e.do(t, http.MethodGet, "/api/articles/hello-again/comments", aliceTok, nil)
		comments := decode[[]models.ArticleComment](t, raw)
		require.Len(t, comments, 1)
		assert.Equal(t, "great read", comments[0].Content)

		var n models.Notification
		require.NoError(t, e.db.Where("recipient_id = ? AND verb = ?", alice.ID, models.VerbComment).First(&n).Error)
		assert.Equal(t, bob.ID, n.ActorID)
	})
}
