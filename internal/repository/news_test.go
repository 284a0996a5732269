package repository

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"zanhu/internal/models"
	"zanhu/internal/observability"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewsRepository_CreateRejectsReplyWithoutParent(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewNewsRepository(db)

	err := repo.Create(context.Background(), &models.News{Content: "orphan", Reply: true})
	require.Error(t, err)
	assert.Equal(t, 400, models.StatusForError(err))
}

func TestNewsRepository_FeedCountsAndLikes(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewNewsRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	older := &models.News{UserID: &alice.ID, Content: "first", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.News{UserID: &bob.ID, Content: "second"}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, &models.News{UserID: &bob.ID, ParentID: &older.ID, Reply: true, Content: "reply"}))

	liked, err := repo.ToggleLike(ctx, older.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	feed, err := repo.ListRoots(ctx, bob.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "second", feed[0].Content)
	assert.Equal(t, "first", feed[1].Content)
	assert.Equal(t, int64(1), feed[1].LikesCount)
	assert.Equal(t, int64(1), feed[1].CommentsCount)
	assert.True(t, feed[1].Liked)
	assert.False(t, feed[0].Liked)

	liked, err = repo.ToggleLike(ctx, older.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	n, err := repo.CountLikes(ctx, older.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewsRepository_ThreadAndDelete(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewNewsRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")

	root := &models.News{UserID: &alice.ID, Content: "root"}
	require.NoError(t, repo.Create(ctx, root))
	first := &models.News{UserID: &alice.ID, ParentID: &root.ID, Reply: true, Content: "r1", CreatedAt: time.Now().Add(-time.Minute)}
	second := &models.News{UserID: &alice.ID, ParentID: &root.ID, Reply: true, Content: "r2"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	_, err := repo.ToggleLike(ctx, first.ID, alice.ID)
	require.NoError(t, err)

	thread, err := repo.Thread(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "r2", thread[0].Content)

	reply, err := repo.GetByID(ctx, first.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reply.CommentsCount)
	assert.Equal(t, root.ID, reply.RootID())

	require.NoError(t, repo.Delete(ctx, root.ID))
	_, err = repo.GetByID(ctx, first.ID, 0)
	assert.Equal(t, 404, models.StatusForError(err))
	assert.Equal(t, 404, models.StatusForError(repo.Delete(ctx, uuid.New())))
}

func TestNewsRepository_MutationsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := observability.GlobalLogger
	observability.SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { observability.GlobalLogger = prev })

	db := setupSQLiteDB(t)
	repo := NewNewsRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")

	post := &models.News{UserID: &alice.ID, Content: "hello"}
	require.NoError(t, repo.Create(ctx, post))
	require.NoError(t, repo.Delete(ctx, post.ID))

	out := buf.String()
	assert.Contains(t, out, `"msg":"repository create","table":"news","operation":"create"`)
	assert.Contains(t, out, `"msg":"repository delete","table":"news","operation":"delete"`)
	assert.Contains(t, out, post.ID.String())
}
