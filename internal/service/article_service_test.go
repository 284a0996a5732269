package service

import (
	"context"
	"strings"
	"testing"

	"zanhu/internal/models"
	"zanhu/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticleService_CreateArticle_Validation(t *testing.T) {
	t.Parallel()

	svc := NewArticleService(noopArticleRepo(), nil, rendererStub{})
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateArticleInput
	}{
		{name: "empty title", input: CreateArticleInput{UserID: 1, Content: "body"}},
		{name: "blank title", input: CreateArticleInput{UserID: 1, Title: "   ", Content: "body"}},
		{name: "title too long", input: CreateArticleInput{UserID: 1, Title: strings.Repeat("x", 256), Content: "body"}},
		{name: "empty content", input: CreateArticleInput{UserID: 1, Title: "T"}},
		{name: "content too long", input: CreateArticleInput{UserID: 1, Title: "T", Content: strings.Repeat("x", 50001)}},
		{name: "bad status", input: CreateArticleInput{UserID: 1, Title: "T", Content: "c", Status: "X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateArticle(ctx, tt.input)
			assertValidationError(t, err)
		})
	}
}

func TestArticleService_CreateArticle(t *testing.T) {
	t.Parallel()

	repo := noopArticleRepo()
	var gotTags []string
	repo.createFn = func(_ context.Context, a *models.Article, tags []string) error {
		gotTags = tags
		a.ID = 9
		return nil
	}
	svc := NewArticleService(repo, nil, rendererStub{})

	a, err := svc.CreateArticle(context.Background(), CreateArticleInput{
		UserID:  3,
		Title:   "  Hello Go  ",
		Content: "# Hi",
		Status:  models.ArticlePublished,
		Tags:    []string{"go", " web ", "go", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(9), a.ID)
	assert.Equal(t, "Hello Go", a.Title)
	assert.True(t, a.IsAuthor(3))
	assert.Equal(t, []string{"go", "web"}, gotTags)
}

func TestArticleService_ListPublished(t *testing.T) {
	t.Parallel()

	repo := noopArticleRepo()
	var gotLimit, gotOffset int
	repo.listPublishedFn = func(_ context.Context, limit, offset int) (*repository.ArticlePage, error) {
		gotLimit, gotOffset = limit, offset
		return &repository.ArticlePage{Articles: []models.Article{{ID: 1}}, Total: 11}, nil
	}
	repo.popularTagsFn = func(_ context.Context) ([]models.TagCount, error) {
		return []models.TagCount{{Name: "go", Count: 4}}, nil
	}
	svc := NewArticleService(repo, nil, rendererStub{})

	list, err := svc.ListPublished(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, ArticlePageSize, gotLimit)
	assert.Equal(t, ArticlePageSize, gotOffset)
	assert.Equal(t, int64(11), list.Total)
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, "go", list.PopularTags[0].Name)
}

func TestArticleService_GetArticle_RendersMarkdown(t *testing.T) {
	t.Parallel()

	repo := noopArticleRepo()
	repo.getBySlugFn = func(_ context.Context, slug string) (*models.Article, error) {
		return &models.Article{Slug: slug, Content: "text"}, nil
	}
	svc := NewArticleService(repo, nil, rendererStub{})

	a, err := svc.GetArticle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "<p>text</p>", a.ContentHTML)
}

func TestArticleService_UpdateArticle(t *testing.T) {
	t.Parallel()

	newRepo := func() (*articleRepoStub, *[]string, *string) {
		repo := noopArticleRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Article, error) {
			return &models.Article{ID: id, UserID: uintPtr(5), Title: "Old", Slug: "old", Status: models.ArticleDraft}, nil
		}
		var tags []string
		var prev string
		repo.updateFn = func(_ context.Context, _ *models.Article, t []string, previousSlug string) error {
			tags, prev = t, previousSlug
			return nil
		}
		return repo, &tags, &prev
	}

	t.Run("author edits", func(t *testing.T) {
		repo, tags, prev := newRepo()
		svc := NewArticleService(repo, nil, rendererStub{})
		a, err := svc.UpdateArticle(context.Background(), UpdateArticleInput{
			UserID: 5, ArticleID: 1, Title: "New", Content: "c", Status: models.ArticlePublished,
		})
		require.NoError(t, err)
		assert.True(t, a.Edited)
		assert.Equal(t, models.ArticlePublished, a.Status)
		assert.Equal(t, "old", *prev)
		assert.Nil(t, *tags, "nil tags keep the current tags")
		assert.Equal(t, "<p>c</p>", a.ContentHTML)
	})

	t.Run("empty tag list clears tags", func(t *testing.T) {
		repo, tags, _ := newRepo()
		svc := NewArticleService(repo, nil, rendererStub{})
		_, err := svc.UpdateArticle(context.Background(), UpdateArticleInput{
			UserID: 5, ArticleID: 1, Title: "New", Content: "c", Tags: []string{},
		})
		require.NoError(t, err)
		assert.NotNil(t, *tags)
		assert.Empty(t, *tags)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		repo, _, _ := newRepo()
		svc := NewArticleService(repo, nil, rendererStub{})
		_, err := svc.UpdateArticle(context.Background(), UpdateArticleInput{
			UserID: 6, ArticleID: 1, Title: "New", Content: "c",
		})
		assertForbiddenError(t, err)
	})
}

func TestArticleService_CommentArticle_NotifiesAuthor(t *testing.T) {
	t.Parallel()

	repo := noopArticleRepo()
	repo.getBySlugFn = func(_ context.Context, slug string) (*models.Article, error) {
		return &models.Article{ID: 7, UserID: uintPtr(2), Title: "Go tips", Slug: slug}, nil
	}
	var saved *models.ArticleComment
	repo.createCommentFn = func(_ context.Context, c *models.ArticleComment) error {
		saved = c
		return nil
	}
	notifier, notes, _ := newTestNotifier()
	svc := NewArticleService(repo, notifier, rendererStub{})

	commenter := &models.User{ID: 1, Username: "alice"}
	c, err := svc.CommentArticle(context.Background(), CommentArticleInput{User: commenter, Slug: "go-tips", Content: " nice "})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, uint(7), c.ArticleID)
	assert.Equal(t, "nice", c.Content)

	created := notes.Created()
	require.Len(t, created, 1)
	assert.Equal(t, models.VerbComment, created[0].Verb)
	assert.Equal(t, "article", created[0].ActionObjectType)
	assert.Equal(t, "7", created[0].ActionObjectID)

	_, err = svc.CommentArticle(context.Background(), CommentArticleInput{User: commenter, Slug: "go-tips", Content: "  "})
	assertValidationError(t, err)
}
