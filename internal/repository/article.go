package repository

import (
	"context"
	"errors"
	"strconv"

	"zanhu/internal/cache"
	"zanhu/internal/models"
	"zanhu/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticlePage is one page of the published article list.
type ArticlePage struct {
	Articles []models.Article `json:"articles"`
	Total    int64            `json:"total"`
}

// ArticleRepository defines persistence operations for articles and their comments.
type ArticleRepository interface {
	ListPublished(ctx context.Context, limit, offset int) (*ArticlePage, error)
	ListDrafts(ctx context.Context, userID uint) ([]models.Article, error)
	PopularTags(ctx context.Context) ([]models.TagCount, error)
	Create(ctx context.Context, article *models.Article, tags []string) error
	GetBySlug(ctx context.Context, slug string) (*models.Article, error)
	GetByID(ctx context.Context, id uint) (*models.Article, error)
	Update(ctx context.Context, article *models.Article, tags []string, previousSlug string) error
	ListComments(ctx context.Context, articleID uint) ([]models.ArticleComment, error)
	CreateComment(ctx context.Context, comment *models.ArticleComment) error
}

type articleRepository struct {
	db *gorm.DB
}

// NewArticleRepository returns a new ArticleRepository implementation.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

var (
	articleLog = observability.NewRepoLogger("articles")
	commentLog = observability.NewRepoLogger("article_comments")
)

func (r *articleRepository) withCounts(db *gorm.DB) *gorm.DB {
	return db.Select("articles.*, " +
		"(SELECT COUNT(*) FROM article_comments WHERE article_comments.article_id = articles.id) AS comments_count")
}

func (r *articleRepository) ListPublished(ctx context.Context, limit, offset int) (*ArticlePage, error) {
	limit, offset = clampLimit(limit), clampOffset(offset)
	var page ArticlePage
	key := cache.ListKey(ctx, cache.NamespaceArticles, "published", strconv.Itoa(limit), strconv.Itoa(offset))

	err := cache.Aside(ctx, key, &page, cache.ListTTL, func() error {
		db := readDB(r.db).WithContext(ctx)
		if err := db.Model(&models.Article{}).Where("status = ?", models.ArticlePublished).Count(&page.Total).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := r.withCounts(db).
			Preload("User").
			Preload("Tags").
			Where("status = ?", models.ArticlePublished).
			Order("articles.created_at DESC").
			Limit(limit).
			Offset(offset).
			Find(&page.Articles).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *articleRepository) ListDrafts(ctx context.Context, userID uint) ([]models.Article, error) {
	var articles []models.Article
	if err := r.withCounts(readDB(r.db).WithContext(ctx)).
		Preload("Tags").
		Where("user_id = ? AND status = ?", userID, models.ArticleDraft).
		Order("articles.created_at DESC").
		Find(&articles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return articles, nil
}

// PopularTags counts tags across published articles only.
func (r *articleRepository) PopularTags(ctx context.Context) ([]models.TagCount, error) {
	var tags []models.TagCount
	key := cache.ListKey(ctx, cache.NamespacePopularTags, "articles")
	err := cache.Aside(ctx, key, &tags, cache.ListTTL, func() error {
		var err error
		tags, err = countTags(readDB(r.db).WithContext(ctx), "article_tags", "articles", "article_id",
			"o.status = ?", models.ArticlePublished)
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *articleRepository) Create(ctx context.Context, article *models.Article, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved, err := resolveTags(tx, tags)
		if err != nil {
			return err
		}
		article.Tags = resolved
		return tx.Omit("User").Create(article).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("An article with this title already exists")
		}
		articleLog.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	cache.InvalidateArticle(ctx, article.Slug)
	articleLog.LogCreate(ctx, map[string]interface{}{"article_id": article.ID, "slug": article.Slug})
	return nil
}

func (r *articleRepository) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	var article models.Article
	err := cache.Aside(ctx, cache.ArticleKey(slug), &article, cache.ArticleTTL, func() error {
		if err := r.withCounts(readDB(r.db).WithContext(ctx)).
			Preload("User").
			Preload("Tags").
			Where("slug = ?", slug).
			First(&article).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Article", slug)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *articleRepository) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	if err := r.withCounts(r.db.WithContext(ctx)).
		Preload("User").
		Preload("Tags").
		First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Article", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &article, nil
}

// Update saves the article, replaces its tags when tags is non-nil and drops cached copies
// under both the old and the new slug.
func (r *articleRepository) Update(ctx context.Context, article *models.Article, tags []string, previousSlug string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(article).Error; err != nil {
			return err
		}
		if tags == nil {
			return nil
		}
		resolved, err := resolveTags(tx, tags)
		if err != nil {
			return err
		}
		if err := tx.Model(article).Association("Tags").Replace(resolved); err != nil {
			return err
		}
		article.Tags = resolved
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("An article with this title already exists")
		}
		articleLog.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	cache.InvalidateArticle(ctx, previousSlug, article.Slug)
	articleLog.LogUpdate(ctx, map[string]interface{}{"article_id": article.ID, "slug": article.Slug})
	return nil
}

func (r *articleRepository) ListComments(ctx context.Context, articleID uint) ([]models.ArticleComment, error) {
	var comments []models.ArticleComment
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("article_id = ?", articleID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *articleRepository) CreateComment(ctx context.Context, comment *models.ArticleComment) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(comment).Error; err != nil {
		commentLog.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	commentLog.LogCreate(ctx, map[string]interface{}{"comment_id": comment.ID, "article_id": comment.ArticleID})

	// The cached detail carries comments_count.
	var slugs []string
	if err := db.Model(&models.Article{}).Where("id = ?", comment.ArticleID).Pluck("slug", &slugs).Error; err == nil {
		cache.InvalidateArticle(ctx, slugs...)
	}
	return nil
}
