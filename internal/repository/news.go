package repository

import (
	"context"
	"errors"

	"zanhu/internal/models"
	"zanhu/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewsRepository defines persistence operations for the news feed.
type NewsRepository interface {
	ListRoots(ctx context.Context, viewerID uint, limit, offset int) ([]models.News, error)
	GetByID(ctx context.Context, id uuid.UUID, viewerID uint) (*models.News, error)
	Create(ctx context.Context, news *models.News) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ToggleLike adds the like when absent and removes it otherwise. It reports
	// whether the user likes the post afterwards.
	ToggleLike(ctx context.Context, newsID uuid.UUID, userID uint) (bool, error)
	CountLikes(ctx context.Context, newsID uuid.UUID) (int64, error)
	CountReplies(ctx context.Context, rootID uuid.UUID) (int64, error)
	Thread(ctx context.Context, rootID uuid.UUID) ([]models.News, error)
}

type newsRepository struct {
	db *gorm.DB
}

// NewNewsRepository returns a new NewsRepository implementation.
func NewNewsRepository(db *gorm.DB) NewsRepository {
	return &newsRepository{db: db}
}

// applyNewsDetails adds subqueries to fetch counts and liked status in a single query.
// Replies are counted on the root, so a reply reports the size of its thread.
var newsLog = observability.NewRepoLogger("news")

func (r *newsRepository) applyNewsDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "news.*, " +
		"(SELECT COUNT(*) FROM news AS t WHERE t.parent_id = COALESCE(news.parent_id, news.id)) AS comments_count, " +
		"(SELECT COUNT(*) FROM news_likes WHERE news_likes.news_id = news.id) AS likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM news_likes WHERE news_likes.news_id = news.id AND news_likes.user_id = ?) AS liked", viewerID)
	}
	return db.Select(selectQuery + ", false AS liked")
}

func (r *newsRepository) ListRoots(ctx context.Context, viewerID uint, limit, offset int) ([]models.News, error) {
	var items []models.News
	if err := r.applyNewsDetails(readDB(r.db).WithContext(ctx), viewerID).
		Preload("User").
		Where("news.reply = ?", false).
		Order("news.created_at DESC").
		Limit(clampLimit(limit)).
		Offset(clampOffset(offset)).
		Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *newsRepository) GetByID(ctx context.Context, id uuid.UUID, viewerID uint) (*models.News, error) {
	var item models.News
	if err := r.applyNewsDetails(r.db.WithContext(ctx), viewerID).
		Preload("User").
		Where("news.id = ?", id).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("News", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &item, nil
}

func (r *newsRepository) Create(ctx context.Context, news *models.News) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(news).Error; err != nil {
		if errors.Is(err, models.ErrReplyParent) {
			return models.NewValidationError(err.Error())
		}
		newsLog.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	newsLog.LogCreate(ctx, map[string]interface{}{"news_id": news.ID, "reply": news.Reply})
	return nil
}

func (r *newsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SQLite only cascades with foreign_keys on; remove dependants explicitly.
		replies := tx.Model(&models.News{}).Select("id").Where("parent_id = ?", id)
		if err := tx.Where("news_id = ? OR news_id IN (?)", id, replies).Delete(&models.NewsLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_id = ?", id).Delete(&models.News{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.News{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("News", id)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		newsLog.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	newsLog.LogDelete(ctx, map[string]interface{}{"news_id": id})
	return nil
}

func (r *newsRepository) ToggleLike(ctx context.Context, newsID uuid.UUID, userID uint) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("news_id = ? AND user_id = ?", newsID, userID).Delete(&models.NewsLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		liked = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.NewsLike{NewsID: newsID, UserID: userID}).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return liked, nil
}

func (r *newsRepository) CountLikes(ctx context.Context, newsID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.NewsLike{}).Where("news_id = ?", newsID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *newsRepository) CountReplies(ctx context.Context, rootID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.News{}).Where("parent_id = ?", rootID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// Thread returns the replies under rootID, newest first.
func (r *newsRepository) Thread(ctx context.Context, rootID uuid.UUID) ([]models.News, error) {
	var replies []models.News
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("parent_id = ?", rootID).
		Order("created_at DESC").
		Find(&replies).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return replies, nil
}
