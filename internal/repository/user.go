package repository

import (
	"context"
	"errors"
	"time"

	"zanhu/internal/cache"
	"zanhu/internal/models"
	"zanhu/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	List(ctx context.Context, excludeID uint, limit, offset int) ([]models.User, error)
	Stats(ctx context.Context, id uint) (*models.UserStats, error)
}

// userWritableColumns are the columns Update may touch. The password hash is
// absent: cached users are decoded without it.
var userWritableColumns = []string{
	"email", "nickname", "job_title", "introduction", "picture", "location",
	"personal_url", "weibo", "zhihu", "github", "linkedin", "is_admin", "updated_at",
}

var userLog = observability.NewRepoLogger("users")

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		userLog.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	userLog.LogCreate(ctx, map[string]interface{}{"user_id": user.ID, "username": user.Username})
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).Select(userWritableColumns).Updates(user).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Email already in use")
		}
		userLog.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	userLog.LogUpdate(ctx, map[string]interface{}{"user_id": user.ID})
	return nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("last_login", at).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.UserKey(id))
	return nil
}

func (r *userRepository) List(ctx context.Context, excludeID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	q := readDB(r.db).WithContext(ctx).Order("username ASC")
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Limit(clampLimit(limit)).Offset(clampOffset(offset)).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// Stats counts the activity shown on a profile page.
func (r *userRepository) Stats(ctx context.Context, id uint) (*models.UserStats, error) {
	var stats models.UserStats
	err := cache.Aside(ctx, cache.UserStatsKey(id), &stats, cache.UserStatsTTL, func() error {
		db := readDB(r.db).WithContext(ctx)

		var replies, articleComments, likes, votes, partners int64
		counts := []struct {
			dest  *int64
			query *gorm.DB
		}{
			{&stats.MomentsNum, db.Model(&models.News{}).Where("user_id = ? AND reply = ?", id, false)},
			{&stats.ArticleNum, db.Model(&models.Article{}).Where("user_id = ? AND status = ?", id, models.ArticlePublished)},
			{&replies, db.Model(&models.News{}).Where("user_id = ? AND reply = ?", id, true)},
			{&articleComments, db.Model(&models.ArticleComment{}).Where("user_id = ?", id)},
			{&stats.QuestionNum, db.Model(&models.Question{}).Where("user_id = ?", id)},
			{&stats.AnswerNum, db.Model(&models.Answer{}).Where("user_id = ?", id)},
			{&likes, db.Model(&models.NewsLike{}).Where("user_id = ?", id)},
			{&votes, db.Model(&models.Vote{}).Where("user_id = ?", id)},
		}
		for _, c := range counts {
			if err := c.query.Count(c.dest).Error; err != nil {
				return models.NewInternalError(err)
			}
		}

		if err := db.Raw(
			"SELECT COUNT(DISTINCT CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END) FROM messages WHERE sender_id = ? OR recipient_id = ?",
			id, id, id,
		).Scan(&partners).Error; err != nil {
			return models.NewInternalError(err)
		}

		stats.CommentNum = replies + articleComments
		stats.InteractionNum = likes + votes + stats.CommentNum + partners
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
