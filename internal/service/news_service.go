package service

import (
	"context"

	"zanhu/internal/featureflags"
	"zanhu/internal/models"
	"zanhu/internal/notifications"
	"zanhu/internal/observability"
	"zanhu/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type NewsService struct {
	newsRepo  repository.NewsRepository
	notifier  *NotificationService
	publisher Publisher
	flags     *featureflags.Manager
}

type CreateNewsInput struct {
	User    *models.User
	Content string
}

type ReplyNewsInput struct {
	User    *models.User
	NewsID  uuid.UUID
	Content string
}

type DeleteNewsInput struct {
	UserID uint
	NewsID uuid.UUID
}

// Thread is a post with the replies of its thread, newest first.
type Thread struct {
	News    *models.News  `json:"news"`
	Replies []models.News `json:"thread"`
}

// Interactions are the live counters of a post.
type Interactions struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
}

func NewNewsService(
	newsRepo repository.NewsRepository,
	notifier *NotificationService,
	publisher Publisher,
	flags *featureflags.Manager,
) *NewsService {
	return &NewsService{
		newsRepo:  newsRepo,
		notifier:  notifier,
		publisher: publisher,
		flags:     flags,
	}
}

// ListNews returns one page of root posts, newest first.
func (s *NewsService) ListNews(ctx context.Context, viewerID uint, page int) ([]models.News, error) {
	return s.newsRepo.ListRoots(ctx, viewerID, NewsPageSize, pageOffset(page, NewsPageSize))
}

func (s *NewsService) GetNews(ctx context.Context, id uuid.UUID, viewerID uint) (*models.News, error) {
	return s.newsRepo.GetByID(ctx, id, viewerID)
}

func validateNewsContent(content string) error {
	if content == "" {
		return models.NewValidationError("Content is required")
	}
	if len(content) > maxContentLen {
		return models.NewValidationError("Content too long (max 50000 characters)")
	}
	return nil
}

// CreateNews publishes a root post and announces it to every connected client.
func (s *NewsService) CreateNews(ctx context.Context, in CreateNewsInput) (*models.News, error) {
	content := trimmed(in.Content)
	if err := validateNewsContent(content); err != nil {
		return nil, err
	}

	userID := in.User.ID
	news := &models.News{UserID: &userID, Content: content}
	if err := s.newsRepo.Create(ctx, news); err != nil {
		return nil, err
	}
	news.User = in.User

	if s.publisher != nil && s.flags.Enabled(featureflags.NewsBroadcast, userID) {
		ev := notifications.Event{Key: notifications.KeyAdditionalNews, ActorName: in.User.Username}
		publishQuietly(ctx, func() error { return s.publisher.PublishGroup(ctx, ev) }, ev.Key)
	}
	return news, nil
}

// DeleteNews removes a post and its thread. Only the author may delete.
func (s *NewsService) DeleteNews(ctx context.Context, in DeleteNewsInput) error {
	news, err := s.newsRepo.GetByID(ctx, in.NewsID, 0)
	if err != nil {
		return err
	}
	if !news.IsAuthor(in.UserID) {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	return s.newsRepo.Delete(ctx, in.NewsID)
}

// ToggleLike likes or unlikes a post and returns its like count. A new like
// notifies the author.
func (s *NewsService) ToggleLike(ctx context.Context, user *models.User, newsID uuid.UUID) (likes int64, err error) {
	ctx, finish := observability.StartSpan(ctx, "NewsService", "ToggleLike",
		attribute.String("news.id", newsID.String()), attribute.Int64("user.id", int64(user.ID)))
	defer func() { finish(err) }()

	news, err := s.newsRepo.GetByID(ctx, newsID, 0)
	if err != nil {
		return 0, err
	}

	liked, err := s.newsRepo.ToggleLike(ctx, newsID, user.ID)
	if err != nil {
		return 0, err
	}

	if liked && news.UserID != nil && s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, NotifyInput{
			Actor:       user,
			RecipientID: *news.UserID,
			Verb:        models.VerbLike,
			Object:      news,
			Key:         notifications.KeySocialUpdate,
			IDValue:     news.ID.String(),
		}); err != nil {
			return 0, err
		}
	}

	return s.newsRepo.CountLikes(ctx, newsID)
}

// Reply attaches a reply to the root of the post's thread and returns the
// thread's reply count.
func (s *NewsService) Reply(ctx context.Context, in ReplyNewsInput) (int64, error) {
	content := trimmed(in.Content)
	if err := validateNewsContent(content); err != nil {
		return 0, err
	}

	target, err := s.newsRepo.GetByID(ctx, in.NewsID, 0)
	if err != nil {
		return 0, err
	}
	root := target
	if target.ParentID != nil {
		if root, err = s.newsRepo.GetByID(ctx, *target.ParentID, 0); err != nil {
			return 0, err
		}
	}

	rootID := root.ID
	userID := in.User.ID
	reply := &models.News{
		UserID:   &userID,
		ParentID: &rootID,
		Content:  content,
		Reply:    true,
	}
	if err := s.newsRepo.Create(ctx, reply); err != nil {
		return 0, err
	}

	if root.UserID != nil && s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, NotifyInput{
			Actor:       in.User,
			RecipientID: *root.UserID,
			Verb:        models.VerbReply,
			Object:      root,
			Key:         notifications.KeySocialUpdate,
			IDValue:     root.ID.String(),
		}); err != nil {
			return 0, err
		}
	}

	return s.newsRepo.CountReplies(ctx, rootID)
}

// GetThread returns the post and the replies of the thread it belongs to.
func (s *NewsService) GetThread(ctx context.Context, id uuid.UUID, viewerID uint) (*Thread, error) {
	news, err := s.newsRepo.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	replies, err := s.newsRepo.Thread(ctx, news.RootID())
	if err != nil {
		return nil, err
	}
	return &Thread{News: news, Replies: replies}, nil
}

// Interactions returns the like count of the post and the reply count of its thread.
func (s *NewsService) Interactions(ctx context.Context, id uuid.UUID) (*Interactions, error) {
	news, err := s.newsRepo.GetByID(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	likes, err := s.newsRepo.CountLikes(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.newsRepo.CountReplies(ctx, news.RootID())
	if err != nil {
		return nil, err
	}
	return &Interactions{Likes: likes, Comments: comments}, nil
}
