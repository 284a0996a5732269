package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"zanhu/internal/models"
	"zanhu/internal/notifications"
	"zanhu/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	getByUsernameFn  func(context.Context, string) (*models.User, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, *models.User) error
	touchLastLoginFn func(context.Context, uint, time.Time) error
	listFn           func(context.Context, uint, int, int) ([]models.User, error)
	statsFn          func(context.Context, uint) (*models.UserStats, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return s.touchLastLoginFn(ctx, id, at)
}
func (s *userRepoStub) List(ctx context.Context, excludeID uint, limit, offset int) ([]models.User, error) {
	return s.listFn(ctx, excludeID, limit, offset)
}
func (s *userRepoStub) Stats(ctx context.Context, id uint) (*models.UserStats, error) {
	return s.statsFn(ctx, id)
}

// noopUserRepo resolves ids and usernames of the form "userN" to users.
func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: usernameFor(id)}, nil
		},
		getByEmailFn:     func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn:  func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:         func(_ context.Context, _ *models.User) error { return nil },
		updateFn:         func(_ context.Context, _ *models.User) error { return nil },
		touchLastLoginFn: func(_ context.Context, _ uint, _ time.Time) error { return nil },
		listFn:           func(_ context.Context, _ uint, _, _ int) ([]models.User, error) { return nil, nil },
		statsFn:          func(_ context.Context, _ uint) (*models.UserStats, error) { return &models.UserStats{}, nil },
	}
}

func usernameFor(id uint) string {
	return fmt.Sprintf("user%d", id)
}

// articleRepoStub is a stub for repository.ArticleRepository.
type articleRepoStub struct {
	listPublishedFn func(context.Context, int, int) (*repository.ArticlePage, error)
	listDraftsFn    func(context.Context, uint) ([]models.Article, error)
	popularTagsFn   func(context.Context) ([]models.TagCount, error)
	createFn        func(context.Context, *models.Article, []string) error
	getBySlugFn     func(context.Context, string) (*models.Article, error)
	getByIDFn       func(context.Context, uint) (*models.Article, error)
	updateFn        func(context.Context, *models.Article, []string, string) error
	listCommentsFn  func(context.Context, uint) ([]models.ArticleComment, error)
	createCommentFn func(context.Context, *models.ArticleComment) error
}

func (s *articleRepoStub) ListPublished(ctx context.Context, limit, offset int) (*repository.ArticlePage, error) {
	return s.listPublishedFn(ctx, limit, offset)
}
func (s *articleRepoStub) ListDrafts(ctx context.Context, userID uint) ([]models.Article, error) {
	return s.listDraftsFn(ctx, userID)
}
func (s *articleRepoStub) PopularTags(ctx context.Context) ([]models.TagCount, error) {
	return s.popularTagsFn(ctx)
}
func (s *articleRepoStub) Create(ctx context.Context, a *models.Article, tags []string) error {
	return s.createFn(ctx, a, tags)
}
func (s *articleRepoStub) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	return s.getBySlugFn(ctx, slug)
}
func (s *articleRepoStub) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	return s.getByIDFn(ctx, id)
}
func (s *articleRepoStub) Update(ctx context.Context, a *models.Article, tags []string, previousSlug string) error {
	return s.updateFn(ctx, a, tags, previousSlug)
}
func (s *articleRepoStub) ListComments(ctx context.Context, articleID uint) ([]models.ArticleComment, error) {
	return s.listCommentsFn(ctx, articleID)
}
func (s *articleRepoStub) CreateComment(ctx context.Context, c *models.ArticleComment) error {
	return s.createCommentFn(ctx, c)
}

func noopArticleRepo() *articleRepoStub {
	return &articleRepoStub{
		listPublishedFn: func(_ context.Context, _, _ int) (*repository.ArticlePage, error) {
			return &repository.ArticlePage{}, nil
		},
		listDraftsFn:    func(_ context.Context, _ uint) ([]models.Article, error) { return nil, nil },
		popularTagsFn:   func(_ context.Context) ([]models.TagCount, error) { return nil, nil },
		createFn:        func(_ context.Context, _ *models.Article, _ []string) error { return nil },
		getBySlugFn:     func(_ context.Context, _ string) (*models.Article, error) { return &models.Article{}, nil },
		getByIDFn:       func(_ context.Context, _ uint) (*models.Article, error) { return &models.Article{}, nil },
		updateFn:        func(_ context.Context, _ *models.Article, _ []string, _ string) error { return nil },
		listCommentsFn:  func(_ context.Context, _ uint) ([]models.ArticleComment, error) { return nil, nil },
		createCommentFn: func(_ context.Context, _ *models.ArticleComment) error { return nil },
	}
}

// newsRepoStub is a stub for repository.NewsRepository.
type newsRepoStub struct {
	listRootsFn    func(context.Context, uint, int, int) ([]models.News, error)
	getByIDFn      func(context.Context, uuid.UUID, uint) (*models.News, error)
	createFn       func(context.Context, *models.News) error
	deleteFn       func(context.Context, uuid.UUID) error
	toggleLikeFn   func(context.Context, uuid.UUID, uint) (bool, error)
	countLikesFn   func(context.Context, uuid.UUID) (int64, error)
	countRepliesFn func(context.Context, uuid.UUID) (int64, error)
	threadFn       func(context.Context, uuid.UUID) ([]models.News, error)
}

func (s *newsRepoStub) ListRoots(ctx context.Context, viewerID uint, limit, offset int) ([]models.News, error) {
	return s.listRootsFn(ctx, viewerID, limit, offset)
}
func (s *newsRepoStub) GetByID(ctx context.Context, id uuid.UUID, viewerID uint) (*models.News, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *newsRepoStub) Create(ctx context.Context, n *models.News) error {
	return s.createFn(ctx, n)
}
func (s *newsRepoStub) Delete(ctx context.Context, id uuid.UUID) error {
	return s.deleteFn(ctx, id)
}
func (s *newsRepoStub) ToggleLike(ctx context.Context, newsID uuid.UUID, userID uint) (bool, error) {
	return s.toggleLikeFn(ctx, newsID, userID)
}
func (s *newsRepoStub) CountLikes(ctx context.Context, newsID uuid.UUID) (int64, error) {
	return s.countLikesFn(ctx, newsID)
}
func (s *newsRepoStub) CountReplies(ctx context.Context, rootID uuid.UUID) (int64, error) {
	return s.countRepliesFn(ctx, rootID)
}
func (s *newsRepoStub) Thread(ctx context.Context, rootID uuid.UUID) ([]models.News, error) {
	return s.threadFn(ctx, rootID)
}

func noopNewsRepo() *newsRepoStub {
	return &newsRepoStub{
		listRootsFn:    func(_ context.Context, _ uint, _, _ int) ([]models.News, error) { return nil, nil },
		getByIDFn:      func(_ context.Context, id uuid.UUID, _ uint) (*models.News, error) { return &models.News{ID: id}, nil },
		createFn:       func(_ context.Context, _ *models.News) error { return nil },
		deleteFn:       func(_ context.Context, _ uuid.UUID) error { return nil },
		toggleLikeFn:   func(_ context.Context, _ uuid.UUID, _ uint) (bool, error) { return true, nil },
		countLikesFn:   func(_ context.Context, _ uuid.UUID) (int64, error) { return 0, nil },
		countRepliesFn: func(_ context.Context, _ uuid.UUID) (int64, error) { return 0, nil },
		threadFn:       func(_ context.Context, _ uuid.UUID) ([]models.News, error) { return nil, nil },
	}
}

// messageRepoStub is a stub for repository.MessageRepository.
type messageRepoStub struct {
	createFn                    func(context.Context, *models.Message) error
	getByIDFn                   func(context.Context, uuid.UUID) (*models.Message, error)
	getConversationFn           func(context.Context, uint, uint) ([]models.Message, error)
	getMostRecentConversationFn func(context.Context, uint) (uint, error)
	markReadFn                  func(context.Context, uuid.UUID) error
	markConversationReadFn      func(context.Context, uint, uint) error
	countUnreadFn               func(context.Context, uint) (int64, error)
}

func (s *messageRepoStub) Create(ctx context.Context, m *models.Message) error {
	return s.createFn(ctx, m)
}
func (s *messageRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	return s.getByIDFn(ctx, id)
}
func (s *messageRepoStub) GetConversation(ctx context.Context, a, b uint) ([]models.Message, error) {
	return s.getConversationFn(ctx, a, b)
}
func (s *messageRepoStub) GetMostRecentConversation(ctx context.Context, userID uint) (uint, error) {
	return s.getMostRecentConversationFn(ctx, userID)
}
func (s *messageRepoStub) MarkRead(ctx context.Context, id uuid.UUID) error {
	return s.markReadFn(ctx, id)
}
func (s *messageRepoStub) MarkConversationRead(ctx context.Context, recipientID, senderID uint) error {
	return s.markConversationReadFn(ctx, recipientID, senderID)
}
func (s *messageRepoStub) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	return s.countUnreadFn(ctx, recipientID)
}

func noopMessageRepo() *messageRepoStub {
	return &messageRepoStub{
		createFn:                    func(_ context.Context, _ *models.Message) error { return nil },
		getByIDFn:                   func(_ context.Context, id uuid.UUID) (*models.Message, error) { return &models.Message{ID: id}, nil },
		getConversationFn:           func(_ context.Context, _, _ uint) ([]models.Message, error) { return nil, nil },
		getMostRecentConversationFn: func(_ context.Context, userID uint) (uint, error) { return userID, nil },
		markReadFn:                  func(_ context.Context, _ uuid.UUID) error { return nil },
		markConversationReadFn:      func(_ context.Context, _, _ uint) error { return nil },
		countUnreadFn:               func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// notificationRepoStub is a stub for repository.NotificationRepository.
type notificationRepoStub struct {
	mu      sync.Mutex
	created []*models.Notification

	unreadFn        func(context.Context, uint) ([]models.Notification, error)
	getBySlugFn     func(context.Context, uint, string) (*models.Notification, error)
	setUnreadFn     func(context.Context, *models.Notification, bool) error
	markAllReadFn   func(context.Context, uint) (int64, error)
	markAllUnreadFn func(context.Context, uint) (int64, error)
}

func (s *notificationRepoStub) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	s.created = append(s.created, n)
	return nil
}
func (s *notificationRepoStub) Unread(ctx context.Context, recipientID uint) ([]models.Notification, error) {
	return s.unreadFn(ctx, recipientID)
}
func (s *notificationRepoStub) Read(_ context.Context, _ uint) ([]models.Notification, error) {
	return nil, nil
}
func (s *notificationRepoStub) MostRecent(ctx context.Context, recipientID uint) ([]models.Notification, error) {
	return s.unreadFn(ctx, recipientID)
}
func (s *notificationRepoStub) CountUnread(_ context.Context, _ uint) (int64, error) {
	return int64(len(s.Created())), nil
}
func (s *notificationRepoStub) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	return s.markAllReadFn(ctx, recipientID)
}
func (s *notificationRepoStub) MarkAllUnread(ctx context.Context, recipientID uint) (int64, error) {
	return s.markAllUnreadFn(ctx, recipientID)
}
func (s *notificationRepoStub) GetBySlug(ctx context.Context, recipientID uint, slug string) (*models.Notification, error) {
	return s.getBySlugFn(ctx, recipientID, slug)
}
func (s *notificationRepoStub) SetUnread(ctx context.Context, n *models.Notification, unread bool) error {
	return s.setUnreadFn(ctx, n, unread)
}

// Created returns the notifications recorded so far.
func (s *notificationRepoStub) Created() []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Notification(nil), s.created...)
}

func noopNotificationRepo() *notificationRepoStub {
	return &notificationRepoStub{
		unreadFn: func(_ context.Context, _ uint) ([]models.Notification, error) { return nil, nil },
		getBySlugFn: func(_ context.Context, _ uint, slug string) (*models.Notification, error) {
			return nil, models.NewNotFoundError("Notification", slug)
		},
		setUnreadFn: func(_ context.Context, n *models.Notification, unread bool) error {
			n.Unread = unread
			return nil
		},
		markAllReadFn:   func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		markAllUnreadFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// qaRepoStub is a stub for repository.QARepository.
type qaRepoStub struct {
	listQuestionsFn  func(context.Context, repository.QuestionFilter, int, int) (*repository.QuestionPage, error)
	popularTagsFn    func(context.Context) ([]models.TagCount, error)
	createQuestionFn func(context.Context, *models.Question, []string) error
	getQuestionFn    func(context.Context, uint) (*models.Question, error)
	listAnswersFn    func(context.Context, uint) ([]models.Answer, error)
	createAnswerFn   func(context.Context, *models.Answer) error
	getAnswerFn      func(context.Context, uuid.UUID) (*models.Answer, error)
	voteFn           func(context.Context, uint, models.VoteTarget, string, bool) error
	tallyFn          func(context.Context, models.VoteTarget, string) (*models.VoteTally, error)
	totalVotesFn     func(context.Context, models.VoteTarget, string) (int64, error)
	acceptAnswerFn   func(context.Context, *models.Answer) error
}

func (s *qaRepoStub) ListQuestions(ctx context.Context, f repository.QuestionFilter, limit, offset int) (*repository.QuestionPage, error) {
	return s.listQuestionsFn(ctx, f, limit, offset)
}
func (s *qaRepoStub) PopularTags(ctx context.Context) ([]models.TagCount, error) {
	return s.popularTagsFn(ctx)
}
func (s *qaRepoStub) CreateQuestion(ctx context.Context, q *models.Question, tags []string) error {
	return s.createQuestionFn(ctx, q, tags)
}
func (s *qaRepoStub) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	return s.getQuestionFn(ctx, id)
}
func (s *qaRepoStub) ListAnswers(ctx context.Context, questionID uint) ([]models.Answer, error) {
	return s.listAnswersFn(ctx, questionID)
}
func (s *qaRepoStub) CreateAnswer(ctx context.Context, a *models.Answer) error {
	return s.createAnswerFn(ctx, a)
}
func (s *qaRepoStub) GetAnswer(ctx context.Context, id uuid.UUID) (*models.Answer, error) {
	return s.getAnswerFn(ctx, id)
}
func (s *qaRepoStub) Vote(ctx context.Context, userID uint, target models.VoteTarget, objectID string, up bool) error {
	return s.voteFn(ctx, userID, target, objectID, up)
}
func (s *qaRepoStub) Tally(ctx context.Context, target models.VoteTarget, objectID string) (*models.VoteTally, error) {
	return s.tallyFn(ctx, target, objectID)
}
func (s *qaRepoStub) TotalVotes(ctx context.Context, target models.VoteTarget, objectID string) (int64, error) {
	return s.totalVotesFn(ctx, target, objectID)
}
func (s *qaRepoStub) AcceptAnswer(ctx context.Context, a *models.Answer) error {
	return s.acceptAnswerFn(ctx, a)
}

func noopQARepo() *qaRepoStub {
	return &qaRepoStub{
		listQuestionsFn: func(_ context.Context, _ repository.QuestionFilter, _, _ int) (*repository.QuestionPage, error) {
			return &repository.QuestionPage{}, nil
		},
		popularTagsFn:    func(_ context.Context) ([]models.TagCount, error) { return nil, nil },
		createQuestionFn: func(_ context.Context, _ *models.Question, _ []string) error { return nil },
		getQuestionFn:    func(_ context.Context, id uint) (*models.Question, error) { return &models.Question{ID: id}, nil },
		listAnswersFn:    func(_ context.Context, _ uint) ([]models.Answer, error) { return nil, nil },
		createAnswerFn:   func(_ context.Context, _ *models.Answer) error { return nil },
		getAnswerFn:      func(_ context.Context, id uuid.UUID) (*models.Answer, error) { return &models.Answer{ID: id}, nil },
		voteFn:           func(_ context.Context, _ uint, _ models.VoteTarget, _ string, _ bool) error { return nil },
		tallyFn: func(_ context.Context, _ models.VoteTarget, _ string) (*models.VoteTally, error) {
			return &models.VoteTally{Upvoters: []models.User{}, Downvoters: []models.User{}}, nil
		},
		totalVotesFn:   func(_ context.Context, _ models.VoteTarget, _ string) (int64, error) { return 0, nil },
		acceptAnswerFn: func(_ context.Context, _ *models.Answer) error { return nil },
	}
}

// publishedEvent is one call seen by publisherStub.
type publishedEvent struct {
	UserID uint
	Group  bool
	Event  notifications.Event
}

// publisherStub records events instead of sending them.
type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *publisherStub) PublishUser(_ context.Context, userID uint, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, Event: ev})
	return p.err
}

func (p *publisherStub) PublishGroup(_ context.Context, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Group: true, Event: ev})
	return p.err
}

func (p *publisherStub) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

// rendererStub wraps the source so tests can see that rendering happened.
type rendererStub struct{}

func (rendererStub) Render(_ context.Context, src string) string {
	return "<p>" + src + "</p>"
}

func newTestNotifier() (*NotificationService, *notificationRepoStub, *publisherStub) {
	repo := noopNotificationRepo()
	pub := &publisherStub{}
	return NewNotificationService(repo, noopUserRepo(), pub), repo, pub
}

func uintPtr(v uint) *uint { return &v }

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, "VALIDATION_ERROR")
}

// assertForbiddenError asserts that err is an AppError with code FORBIDDEN.
func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, "FORBIDDEN")
}
