package service

import (
	"context"

	"zanhu/internal/models"
	"zanhu/internal/repository"
)

// Renderer turns Markdown into HTML. *markdown.Renderer satisfies it.
type Renderer interface {
	Render(ctx context.Context, src string) string
}

type ArticleService struct {
	articleRepo repository.ArticleRepository
	notifier    *NotificationService
	renderer    Renderer
}

type CreateArticleInput struct {
	UserID  uint
	Title   string
	Image   string
	Content string
	Status  models.ArticleStatus
	Tags    []string
}

// UpdateArticleInput replaces the article fields. Nil Tags keeps the current tags.
type UpdateArticleInput struct {
	UserID    uint
	ArticleID uint
	Title     string
	Image     string
	Content   string
	Status    models.ArticleStatus
	Tags      []string
}

type CommentArticleInput struct {
	User    *models.User
	Slug    string
	Content string
}

// ArticleList is one page of published articles plus the tag cloud.
type ArticleList struct {
	Articles    []models.Article  `json:"articles"`
	Total       int64             `json:"total"`
	Page        int               `json:"page"`
	PopularTags []models.TagCount `json:"popular_tags"`
}

func NewArticleService(
	articleRepo repository.ArticleRepository,
	notifier *NotificationService,
	renderer Renderer,
) *ArticleService {
	return &ArticleService{
		articleRepo: articleRepo,
		notifier:    notifier,
		renderer:    renderer,
	}
}

func (s *ArticleService) ListPublished(ctx context.Context, page int) (*ArticleList, error) {
	if page < 1 {
		page = 1
	}
	result, err := s.articleRepo.ListPublished(ctx, ArticlePageSize, pageOffset(page, ArticlePageSize))
	if err != nil {
		return nil, err
	}
	tags, err := s.articleRepo.PopularTags(ctx)
	if err != nil {
		return nil, err
	}
	return &ArticleList{
		Articles:    result.Articles,
		Total:       result.Total,
		Page:        page,
		PopularTags: tags,
	}, nil
}

func (s *ArticleService) ListDrafts(ctx context.Context, userID uint) ([]models.Article, error) {
	return s.articleRepo.ListDrafts(ctx, userID)
}

func validateArticle(title, content string, status models.ArticleStatus) error {
	const maxTitleLen = 255

	if title == "" {
		return models.NewValidationError("Title is required")
	}
	if len([]rune(title)) > maxTitleLen {
		return models.NewValidationError("Title too long (max 255 characters)")
	}
	if content == "" {
		return models.NewValidationError("Content is required")
	}
	if len(content) > maxContentLen {
		return models.NewValidationError("Content too long (max 50000 characters)")
	}
	if status != "" && !status.Valid() {
		return models.NewValidationError("Invalid status")
	}
	return nil
}

func (s *ArticleService) CreateArticle(ctx context.Context, in CreateArticleInput) (*models.Article, error) {
	title, content := trimmed(in.Title), trimmed(in.Content)
	if err := validateArticle(title, content, in.Status); err != nil {
		return nil, err
	}

	userID := in.UserID
	article := &models.Article{
		Title:   title,
		UserID:  &userID,
		Image:   trimmed(in.Image),
		Status:  in.Status,
		Content: content,
	}
	if err := s.articleRepo.Create(ctx, article, repository.NormalizeTags(in.Tags)); err != nil {
		return nil, err
	}
	return article, nil
}

// GetArticle returns the article with its rendered body.
func (s *ArticleService) GetArticle(ctx context.Context, slug string) (*models.Article, error) {
	article, err := s.articleRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	article.ContentHTML = s.renderer.Render(ctx, article.Content)
	return article, nil
}

// UpdateArticle lets the author edit their article and flags it as edited.
func (s *ArticleService) UpdateArticle(ctx context.Context, in UpdateArticleInput) (*models.Article, error) {
	article, err := s.articleRepo.GetByID(ctx, in.ArticleID)
	if err != nil {
		return nil, err
	}
	if !article.IsAuthor(in.UserID) {
		return nil, models.NewForbiddenError("You can only edit your own articles")
	}

	title, content := trimmed(in.Title), trimmed(in.Content)
	if err := validateArticle(title, content, in.Status); err != nil {
		return nil, err
	}

	previousSlug := article.Slug
	article.Title = title
	article.Content = content
	article.Image = trimmed(in.Image)
	if in.Status != "" {
		article.Status = in.Status
	}
	article.Edited = true

	var tags []string
	if in.Tags != nil {
		tags = repository.NormalizeTags(in.Tags)
	}
	if err := s.articleRepo.Update(ctx, article, tags, previousSlug); err != nil {
		return nil, err
	}
	article.ContentHTML = s.renderer.Render(ctx, article.Content)
	return article, nil
}

func (s *ArticleService) ListComments(ctx context.Context, slug string) ([]models.ArticleComment, error) {
	article, err := s.articleRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.articleRepo.ListComments(ctx, article.ID)
}

// CommentArticle adds a comment and tells the author about it.
func (s *ArticleService) CommentArticle(ctx context.Context, in CommentArticleInput) (*models.ArticleComment, error) {
	const maxCommentLen = 10000

	content := trimmed(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	article, err := s.articleRepo.GetBySlug(ctx, in.Slug)
	if err != nil {
		return nil, err
	}

	comment := &models.ArticleComment{
		ArticleID: article.ID,
		UserID:    in.User.ID,
		Content:   content,
	}
	if err := s.articleRepo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	comment.User = in.User

	if article.UserID != nil && s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, NotifyInput{
			Actor:       in.User,
			RecipientID: *article.UserID,
			Verb:        models.VerbComment,
			Object:      article,
		}); err != nil {
			return nil, err
		}
	}
	return comment, nil
}
