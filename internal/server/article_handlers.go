package server

import (
	"zanhu/internal/models"
	"zanhu/internal/service"

	"github.com/gofiber/fiber/v2"
)

type articleRequest struct {
	Title   string               `json:"title"`
	Image   string               `json:"image"`
	Content string               `json:"content"`
	Status  models.ArticleStatus `json:"status"`
	Tags    tagList              `json:"tags"`
}

// GetArticles handles GET /api/articles
// @Summary Published articles, newest first
// @Tags articles
// @Param page query int false "Page number"
// @Success 200 {object} service.ArticleList
// @Router /articles [get]
func (s *Server) GetArticles(c *fiber.Ctx) error {
	list, err := s.articleService.ListPublished(c.UserContext(), parsePage(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(list)
}

// GetDrafts handles GET /api/articles/drafts
func (s *Server) GetDrafts(c *fiber.Ctx) error {
	drafts, err := s.articleService.ListDrafts(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(drafts)
}

// CreateArticle handles POST /api/articles
// @Summary Write an article
// @Tags articles
// @Security BearerAuth
// @Accept json
// @Param request body object{title=string,image=string,content=string,status=string,tags=string} true "Article"
// @Success 201 {object} models.Article
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /articles [post]
func (s *Server) CreateArticle(c *fiber.Ctx) error {
	var req articleRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	article, err := s.articleService.CreateArticle(c.UserContext(), service.CreateArticleInput{
		UserID:  currentUserID(c),
		Title:   req.Title,
		Image:   req.Image,
		Content: req.Content,
		Status:  req.Status,
		Tags:    req.Tags,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(article)
}

// GetArticle handles GET /api/articles/:slug
// @Summary Article with rendered HTML
// @Tags articles
// @Security BearerAuth
// @Param slug path string true "Article slug"
// @Success 200 {object} models.Article
// @Failure 404 {object} models.ErrorResponse
// @Router /articles/{slug} [get]
func (s *Server) GetArticle(c *fiber.Ctx) error {
	article, err := s.articleService.GetArticle(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(article)
}

// UpdateArticle handles PUT /api/articles/:id
// @Summary Edit own article
// @Tags articles
// @Security BearerAuth
// @Param id path int true "Article ID"
// @Success 200 {object} models.Article
// @Failure 403 {object} models.ErrorResponse
// @Router /articles/{id} [put]
func (s *Server) UpdateArticle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req articleRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	article, err := s.articleService.UpdateArticle(c.UserContext(), service.UpdateArticleInput{
		UserID:    currentUserID(c),
		ArticleID: id,
		Title:     req.Title,
		Image:     req.Image,
		Content:   req.Content,
		Status:    req.Status,
		Tags:      req.Tags,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(article)
}

// GetArticleComments handles GET /api/articles/:slug/comments
func (s *Server) GetArticleComments(c *fiber.Ctx) error {
	comments, err := s.articleService.ListComments(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(comments)
}

// CommentArticle handles POST /api/articles/:slug/comments
// @Summary Comment on an article
// @Tags articles
// @Security BearerAuth
// @Param slug path string true "Article slug"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} models.ArticleComment
// @Router /articles/{slug}/comments [post]
func (s *Server) CommentArticle(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respondAppError(c, err)
	}

	comment, err := s.articleService.CommentArticle(c.UserContext(), service.CommentArticleInput{
		User:    user,
		Slug:    c.Params("slug"),
		Content: req.Content,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}
