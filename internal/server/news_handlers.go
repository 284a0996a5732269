package server

import (
	"zanhu/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetNews handles GET /api/news
// @Summary News feed (root posts, newest first)
// @Tags news
// @Security BearerAuth
// @Param page query int false "Page number"
// @Success 200 {array} models.News
// @Router /news [get]
func (s *Server) GetNews(c *fiber.Ctx) error {
	news, err := s.newsService.ListNews(c.UserContext(), currentUserID(c), parsePage(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(news)
}

// CreateNews handles POST /api/news
// @Summary Post to the feed
// @Tags news
// @Security BearerAuth
// @Accept json
// @Param request body object{content=string} true "Post"
// @Success 201 {object} models.News
// @Failure 400 {object} models.ErrorResponse
// @Router /news [post]
func (s *Server) CreateNews(c *fiber.Ctx) error {
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

	news, err := s.newsService.CreateNews(c.UserContext(), service.CreateNewsInput{
		User:    user,
		Content: req.Content,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(news)
}

// DeleteNews handles DELETE /api/news/:id
func (s *Server) DeleteNews(c *fiber.Ctx) error {
	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.newsService.DeleteNews(c.UserContext(), service.DeleteNewsInput{
		UserID: currentUserID(c),
		NewsID: id,
	}); err != nil {
		return respondAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikeNews handles POST /api/news/:id/like
// @Summary Toggle a like
// @Tags news
// @Security BearerAuth
// @Param id path string true "News UUID"
// @Success 200 {object} object{likes=int}
// @Router /news/{id}/like [post]
func (s *Server) LikeNews(c *fiber.Ctx) error {
	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respondAppError(c, err)
	}

	likes, err := s.newsService.ToggleLike(c.UserContext(), user, id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"likes": likes})
}

// GetNewsThread handles GET /api/news/:id/thread
// @Summary A post and the replies of its thread
// @Tags news
// @Security BearerAuth
// @Param id path string true "News UUID"
// @Success 200 {object} object{uuid=string,news=models.News,thread=[]models.News}
// @Router /news/{id}/thread [get]
func (s *Server) GetNewsThread(c *fiber.Ctx) error {
	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}

	thread, err := s.newsService.GetThread(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"uuid":   id,
		"news":   thread.News,
		"thread": thread.Replies,
	})
}

// ReplyNews handles POST /api/news/:id/comments
// @Summary Reply to a post
// @Tags news
// @Security BearerAuth
// @Param id path string true "News UUID"
// @Param request body object{reply=string} true "Reply"
// @Success 200 {object} object{comments=int}
// @Failure 400 {object} models.ErrorResponse
// @Router /news/{id}/comments [post]
func (s *Server) ReplyNews(c *fiber.Ctx) error {
	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reply string `json:"reply"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	user, err := s.currentUser(c)
	if err != nil {
		return respondAppError(c, err)
	}

	count, err := s.newsService.Reply(c.UserContext(), service.ReplyNewsInput{
		User:    user,
		NewsID:  id,
		Content: req.Reply,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"comments": count})
}

// GetNewsInteractions handles POST /api/news/:id/interactions
func (s *Server) GetNewsInteractions(c *fiber.Ctx) error {
	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}

	counts, err := s.newsService.Interactions(c.UserContext(), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(counts)
}
