package server

import (
	"zanhu/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetInbox handles GET /api/messages
// @Summary Messenger landing view
// @Description Other users plus the most recent conversation, whose received messages are marked read
// @Tags messages
// @Security BearerAuth
// @Success 200 {object} service.Inbox
// @Router /messages [get]
func (s *Server) GetInbox(c *fiber.Ctx) error {
	inbox, err := s.messageService.Inbox(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(inbox)
}

// GetConversation handles GET /api/messages/:username
// @Summary Conversation with one user
// @Tags messages
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 200 {object} service.Conversation
// @Failure 404 {object} models.ErrorResponse
// @Router /messages/{username} [get]
func (s *Server) GetConversation(c *fiber.Ctx) error {
	conv, err := s.messageService.Conversation(c.UserContext(), currentUserID(c), c.Params("username"))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(conv)
}

// SendMessage handles POST /api/messages
// @Summary Send a private message
// @Tags messages
// @Security BearerAuth
// @Accept json
// @Param request body object{to=string,message=string} true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	sender, err := s.currentUser(c)
	if err != nil {
		return respondAppError(c, err)
	}

	msg, err := s.messageService.SendMessage(c.UserContext(), service.SendMessageInput{
		Sender: sender,
		To:     req.To,
		Body:   req.Message,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkMessageRead handles POST /api/messages/:id/read
func (s *Server) MarkMessageRead(c *fiber.Ctx) error {
	id, err := s.parseUUID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.messageService.MarkRead(c.UserContext(), currentUserID(c), id); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"status": "true"})
}
