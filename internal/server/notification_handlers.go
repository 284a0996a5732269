package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications
// @Summary Unread notifications (or read ones with ?read=true)
// @Tags notifications
// @Security BearerAuth
// @Param read query bool false "List read notifications instead"
// @Success 200 {array} models.Notification
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	list := s.notificationService.Unread
	if c.QueryBool("read", false) {
		list = s.notificationService.Read
	}
	items, err := list(ctx, userID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(items)
}

// GetLatestNotifications handles GET /api/notifications/latest
// @Summary The five most recent unread notifications and the unread count
// @Tags notifications
// @Security BearerAuth
// @Success 200 {object} object{notifications=[]models.Notification,unread=int}
// @Router /notifications/latest [get]
func (s *Server) GetLatestNotifications(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	items, err := s.notificationService.Latest(ctx, userID)
	if err != nil {
		return respondAppError(c, err)
	}
	unread, err := s.notificationService.CountUnread(ctx, userID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"notifications": items,
		"unread":        unread,
	})
}

// MarkAllNotificationsRead handles POST /api/notifications/mark-all-read
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllRead(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}

// MarkAllNotificationsUnread handles POST /api/notifications/mark-all-unread
func (s *Server) MarkAllNotificationsUnread(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllUnread(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}

// MarkNotificationRead handles POST /api/notifications/:slug/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	return s.markNotification(c, false)
}

// MarkNotificationUnread handles POST /api/notifications/:slug/unread
func (s *Server) MarkNotificationUnread(c *fiber.Ctx) error {
	return s.markNotification(c, true)
}

func (s *Server) markNotification(c *fiber.Ctx, unread bool) error {
	n, err := s.notificationService.Mark(c.UserContext(), currentUserID(c), c.Params("slug"), unread)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(n)
}
