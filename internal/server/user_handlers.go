package server

import (
	"context"
	"errors"
	"time"

	"zanhu/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUsers handles GET /api/users
// @Summary List other users
// @Tags users
// @Security BearerAuth
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.User
// @Router /users [get]
func (s *Server) GetUsers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	page := parsePagination(c, maxPaginationLimit)

	users, err := s.userService.ListUsers(ctx, currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "Request timeout",
			})
		}
		return respondAppError(c, err)
	}

	return c.JSON(users)
}

// GetUserProfile handles GET /api/users/:username
// @Summary Public profile with activity counters
// @Tags users
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 200 {object} service.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{username} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfile(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondAppError(c, err)
	}
	if s.hub != nil {
		profile.Online = s.hub.IsOnline(profile.User.ID)
	}
	return c.JSON(profile)
}

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update own profile
// @Tags users
// @Security BearerAuth
// @Accept json
// @Param request body service.UpdateProfileInput true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)

	user, err := s.userService.UpdateProfile(c.UserContext(), req)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(user)
}

// PromoteToAdmin handles POST /api/admin/users/:id/promote
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, true)
}

// DemoteFromAdmin handles POST /api/admin/users/:id/demote
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, false)
}

func (s *Server) setAdmin(c *fiber.Ctx, isAdmin bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.SetAdmin(c.UserContext(), id, isAdmin)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(user)
}
