package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags handles GET /api/admin/feature-flags
// @Summary Configured flags and their evaluation for the calling admin
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
