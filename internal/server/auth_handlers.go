package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"zanhu/internal/middleware"
	"zanhu/internal/models"
	"zanhu/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL    = 7 * 24 * time.Hour
	wsTicketTTL = 30 * time.Second
)

func wsTicketKey(ticket string) string { return "ws_ticket:" + ticket }

func revokedTokenKey(jti string) string { return "blacklist:" + jti }

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string} true "Signup request"
// @Success 201 {object} object{token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username, email, and password are required"))
	}
	if err := validation.ValidateUsername(req.Username); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	if err := validation.ValidatePassword(req.Password, req.Username); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	ctx := c.UserContext()
	byEmail, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return respondAppError(c, err)
	}
	byName, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return respondAppError(c, err)
	}
	if byEmail != nil || byName != nil {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewConflictError("User already exists"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondAppError(c, models.NewInternalError(err))
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return respondAppError(c, err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return respondAppError(c, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with username or email and return a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string} true "Login credentials"
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	ctx := c.UserContext()
	var (
		user *models.User
		err  error
	)
	switch {
	case req.Email != "":
		user, err = s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	case req.Username != "":
		user, err = s.userRepo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username or email is required"))
	}
	if err != nil {
		return respondAppError(c, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); cmpErr != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	now := time.Now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return respondAppError(c, err)
	}
	user.LastLogin = &now

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return respondAppError(c, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Logout handles POST /api/auth/logout
// @Summary Revoke the current token
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, _ := c.Locals("claims").(*middleware.AccessClaims)
	if claims == nil || claims.JTI == "" || s.redis == nil {
		return c.JSON(fiber.Map{"message": "Logged out"})
	}

	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if claims.ExpiresAt == 0 || ttl > tokenTTL {
		ttl = tokenTTL
	}
	if ttl > 0 {
		if err := s.redis.Set(c.UserContext(), revokedTokenKey(claims.JTI), "1", ttl).Err(); err != nil {
			return respondAppError(c, models.NewInternalError(err))
		}
	}

	return c.JSON(fiber.Map{"message": "Logged out"})
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a single-use WebSocket ticket
// @Tags realtime
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("redis unavailable")))
	}

	ticket := uuid.NewString()
	userID := strconv.FormatUint(uint64(currentUserID(c)), 10)
	if err := s.redis.Set(c.UserContext(), wsTicketKey(ticket), userID, wsTicketTTL).Err(); err != nil {
		return respondAppError(c, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// generateToken creates a JWT token for the given user ID and username
func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      middleware.TokenIssuer,
		"aud":      middleware.TokenAudience,
		"exp":      now.Add(tokenTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      s.generateJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI creates a unique JWT ID so individual tokens can be revoked
func (s *Server) generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
