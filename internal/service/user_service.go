package service

import (
	"context"
	"strings"

	"zanhu/internal/models"
	"zanhu/internal/repository"
	"zanhu/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepository
}

// UpdateProfileInput carries the editable profile fields. Nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID       uint    `json:"-"`
	Email        *string `json:"email"`
	Nickname     *string `json:"nickname" validate:"omitempty,max=255"`
	JobTitle     *string `json:"job_title" validate:"omitempty,max=50"`
	Introduction *string `json:"introduction" validate:"omitempty,max=5000"`
	Picture      *string `json:"picture" validate:"omitempty,max=255"`
	Location     *string `json:"location" validate:"omitempty,max=50"`
	PersonalURL  *string `json:"personal_url" validate:"omitempty,url,max=255"`
	Weibo        *string `json:"weibo" validate:"omitempty,url,max=255"`
	Zhihu        *string `json:"zhihu" validate:"omitempty,url,max=255"`
	Github       *string `json:"github" validate:"omitempty,url,max=255"`
	Linkedin     *string `json:"linkedin" validate:"omitempty,url,max=255"`
}

// Profile is a user together with the counters shown on the profile page.
type Profile struct {
	User   *models.User      `json:"user"`
	Stats  *models.UserStats `json:"stats"`
	Online bool              `json:"online"`
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// ListUsers returns everyone except excludeID, ordered by username.
func (s *UserService) ListUsers(ctx context.Context, excludeID uint, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, excludeID, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetProfile looks a user up by username and attaches their activity stats.
func (s *UserService) GetProfile(ctx context.Context, username string) (*Profile, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	stats, err := s.userRepo.Stats(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Stats: stats}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if email != user.Email {
			existing, err := s.userRepo.GetByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, models.NewConflictError("Email already in use")
			}
			user.Email = email
		}
	}

	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	assign(&user.Nickname, in.Nickname)
	assign(&user.JobTitle, in.JobTitle)
	assign(&user.Introduction, in.Introduction)
	assign(&user.Picture, in.Picture)
	assign(&user.Location, in.Location)
	assign(&user.PersonalURL, in.PersonalURL)
	assign(&user.Weibo, in.Weibo)
	assign(&user.Zhihu, in.Zhihu)
	assign(&user.Github, in.Github)
	assign(&user.Linkedin, in.Linkedin)

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// SetAdmin grants or revokes the admin flag.
func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	user.IsAdmin = isAdmin
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}
