package service

import (
	"context"
	"strings"
	"testing"

	"zanhu/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUserService_UpdateProfile_Validation(t *testing.T) {
	t.Parallel()

	svc := NewUserService(noopUserRepo())
	tests := map[string]UpdateProfileInput{
		"job title too long": {UserID: 1, JobTitle: strPtr(strings.Repeat("x", 51))},
		"bad github url":     {UserID: 1, Github: strPtr("not a url")},
		"bad email":          {UserID: 1, Email: strPtr("nope")},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.UpdateProfile(context.Background(), in)
			assertValidationError(t, err)
		})
	}
}

func TestUserService_UpdateProfile_PartialUpdate(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, Username: "alice", Email: "a@example.com", Location: "Beijing", Nickname: "Al"}, nil
	}
	var saved *models.User
	repo.updateFn = func(_ context.Context, u *models.User) error {
		saved = u
		return nil
	}
	svc := NewUserService(repo)

	user, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
		UserID:   1,
		Nickname: strPtr(""),
		Github:   strPtr("https://github.com/alice"),
	})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Beijing", user.Location, "unset fields are unchanged")
	assert.Equal(t, "https://github.com/alice", user.Github)
	assert.Equal(t, "", user.Nickname)
	assert.Equal(t, "alice", user.ProfileName())
}

func TestUserService_UpdateProfile_EmailConflict(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, Email: "a@example.com"}, nil
	}
	repo.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		return &models.User{ID: 9, Email: email}, nil
	}
	svc := NewUserService(repo)

	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Email: strPtr("B@Example.com")})
	assertAppError(t, err, models.CodeConflict)
}

func TestUserService_GetProfile(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	repo.getByUsernameFn = func(_ context.Context, username string) (*models.User, error) {
		if username == "alice" {
			return &models.User{ID: 1, Username: "alice"}, nil
		}
		return nil, nil
	}
	repo.statsFn = func(_ context.Context, _ uint) (*models.UserStats, error) {
		return &models.UserStats{MomentsNum: 3, InteractionNum: 7}, nil
	}
	svc := NewUserService(repo)

	profile, err := svc.GetProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), profile.Stats.MomentsNum)

	_, err = svc.GetProfile(context.Background(), "ghost")
	assertAppError(t, err, models.CodeNotFound)
}
