package services

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/validation"
)

var rollPattern = regexp.MustCompile(`^roll[a-z0-9]{8}$`)

func TestNewRollNumber_Format(t *testing.T) {
	for i := 0; i < 50; i++ {
		assert.Regexp(t, rollPattern, NewRollNumber())
	}
}

func TestRegister_CreatesInactiveStudent(t *testing.T) {
	f := newFixture(t)

	res := f.register("alice")

	assert.Equal(t, validation.StrengthStrong, res.Strength)
	assert.True(t, res.User.IsStudent)
	assert.False(t, res.User.IsActive)
	assert.False(t, res.Profile.IsApproved)
	assert.Regexp(t, rollPattern, res.Profile.ID)
	assert.NotEqual(t, strongPassword, res.User.PasswordHash)

	stored, err := f.store.Repos().Profiles.GetByID(f.ctx, res.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, stored.UserID)
}

func TestRegister_Failures(t *testing.T) {
	f := newFixture(t)
	f.register("taken")

	tests := []struct {
		name     string
		req      dto.RegisterRequest
		category error
		code     string
	}{
		{
			name:     "password mismatch",
			req:      dto.RegisterRequest{Username: "bob", Password: strongPassword, Password2: "Abcdef1?"},
			category: apperrors.ErrValidationFailed,
			code:     apperrors.CodePasswordMismatch,
		},
		{
			name:     "duplicate username",
			req:      dto.RegisterRequest{Username: "taken", Password: strongPassword, Password2: strongPassword},
			category: apperrors.ErrConflict,
			code:     apperrors.CodeDuplicateUsername,
		},
		{
			name:     "weak password",
			req:      dto.RegisterRequest{Username: "carol", Password: "abc", Password2: "abc"},
			category: apperrors.ErrValidationFailed,
			code:     apperrors.CodeWeakPassword,
		},
		{
			name:     "bad username",
			req:      dto.RegisterRequest{Username: "no spaces", Password: strongPassword, Password2: strongPassword},
			category: apperrors.ErrValidationFailed,
		},
		{
			name:     "bad email",
			req:      dto.RegisterRequest{Username: "dave", Email: "not-an-email", Password: strongPassword, Password2: strongPassword},
			category: apperrors.ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.svc.Auth.Register(f.ctx, &req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.category)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
		})
	}
}

func TestRegister_MediumPasswordAccepted(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Auth.Register(f.ctx, &dto.RegisterRequest{Username: "erin", Password: "abcdefg1", Password2: "abcdefg1"})
	require.NoError(t, err)
	assert.Equal(t, validation.StrengthMedium, res.Strength)
}

func TestRegister_RetriesRollNumberCollision(t *testing.T) {
	f := newFixture(t)
	first := f.register("alice")

	candidates := []string{first.Profile.ID, first.Profile.ID, "rollfresh001"}
	f.svc.Auth.RollNumbers = func() string {
		next := candidates[0]
		candidates = candidates[1:]
		return next
	}

	res := f.register("bob")
	assert.Equal(t, "rollfresh001", res.Profile.ID)
}

func TestRegister_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t)
	first := f.register("alice")
	f.svc.Auth.RollNumbers = func() string { return first.Profile.ID }

	_, err := f.svc.Auth.Register(f.ctx, &dto.RegisterRequest{Username: "bob", Password: strongPassword, Password2: strongPassword})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	exists, err := f.store.Repos().Users.UsernameExists(f.ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists, "account creation is rolled back")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	res := f.register("alice")

	_, err := f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: "alice", Password: strongPassword})
	assert.ErrorIs(t, err, apperrors.ErrAccountDisabled)

	_, err = f.svc.Student.ApproveStudent(f.ctx, f.staff, res.Profile.ID)
	require.NoError(t, err)

	_, err = f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: "nobody", Password: strongPassword})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	out, err := f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: "alice", Password: strongPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Tokens.AccessToken)
	assert.NotEmpty(t, out.Tokens.RefreshToken)
	assert.Equal(t, res.User.ID, out.User.ID)
}

func TestRefreshToken(t *testing.T) {
	f := newFixture(t)
	alice := f.student("alice")

	out, err := f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: "alice", Password: strongPassword})
	require.NoError(t, err)

	refreshed, err := f.svc.Auth.RefreshToken(f.ctx, out.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, refreshed.User.ID)

	_, err = f.svc.Auth.RefreshToken(f.ctx, out.Tokens.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)

	_, err = f.svc.Student.DeactivateStudent(f.ctx, f.staff, alice.ProfileID)
	require.NoError(t, err)
	_, err = f.svc.Auth.RefreshToken(f.ctx, out.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrAccountDisabled)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	alice := f.student("alice")
	const newPassword = "Zyxwvu9#"

	err := f.svc.Auth.ChangePassword(f.ctx, alice, &dto.ChangePasswordRequest{
		CurrentPassword: "wrong", NewPassword: newPassword, ConfirmNewPassword: newPassword,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	err = f.svc.Auth.ChangePassword(f.ctx, alice, &dto.ChangePasswordRequest{
		CurrentPassword: strongPassword, NewPassword: newPassword, ConfirmNewPassword: "other",
	})
	assert.Equal(t, apperrors.CodePasswordMismatch, apperrors.CodeOf(err))

	err = f.svc.Auth.ChangePassword(f.ctx, alice, &dto.ChangePasswordRequest{
		CurrentPassword: strongPassword, NewPassword: "abc", ConfirmNewPassword: "abc",
	})
	assert.Equal(t, apperrors.CodeWeakPassword, apperrors.CodeOf(err))

	err = f.svc.Auth.ChangePassword(f.ctx, alice, &dto.ChangePasswordRequest{
		CurrentPassword: strongPassword, NewPassword: newPassword, ConfirmNewPassword: newPassword,
	})
	require.NoError(t, err)

	user, err := f.store.Repos().Users.GetByID(f.ctx, alice.UserID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(user.PasswordHash, newPassword))
	assert.False(t, auth.CheckPassword(user.PasswordHash, strongPassword))
}
