package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	authz "github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/metrics"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/validation"
)

const (
	rollPrefix      = "roll"
	rollSuffixLen   = 8
	rollAlphabet    = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxRollAttempts = 5
)

// NewRollNumber returns "roll" followed by 8 random lowercase alphanumerics
func NewRollNumber() string {
	id := uuid.New()
	var b strings.Builder
	b.WriteString(rollPrefix)
	for i := 0; i < rollSuffixLen; i++ {
		b.WriteByte(rollAlphabet[int(id[i])%len(rollAlphabet)])
	}
	return b.String()
}

// RegisterResult is the created account with its profile and password classification
type RegisterResult struct {
	User     *models.User
	Profile  *models.Profile
	Strength validation.Strength
}

// LoginResult is an issued token pair with the authenticated account
type LoginResult struct {
	Tokens *auth.TokenPair
	User   *models.User
}

// AuthService handles registration and authentication
type AuthService struct {
	store      repositories.Store
	jwtService *auth.JWTService
	logger     zerolog.Logger

	// RollNumbers generates candidate roll numbers; replaced in tests
	RollNumbers func() string
}

// NewAuthService creates a new AuthService
func NewAuthService(store repositories.Store, jwtService *auth.JWTService, logger zerolog.Logger) *AuthService {
	return &AuthService{
		store:       store,
		jwtService:  jwtService,
		logger:      logger,
		RollNumbers: NewRollNumber,
	}
}

// validateRegistration checks formats, then password confirmation
func (s *AuthService) validateRegistration(req *dto.RegisterRequest) error {
	if !validation.ValidUsername(req.Username) {
		return apperrors.NewValidationError("Username must be 3-150 characters of letters, digits and @/./+/-/_")
	}
	if !validation.ValidEmail(req.Email) {
		return apperrors.NewValidationError("Invalid email format")
	}
	if req.Password != req.Password2 {
		return apperrors.ErrPasswordMismatch
	}
	return nil
}

// Register creates an inactive student account and its unapproved profile
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*RegisterResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if err := s.validateRegistration(req); err != nil {
		return nil, err
	}

	exists, err := s.store.Repos().Users.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, wrap(err, "checking username")
	}
	if exists {
		return nil, apperrors.ErrDuplicateUsername
	}

	strength := validation.PasswordStrength(req.Password)
	if strength == validation.StrengthWeak {
		return nil, apperrors.NewWeakPasswordError(string(strength))
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, wrap(err, "hashing password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		IsStudent:    true,
		IsActive:     false,
	}
	profile := &models.Profile{}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrAlreadyExists) {
				return apperrors.ErrDuplicateUsername
			}
			return err
		}

		rollNo, err := s.freeRollNumber(ctx, repos.Profiles)
		if err != nil {
			return err
		}

		profile.ID = rollNo
		profile.UserID = user.ID
		return repos.Profiles.Create(ctx, profile)
	})
	if err != nil {
		return nil, wrap(err, "registering account")
	}

	profile.User = user
	metrics.AccountsRegistered.Inc()
	s.logger.Info().Int64("userID", user.ID).Str("rollno", profile.ID).Str("strength", string(strength)).Msg("Student registered")

	return &RegisterResult{User: user, Profile: profile, Strength: strength}, nil
}

// freeRollNumber draws candidates until one is unused; the primary key stays the final guard
func (s *AuthService) freeRollNumber(ctx context.Context, profiles repositories.ProfileRepository) (string, error) {
	for i := 0; i < maxRollAttempts; i++ {
		candidate := s.RollNumbers()
		taken, err := profiles.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		s.logger.Warn().Str("candidate", candidate).Msg("Roll number collision, retrying")
	}
	return "", apperrors.NewConflictError("Could not allocate a roll number, please retry")
}

// Login authenticates a user by username and password
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*LoginResult, error) {
	user, err := s.store.Repos().Users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, wrap(err, "loading user")
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	return s.issue(user)
}

// RefreshToken exchanges a refresh token for a new pair
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.jwtService.ValidateToken(strings.TrimSpace(refreshToken), auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Repos().Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrTokenInvalid
		}
		return nil, wrap(err, "loading user")
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*LoginResult, error) {
	pair, err := s.jwtService.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		return nil, wrap(err, "generating tokens")
	}
	return &LoginResult{Tokens: pair, User: user}, nil
}

// ChangePassword replaces the actor's password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, actor *authz.Principal, req *dto.ChangePasswordRequest) error {
	if actor == nil {
		return apperrors.ErrTokenInvalid
	}
	if req.CurrentPassword == "" || req.NewPassword == "" || req.ConfirmNewPassword == "" {
		return apperrors.NewValidationError("All password fields are required")
	}

	user, err := s.store.Repos().Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return wrap(notFound(err, "User"), "loading user")
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return apperrors.NewValidationError("Current password is incorrect")
	}
	if req.NewPassword != req.ConfirmNewPassword {
		return apperrors.ErrPasswordMismatch
	}
	if strength := validation.PasswordStrength(req.NewPassword); strength == validation.StrengthWeak {
		return apperrors.NewWeakPasswordError(string(strength))
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return wrap(err, "hashing password")
	}
	user.PasswordHash = hash
	if err := s.store.Repos().Users.Update(ctx, user); err != nil {
		return wrap(notFound(err, "User"), "updating password")
	}

	s.logger.Info().Int64("userID", user.ID).Msg("Password changed")
	return nil
}
