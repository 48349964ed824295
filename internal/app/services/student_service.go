package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	authz "github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/validation"
)

// StudentService manages student profiles and account approval
type StudentService struct {
	store      repositories.Store
	authorizer *authz.Authorizer
	logger     zerolog.Logger
}

// NewStudentService creates a new StudentService
func NewStudentService(store repositories.Store, authorizer *authz.Authorizer, logger zerolog.Logger) *StudentService {
	return &StudentService{store: store, authorizer: authorizer, logger: logger}
}

// ListStudents returns every profile with its account
func (s *StudentService) ListStudents(ctx context.Context, actor *authz.Principal) ([]*models.Profile, error) {
	if err := s.authorizer.Require(actor, authz.CapManageStudents); err != nil {
		return nil, err
	}
	profiles, err := s.store.Repos().Profiles.List(ctx)
	if err != nil {
		return nil, wrap(err, "listing students")
	}
	return profiles, nil
}

// GetOwnProfile returns the acting student's profile
func (s *StudentService) GetOwnProfile(ctx context.Context, actor *authz.Principal) (*models.Profile, error) {
	if actor == nil || !actor.HasProfile() {
		return nil, apperrors.NewResourceNotFoundError("Student profile not found")
	}
	profile, err := s.store.Repos().Profiles.GetByID(ctx, actor.ProfileID)
	if err != nil {
		return nil, wrap(notFound(err, "Student profile"), "getting profile")
	}
	return profile, nil
}

// UpdateOwnProfile lets a student edit their names, email and stream
func (s *StudentService) UpdateOwnProfile(ctx context.Context, actor *authz.Principal, req *dto.UpdateProfileRequest) (*models.Profile, error) {
	if actor == nil || !actor.HasProfile() {
		return nil, apperrors.NewResourceNotFoundError("Student profile not found")
	}
	return s.updateProfile(ctx, actor.ProfileID, req)
}

// UpdateStudent lets staff edit any profile
func (s *StudentService) UpdateStudent(ctx context.Context, actor *authz.Principal, profileID string, req *dto.UpdateProfileRequest) (*models.Profile, error) {
	if err := s.authorizer.Require(actor, authz.CapManageStudents); err != nil {
		return nil, err
	}
	return s.updateProfile(ctx, profileID, req)
}

// updateProfile changes account names, email and stream; roll number and approval are untouched
func (s *StudentService) updateProfile(ctx context.Context, profileID string, req *dto.UpdateProfileRequest) (*models.Profile, error) {
	if email := trimmed(req.Email); email != nil && !validation.ValidEmail(*email) {
		return nil, apperrors.NewValidationError("Invalid email format")
	}

	var updated *models.Profile
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		profile, err := repos.Profiles.GetByIDForUpdate(ctx, profileID)
		if err != nil {
			return notFound(err, "Student profile")
		}
		user, err := repos.Users.GetByID(ctx, profile.UserID)
		if err != nil {
			return notFound(err, "User")
		}

		if v := trimmed(req.FirstName); v != nil {
			user.FirstName = *v
		}
		if v := trimmed(req.LastName); v != nil {
			user.LastName = *v
		}
		if v := trimmed(req.Email); v != nil {
			user.Email = *v
		}
		if req.StreamID != nil {
			if *req.StreamID == 0 {
				profile.StreamID = nil
			} else {
				if _, err := repos.Streams.GetByID(ctx, *req.StreamID); err != nil {
					return notFound(err, "Stream")
				}
				streamID := *req.StreamID
				profile.StreamID = &streamID
			}
		}

		if err := repos.Users.Update(ctx, user); err != nil {
			return err
		}
		if err := repos.Profiles.Update(ctx, profile); err != nil {
			return err
		}
		updated, err = repos.Profiles.GetByID(ctx, profileID)
		return err
	})
	if err != nil {
		return nil, wrap(err, "updating profile")
	}
	return updated, nil
}

// setStudentState moves profile approval and account activation together
func (s *StudentService) setStudentState(ctx context.Context, actor *authz.Principal, profileID string, active bool) (*models.Profile, error) {
	if err := s.authorizer.Require(actor, authz.CapManageStudents); err != nil {
		return nil, err
	}

	var result *models.Profile
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		profile, err := repos.Profiles.GetByIDForUpdate(ctx, profileID)
		if err != nil {
			return notFound(err, "Student profile")
		}
		user, err := repos.Users.GetByID(ctx, profile.UserID)
		if err != nil {
			return notFound(err, "User")
		}

		if active && profile.IsApproved {
			return apperrors.NewAlreadyInStateError("Student already approved")
		}
		if !active && !profile.IsApproved && !user.IsActive {
			return apperrors.NewAlreadyInStateError("Student already deactivated")
		}

		profile.IsApproved = active
		user.IsActive = active
		if err := repos.Profiles.Update(ctx, profile); err != nil {
			return err
		}
		if err := repos.Users.Update(ctx, user); err != nil {
			return err
		}
		result, err = repos.Profiles.GetByID(ctx, profileID)
		return err
	})
	if err != nil {
		return nil, wrap(err, "changing student state")
	}

	s.logger.Info().Str("rollno", profileID).Bool("active", active).Int64("by", actor.UserID).Msg("Student state changed")
	return result, nil
}

// ApproveStudent approves the profile and activates its account
func (s *StudentService) ApproveStudent(ctx context.Context, actor *authz.Principal, profileID string) (*models.Profile, error) {
	return s.setStudentState(ctx, actor, strings.TrimSpace(profileID), true)
}

// DeactivateStudent revokes approval and disables the account
func (s *StudentService) DeactivateStudent(ctx context.Context, actor *authz.Principal, profileID string) (*models.Profile, error) {
	return s.setStudentState(ctx, actor, strings.TrimSpace(profileID), false)
}

// ApproveUser activates any account, typically one without a student profile
func (s *StudentService) ApproveUser(ctx context.Context, actor *authz.Principal, userID int64) (*models.User, error) {
	if err := s.authorizer.Require(actor, authz.CapManageStudents); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		var err error
		user, err = repos.Users.GetByID(ctx, userID)
		if err != nil {
			return notFound(err, "User")
		}
		if user.IsActive {
			return apperrors.NewAlreadyInStateError("User already active")
		}
		user.IsActive = true
		return repos.Users.Update(ctx, user)
	})
	if err != nil {
		return nil, wrap(err, "approving user")
	}

	s.logger.Info().Int64("userID", userID).Int64("by", actor.UserID).Msg("User activated")
	return user, nil
}

// DeleteAccount removes a student's profile, requests and account together.
// Students still holding books cannot be deleted.
func (s *StudentService) DeleteAccount(ctx context.Context, actor *authz.Principal, profileID string) error {
	if err := s.authorizer.Require(actor, authz.CapManageStudents); err != nil {
		return err
	}

	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		profile, err := repos.Profiles.GetByIDForUpdate(ctx, profileID)
		if err != nil {
			return notFound(err, "Student profile")
		}

		outstanding, err := repos.BookRequests.CountOutstanding(ctx, profile.ID)
		if err != nil {
			return err
		}
		if outstanding > 0 {
			return apperrors.ErrOutstandingLoans
		}

		if err := repos.BookRequests.DeleteByStudent(ctx, profile.ID); err != nil {
			return err
		}
		if err := repos.Profiles.Delete(ctx, profile.ID); err != nil {
			return err
		}
		return notFound(repos.Users.Delete(ctx, profile.UserID), "User")
	})
	if err != nil {
		return wrap(err, "deleting account")
	}

	s.logger.Info().Str("rollno", profileID).Int64("by", actor.UserID).Msg("Student account deleted")
	return nil
}
