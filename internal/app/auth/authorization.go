// Package auth decides what an authenticated account may do.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/logger"
)

// Capability names an action guarded by the Authorizer
type Capability string

const (
	CapRequestBooks    Capability = "request_books"
	CapReturnBooks     Capability = "return_books"
	CapApproveRequests Capability = "approve_requests"
	CapViewAllRequests Capability = "view_all_requests"
	CapManageCatalog   Capability = "manage_catalog"
	CapManageStudents  Capability = "manage_students"
)

// Principal is the acting account as loaded from the identity store for one request
type Principal struct {
	UserID          int64
	Username        string
	IsStudent       bool
	IsStaff         bool
	IsSuperuser     bool
	IsActive        bool
	ProfileID       string
	ProfileApproved bool
}

// IsAdmin reports staff or superuser
func (p *Principal) IsAdmin() bool {
	return p.IsStaff || p.IsSuperuser
}

// HasProfile reports whether the account has a student profile
func (p *Principal) HasProfile() bool {
	return p.ProfileID != ""
}

// Authorizer is the single permission check used by every service entry point
type Authorizer struct{}

// NewAuthorizer creates an Authorizer
func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// Can reports whether p holds capability
func (a *Authorizer) Can(p *Principal, capability Capability) bool {
	if p == nil {
		return false
	}
	switch capability {
	case CapRequestBooks:
		return p.IsActive && p.IsStudent && p.HasProfile() && p.ProfileApproved
	case CapReturnBooks:
		return p.IsActive && p.IsStudent && p.HasProfile()
	case CapApproveRequests, CapViewAllRequests, CapManageCatalog, CapManageStudents:
		return p.IsAdmin()
	default:
		return false
	}
}

// Require returns a permission error unless p holds capability
func (a *Authorizer) Require(p *Principal, capability Capability) error {
	if a.Can(p, capability) {
		return nil
	}
	if p != nil {
		logger.Debug().Int64("userID", p.UserID).Str("capability", string(capability)).Msg("Permission denied")
	}
	return apperrors.NewForbiddenError(deniedMessage(capability))
}

func deniedMessage(capability Capability) string {
	switch capability {
	case CapRequestBooks:
		return "Only approved students can request books"
	case CapReturnBooks:
		return "Only students can return books"
	case CapApproveRequests:
		return "Only staff can approve book requests"
	default:
		return "You do not have permission to perform this action"
	}
}

// PrincipalLoader builds principals from the identity store
type PrincipalLoader struct {
	users    repositories.UserRepository
	profiles repositories.ProfileRepository
}

// NewPrincipalLoader creates a loader over the given repositories
func NewPrincipalLoader(repos *repositories.Repositories) *PrincipalLoader {
	return &PrincipalLoader{users: repos.Users, profiles: repos.Profiles}
}

// Load reads the current flags of userID; a deleted account is an invalid token
func (l *PrincipalLoader) Load(ctx context.Context, userID int64) (*Principal, error) {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrTokenInvalid
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	p := FromUser(user)
	profile, err := l.profiles.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		p.ProfileID = profile.ID
		p.ProfileApproved = profile.IsApproved
	case errors.Is(err, repositories.ErrNotFound):
	default:
		return nil, fmt.Errorf("error loading profile: %w", err)
	}
	return p, nil
}

// FromUser builds a principal without profile information
func FromUser(u *models.User) *Principal {
	return &Principal{
		UserID:      u.ID,
		Username:    u.Username,
		IsStudent:   u.IsStudent,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
	}
}
