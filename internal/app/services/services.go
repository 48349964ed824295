// Package services holds the application use cases. Each entry point checks the
// acting principal with the Authorizer, then runs against the repositories,
// inside one transaction when it writes more than one row.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	authz "github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/helpers"
)

// Services bundles every use case the API layer calls
type Services struct {
	Auth    *AuthService
	Catalog *CatalogService
	Lending *LendingService
	Student *StudentService
}

// Deps are the collaborators shared by all services
type Deps struct {
	Store      repositories.Store
	Authorizer *authz.Authorizer
	JWT        *auth.JWTService
	Clock      helpers.Clock
	Logger     zerolog.Logger
}

// NewServices wires every service from deps
func NewServices(deps Deps) *Services {
	if deps.Clock == nil {
		deps.Clock = helpers.SystemClock
	}
	if deps.Authorizer == nil {
		deps.Authorizer = authz.NewAuthorizer()
	}
	return &Services{
		Auth:    NewAuthService(deps.Store, deps.JWT, deps.Logger),
		Catalog: NewCatalogService(deps.Store, deps.Authorizer, deps.Logger),
		Lending: NewLendingService(deps.Store, deps.Authorizer, deps.Clock, deps.Logger),
		Student: NewStudentService(deps.Store, deps.Authorizer, deps.Logger),
	}
}

// notFound replaces a repository miss with a message naming the entity
func notFound(err error, entity string) error {
	if err == repositories.ErrNotFound {
		return apperrors.NewResourceNotFoundError(entity + " not found")
	}
	return err
}

// wrap adds context to unexpected errors and passes application errors through
func wrap(err error, action string) error {
	var ce *apperrors.CustomError
	if errors.As(err, &ce) || apperrors.Is(err, apperrors.ErrResourceNotFound,
		apperrors.ErrConflict, apperrors.ErrPermissionDenied, apperrors.ErrValidationFailed,
		apperrors.ErrUnavailable, apperrors.ErrInvalidCredentials, apperrors.ErrAccountDisabled,
		apperrors.ErrTokenInvalid, apperrors.ErrTokenExpired, apperrors.ErrResourceAlreadyExists) {
		return err
	}
	return fmt.Errorf("error %s: %w", action, err)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
