package apperrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yigit/libris/internal/pkg/apperrors"
)

func Test_SpecificErrors_UnwrapToTheirCategory(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		category error
	}{
		{name: "password mismatch", err: apperrors.ErrPasswordMismatch, category: apperrors.ErrValidationFailed},
		{name: "duplicate username", err: apperrors.ErrDuplicateUsername, category: apperrors.ErrConflict},
		{name: "already approved", err: apperrors.ErrAlreadyApproved, category: apperrors.ErrConflict},
		{name: "not approved", err: apperrors.ErrNotApproved, category: apperrors.ErrConflict},
		{name: "already returned", err: apperrors.ErrAlreadyReturned, category: apperrors.ErrConflict},
		{name: "book unavailable", err: apperrors.ErrBookUnavailable, category: apperrors.ErrUnavailable},
		{name: "already pending", err: apperrors.NewAlreadyPendingError([]string{"Dune"}), category: apperrors.ErrConflict},
		{name: "weak password", err: apperrors.NewWeakPasswordError("Weak"), category: apperrors.ErrValidationFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service layer: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.category)
			assert.ErrorIs(t, wrapped, tc.err)
		})
	}
}

func Test_NewAlreadyPendingError_ListsTitles(t *testing.T) {
	err := apperrors.NewAlreadyPendingError([]string{"Dune", "Emma"})

	var ce *apperrors.CustomError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "Already requested: Dune, Emma", ce.Message)
	assert.Equal(t, []string{"Dune", "Emma"}, ce.Details["titles"])
	assert.Equal(t, apperrors.CodeAlreadyPending, apperrors.CodeOf(err))
}

func Test_CodeOf_ReturnsEmptyForPlainErrors(t *testing.T) {
	assert.Equal(t, "", apperrors.CodeOf(errors.New("boom")))
	assert.Equal(t, apperrors.CodeBookUnavailable, apperrors.CodeOf(fmt.Errorf("x: %w", apperrors.ErrBookUnavailable)))
}
