package dberrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func Test_Classification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: UniqueViolation, ConstraintName: "streams_name_key"})
	check := &pgconn.PgError{Code: CheckViolation, ConstraintName: "books_quantity_check"}
	fk := &pgconn.PgError{Code: ForeignKeyViolation}

	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsDuplicateConstraintError(unique, "streams_name_key"))
	assert.False(t, IsDuplicateConstraintError(unique, "other"))
	assert.True(t, IsCheckViolation(check))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}
