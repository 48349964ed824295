package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/dberrors"
)

// ProfileRepository handles student profile persistence
type ProfileRepository struct {
	db DBTX
}

func (r *ProfileRepository) selectProfiles() squirrel.SelectBuilder {
	cols := append([]string{"p.id", "p.user_id", "p.stream_id", "p.is_approved", "s.name"}, userColumns...)
	return psql.Select(cols...).
		From("profiles p").
		Join("users u ON u.id = p.user_id").
		LeftJoin("streams s ON s.id = p.stream_id")
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	p := &models.Profile{User: &models.User{}}
	dest := append([]any{&p.ID, &p.UserID, &p.StreamID, &p.IsApproved, &p.StreamName}, userDest(p.User)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a profile
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	sql, args, err := psql.Insert("profiles").
		Columns("id", "user_id", "stream_id", "is_approved").
		Values(profile.ID, profile.UserID, profile.StreamID, profile.IsApproved).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create profile query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsUniqueViolation(err) {
			return repositories.ErrAlreadyExists
		}
		if dberrors.IsForeignKeyViolation(err) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("error creating profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) getOne(ctx context.Context, where squirrel.Sqlizer, lock bool) (*models.Profile, error) {
	q := r.selectProfiles().Where(where).Limit(1)
	if lock {
		q = q.Suffix("FOR UPDATE OF p")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get profile query: %w", err)
	}

	p, err := scanProfile(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if notFound(err) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("error getting profile: %w", err)
	}
	return p, nil
}

// GetByID retrieves a profile by roll number
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return r.getOne(ctx, squirrel.Eq{"p.id": id}, false)
}

// GetByIDForUpdate retrieves and locks a profile
func (r *ProfileRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Profile, error) {
	return r.getOne(ctx, squirrel.Eq{"p.id": id}, true)
}

// GetByUserID retrieves the profile of an account
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	return r.getOne(ctx, squirrel.Eq{"p.user_id": userID}, false)
}

// Exists checks whether a roll number is taken
func (r *ProfileRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking profile: %w", err)
	}
	return exists, nil
}

// List returns every profile ordered by roll number
func (r *ProfileRepository) List(ctx context.Context) ([]*models.Profile, error) {
	sql, args, err := r.selectProfiles().OrderBy("p.id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list profiles query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}
	return profiles, nil
}

// Update writes stream and approval flag
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	sql, args, err := psql.Update("profiles").
		Set("stream_id", profile.StreamID).
		Set("is_approved", profile.IsApproved).
		Where(squirrel.Eq{"id": profile.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update profile query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("error updating profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Delete removes a profile
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
