package postgres

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authz "github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/migrations"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/app/services"
	"github.com/yigit/libris/internal/db"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

// testDatabaseEnv names a disposable database; its tables are dropped and recreated
const testDatabaseEnv = "LIBRIS_TEST_DATABASE_URL"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `DROP TABLE IF EXISTS book_requests, books, profiles, authors, streams, users, schema_migrations CASCADE`)
	require.NoError(t, err)
	require.NoError(t, migrations.NewMigrator(pool).Up(ctx))

	return NewStore(&db.PostgresDB{Pool: pool})
}

func seedStudent(t *testing.T, s *Store, username string) *authz.Principal {
	t.Helper()
	ctx := context.Background()
	user := &models.User{Username: username, PasswordHash: "x", IsStudent: true, IsActive: true}
	require.NoError(t, s.Repos().Users.Create(ctx, user))
	require.NoError(t, s.Repos().Profiles.Create(ctx, &models.Profile{
		ID: "roll" + username, UserID: user.ID, IsApproved: true,
	}))

	p, err := authz.NewPrincipalLoader(s.Repos()).Load(ctx, user.ID)
	require.NoError(t, err)
	return p
}

func seedBook(t *testing.T, s *Store, title string, qty int) *models.Book {
	t.Helper()
	ctx := context.Background()
	author := &models.Author{Name: "Author of " + title}
	require.NoError(t, s.Repos().Authors.Create(ctx, author))
	book := &models.Book{Title: title, AuthorID: author.ID, Quantity: qty}
	require.NoError(t, s.Repos().Books.Create(ctx, book))
	return book
}

func quantityOf(t *testing.T, s *Store, id int64) int {
	t.Helper()
	b, err := s.Repos().Books.GetByID(context.Background(), id)
	require.NoError(t, err)
	return b.Quantity
}

func TestAdjustQuantity_GuardedUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	book := seedBook(t, s, "Kindred", 1)

	var wg sync.WaitGroup
	var ok int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
				return repos.Books.AdjustQuantity(ctx, book.ID, -1)
			})
			if err == nil {
				atomic.AddInt32(&ok, 1)
			} else {
				assert.ErrorIs(t, err, repositories.ErrOutOfStock)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, 0, quantityOf(t, s, book.ID))
	assert.ErrorIs(t, s.Repos().Books.AdjustQuantity(ctx, 999999, 1), repositories.ErrNotFound)
}

func TestBookRequests_UniquePendingIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	book := seedBook(t, s, "Parable of the Sower", 2)
	alice := seedStudent(t, s, "alice")

	first := &models.BookRequest{StudentID: alice.ProfileID, BookID: book.ID}
	require.NoError(t, s.Repos().BookRequests.Create(ctx, first))
	err := s.Repos().BookRequests.Create(ctx, &models.BookRequest{StudentID: alice.ProfileID, BookID: book.ID})
	assert.ErrorIs(t, err, repositories.ErrAlreadyExists)
}

func TestLending_ConcurrentCreatesAndApprovals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	svc := services.NewServices(services.Deps{Store: s, Logger: zerolog.Nop()})
	staff := &authz.Principal{UserID: 1, IsStaff: true, IsActive: true}
	book := seedBook(t, s, "Dawn", 1)

	alice := seedStudent(t, s, "alice")
	var wg sync.WaitGroup
	var created int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Lending.CreateRequests(ctx, alice, []int64{book.ID}); err == nil {
				atomic.AddInt32(&created, 1)
			} else {
				assert.Equal(t, apperrors.CodeAlreadyPending, apperrors.CodeOf(err))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created)

	// four students compete for the last copy
	var ids []int64
	for _, name := range []string{"bob", "carol", "dave"} {
		views, err := svc.Lending.CreateRequests(ctx, seedStudent(t, s, name), []int64{book.ID})
		require.NoError(t, err)
		ids = append(ids, views[0].Request.ID)
	}
	pending, err := s.Repos().BookRequests.FindPending(ctx, alice.ProfileID, []int64{book.ID})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	ids = append(ids, pending[0].ID)

	var approved int32
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := svc.Lending.ApproveRequest(ctx, staff, id); err == nil {
				atomic.AddInt32(&approved, 1)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrUnavailable)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(1), approved)
	assert.Equal(t, 0, quantityOf(t, s, book.ID))
}
