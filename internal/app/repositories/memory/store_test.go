package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
)

func seedBook(t *testing.T, s *Store, title string, qty int) *models.Book {
	t.Helper()
	ctx := context.Background()
	author := &models.Author{Name: "Ursula K. Le Guin"}
	require.NoError(t, s.Repos().Authors.Create(ctx, author))
	book := &models.Book{Title: title, AuthorID: author.ID, Quantity: qty}
	require.NoError(t, s.Repos().Books.Create(ctx, book))
	return book
}

func TestWithinTransaction_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	book := seedBook(t, s, "The Dispossessed", 2)
	boom := errors.New("boom")

	err := s.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		require.NoError(t, repos.Books.AdjustQuantity(ctx, book.ID, -1))
		require.NoError(t, repos.Streams.Create(ctx, &models.Stream{Name: "Arts"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Repos().Books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)

	streams, err := s.Repos().Streams.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func TestWithinTransaction_Commits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	book := seedBook(t, s, "The Lathe of Heaven", 1)

	err := s.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		return repos.Books.AdjustQuantity(ctx, book.ID, -1)
	})
	require.NoError(t, err)

	got, err := s.Repos().Books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestWithinTransaction_CancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestAdjustQuantity_NeverNegative(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	book := seedBook(t, s, "Always Coming Home", 1)

	var wg sync.WaitGroup
	var ok int32
	for i := 0; i < 20; i++ {
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
	got, err := s.Repos().Books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestAdjustQuantity_UnknownBook(t *testing.T) {
	s := NewStore()
	err := s.Repos().Books.AdjustQuantity(context.Background(), 42, 1)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestBooks_UniqueTuple(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	book := seedBook(t, s, "Lavinia", 1)

	dup := &models.Book{Title: "Lavinia", AuthorID: book.AuthorID, Quantity: 3}
	assert.ErrorIs(t, s.Repos().Books.Create(ctx, dup), repositories.ErrAlreadyExists)

	stream := &models.Stream{Name: "Arts"}
	require.NoError(t, s.Repos().Streams.Create(ctx, stream))
	dup.StreamID = &stream.ID
	assert.NoError(t, s.Repos().Books.Create(ctx, dup))
}

func TestBooks_ListFiltersAndHydrates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	science := &models.Stream{Name: "Science"}
	require.NoError(t, s.Repos().Streams.Create(ctx, science))

	herbert := &models.Author{Name: "Frank Herbert"}
	require.NoError(t, s.Repos().Authors.Create(ctx, herbert))
	require.NoError(t, s.Repos().Books.Create(ctx, &models.Book{Title: "Dune", AuthorID: herbert.ID, StreamID: &science.ID}))
	seedBook(t, s, "Tehanu", 1)

	all, err := s.Repos().Books.List(ctx, models.BookFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byAuthor, err := s.Repos().Books.List(ctx, models.BookFilter{Search: "HERB"})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, "Dune", byAuthor[0].Title)
	assert.Equal(t, "Frank Herbert", byAuthor[0].AuthorName)
	require.NotNil(t, byAuthor[0].StreamName)
	assert.Equal(t, "Science", *byAuthor[0].StreamName)

	byStream, err := s.Repos().Books.List(ctx, models.BookFilter{StreamID: &science.ID})
	require.NoError(t, err)
	assert.Len(t, byStream, 1)
}

func TestUsers_DeleteCascades(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	book := seedBook(t, s, "Earthsea", 1)

	user := &models.User{Username: "alice", IsStudent: true}
	require.NoError(t, s.Repos().Users.Create(ctx, user))
	require.NoError(t, s.Repos().Profiles.Create(ctx, &models.Profile{ID: "rollabcd1234", UserID: user.ID}))
	require.NoError(t, s.Repos().BookRequests.Create(ctx, &models.BookRequest{StudentID: "rollabcd1234", BookID: book.ID}))

	require.NoError(t, s.Repos().Users.Delete(ctx, user.ID))

	_, err := s.Repos().Profiles.GetByID(ctx, "rollabcd1234")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	reqs, err := s.Repos().BookRequests.List(ctx, models.BookRequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestBookRequests_FindPendingAndOutstanding(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	b1 := seedBook(t, s, "A Wizard of Earthsea", 1)
	b2 := seedBook(t, s, "The Tombs of Atuan", 1)

	user := &models.User{Username: "bob"}
	require.NoError(t, s.Repos().Users.Create(ctx, user))
	require.NoError(t, s.Repos().Profiles.Create(ctx, &models.Profile{ID: "rollbob00001", UserID: user.ID}))

	pending := &models.BookRequest{StudentID: "rollbob00001", BookID: b1.ID}
	approved := &models.BookRequest{StudentID: "rollbob00001", BookID: b2.ID, IsApproved: true}
	require.NoError(t, s.Repos().BookRequests.Create(ctx, pending))
	require.NoError(t, s.Repos().BookRequests.Create(ctx, approved))

	found, err := s.Repos().BookRequests.FindPending(ctx, "rollbob00001", []int64{b1.ID, b2.ID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b1.ID, found[0].BookID)
	assert.Equal(t, "A Wizard of Earthsea", found[0].BookTitle)

	n, err := s.Repos().BookRequests.CountOutstanding(ctx, "rollbob00001")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBookRequests_OnePendingPerStudentAndBook(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	book := seedBook(t, s, "The Word for World Is Forest", 2)

	user := &models.User{Username: "carol"}
	require.NoError(t, s.Repos().Users.Create(ctx, user))
	require.NoError(t, s.Repos().Profiles.Create(ctx, &models.Profile{ID: "rollcarol001", UserID: user.ID}))

	first := &models.BookRequest{StudentID: "rollcarol001", BookID: book.ID}
	require.NoError(t, s.Repos().BookRequests.Create(ctx, first))

	err := s.Repos().BookRequests.Create(ctx, &models.BookRequest{StudentID: "rollcarol001", BookID: book.ID})
	assert.ErrorIs(t, err, repositories.ErrAlreadyExists)

	first.IsApproved = true
	require.NoError(t, s.Repos().BookRequests.Update(ctx, first))
	assert.NoError(t, s.Repos().BookRequests.Create(ctx, &models.BookRequest{StudentID: "rollcarol001", BookID: book.ID}))
}
