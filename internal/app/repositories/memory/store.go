// Package memory implements the repositories in process memory.
// A transaction holds the store lock from start to finish and restores a snapshot on error,
// so transactions are fully serialized.
package memory

import (
	"context"
	"sync"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/helpers"
)

type dataset struct {
	users    map[int64]models.User
	profiles map[string]models.Profile
	streams  map[int64]models.Stream
	authors  map[int64]models.Author
	books    map[int64]models.Book
	requests map[int64]models.BookRequest

	nextUser    int64
	nextStream  int64
	nextAuthor  int64
	nextBook    int64
	nextRequest int64
}

func newDataset() *dataset {
	return &dataset{
		users:    map[int64]models.User{},
		profiles: map[string]models.Profile{},
		streams:  map[int64]models.Stream{},
		authors:  map[int64]models.Author{},
		books:    map[int64]models.Book{},
		requests: map[int64]models.BookRequest{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *dataset) clone() *dataset {
	c := *d
	c.users = cloneMap(d.users)
	c.profiles = cloneMap(d.profiles)
	c.streams = cloneMap(d.streams)
	c.authors = cloneMap(d.authors)
	c.books = cloneMap(d.books)
	c.requests = cloneMap(d.requests)
	return &c
}

// Store implements repositories.Store in memory
type Store struct {
	mu    sync.Mutex
	data  *dataset
	now   helpers.Clock
	repos *repositories.Repositories
}

// NewStore creates an empty store
func NewStore() *Store {
	return NewStoreWithClock(helpers.SystemClock)
}

// NewStoreWithClock creates an empty store stamping rows with clock
func NewStoreWithClock(clock helpers.Clock) *Store {
	s := &Store{data: newDataset(), now: clock}
	s.repos = s.bind(false)
	return s
}

func (s *Store) bind(inTx bool) *repositories.Repositories {
	v := &view{store: s, inTx: inTx}
	return &repositories.Repositories{
		Users:        &userRepo{v},
		Profiles:     &profileRepo{v},
		Streams:      &streamRepo{v},
		Authors:      &authorRepo{v},
		Books:        &bookRepo{v},
		BookRequests: &requestRepo{v},
	}
}

// Repos returns repositories that lock the store per call.
// They must not be used inside WithinTransaction.
func (s *Store) Repos() *repositories.Repositories {
	return s.repos
}

// WithinTransaction runs fn under the store lock and rolls back on error or panic
func (s *Store) WithinTransaction(ctx context.Context, fn repositories.TxFn) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if r := recover(); r != nil {
			s.data = snapshot
			panic(r)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(ctx, s.bind(true))
}

// view gives repositories access to the current dataset
type view struct {
	store *Store
	inTx  bool
}

func (v *view) read(fn func(d *dataset) error) error {
	if !v.inTx {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return fn(v.store.data)
}

func (v *view) now() helpers.Clock {
	return v.store.now
}
