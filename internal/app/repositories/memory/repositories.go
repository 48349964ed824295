package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
)

func sameRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (d *dataset) streamName(id *int64) *string {
	if id == nil {
		return nil
	}
	s, ok := d.streams[*id]
	if !ok {
		return nil
	}
	name := s.Name
	return &name
}

func (d *dataset) refExists(streamID *int64) bool {
	if streamID == nil {
		return true
	}
	_, ok := d.streams[*streamID]
	return ok
}

// deleteRequests removes every request for which match is true
func (d *dataset) deleteRequests(match func(models.BookRequest) bool) {
	for id, r := range d.requests {
		if match(r) {
			delete(d.requests, id)
		}
	}
}

type userRepo struct{ v *view }

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	return r.v.read(func(d *dataset) error {
		for _, u := range d.users {
			if u.Username == user.Username {
				return repositories.ErrAlreadyExists
			}
		}
		d.nextUser++
		now := r.v.now()()
		user.ID = d.nextUser
		user.CreatedAt = now
		user.UpdatedAt = now
		d.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var out *models.User
	err := r.v.read(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var out *models.User
	err := r.v.read(func(d *dataset) error {
		for _, u := range d.users {
			if u.Username == username {
				u := u
				out = &u
				return nil
			}
		}
		return repositories.ErrNotFound
	})
	return out, err
}

func (r *userRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	if err == repositories.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	return r.v.read(func(d *dataset) error {
		old, ok := d.users[user.ID]
		if !ok {
			return repositories.ErrNotFound
		}
		user.Username = old.Username
		user.CreatedAt = old.CreatedAt
		user.UpdatedAt = r.v.now()()
		d.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	return r.v.read(func(d *dataset) error {
		if _, ok := d.users[id]; !ok {
			return repositories.ErrNotFound
		}
		delete(d.users, id)
		for pid, p := range d.profiles {
			if p.UserID == id {
				delete(d.profiles, pid)
				d.deleteRequests(func(br models.BookRequest) bool { return br.StudentID == pid })
			}
		}
		return nil
	})
}

type profileRepo struct{ v *view }

func (d *dataset) hydrateProfile(p models.Profile) *models.Profile {
	if u, ok := d.users[p.UserID]; ok {
		p.User = &u
	}
	p.StreamName = d.streamName(p.StreamID)
	return &p
}

func (r *profileRepo) Create(ctx context.Context, profile *models.Profile) error {
	return r.v.read(func(d *dataset) error {
		if _, ok := d.profiles[profile.ID]; ok {
			return repositories.ErrAlreadyExists
		}
		if _, ok := d.users[profile.UserID]; !ok {
			return repositories.ErrNotFound
		}
		if !d.refExists(profile.StreamID) {
			return repositories.ErrNotFound
		}
		for _, p := range d.profiles {
			if p.UserID == profile.UserID {
				return repositories.ErrAlreadyExists
			}
		}
		stored := *profile
		stored.User = nil
		stored.StreamName = nil
		d.profiles[profile.ID] = stored
		return nil
	})
}

func (r *profileRepo) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var out *models.Profile
	err := r.v.read(func(d *dataset) error {
		p, ok := d.profiles[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = d.hydrateProfile(p)
		return nil
	})
	return out, err
}

func (r *profileRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.Profile, error) {
	return r.GetByID(ctx, id)
}

func (r *profileRepo) GetByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	var out *models.Profile
	err := r.v.read(func(d *dataset) error {
		for _, p := range d.profiles {
			if p.UserID == userID {
				out = d.hydrateProfile(p)
				return nil
			}
		}
		return repositories.ErrNotFound
	})
	return out, err
}

func (r *profileRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.v.read(func(d *dataset) error {
		_, exists = d.profiles[id]
		return nil
	})
	return exists, err
}

func (r *profileRepo) List(ctx context.Context) ([]*models.Profile, error) {
	out := []*models.Profile{}
	err := r.v.read(func(d *dataset) error {
		for _, p := range d.profiles {
			out = append(out, d.hydrateProfile(p))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *profileRepo) Update(ctx context.Context, profile *models.Profile) error {
	return r.v.read(func(d *dataset) error {
		old, ok := d.profiles[profile.ID]
		if !ok {
			return repositories.ErrNotFound
		}
		if !d.refExists(profile.StreamID) {
			return repositories.ErrNotFound
		}
		old.StreamID = profile.StreamID
		old.IsApproved = profile.IsApproved
		d.profiles[profile.ID] = old
		return nil
	})
}

func (r *profileRepo) Delete(ctx context.Context, id string) error {
	return r.v.read(func(d *dataset) error {
		if _, ok := d.profiles[id]; !ok {
			return repositories.ErrNotFound
		}
		delete(d.profiles, id)
		d.deleteRequests(func(br models.BookRequest) bool { return br.StudentID == id })
		return nil
	})
}

type streamRepo struct{ v *view }

func (r *streamRepo) Create(ctx context.Context, stream *models.Stream) error {
	return r.v.read(func(d *dataset) error {
		for _, s := range d.streams {
			if s.Name == stream.Name {
				return repositories.ErrAlreadyExists
			}
		}
		d.nextStream++
		stream.ID = d.nextStream
		d.streams[stream.ID] = *stream
		return nil
	})
}

func (r *streamRepo) GetByID(ctx context.Context, id int64) (*models.Stream, error) {
	var out *models.Stream
	err := r.v.read(func(d *dataset) error {
		s, ok := d.streams[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = &s
		return nil
	})
	return out, err
}

func (r *streamRepo) List(ctx context.Context) ([]*models.Stream, error) {
	out := []*models.Stream{}
	err := r.v.read(func(d *dataset) error {
		for _, s := range d.streams {
			s := s
			out = append(out, &s)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

type authorRepo struct{ v *view }

func (r *authorRepo) Create(ctx context.Context, author *models.Author) error {
	return r.v.read(func(d *dataset) error {
		d.nextAuthor++
		author.ID = d.nextAuthor
		d.authors[author.ID] = *author
		return nil
	})
}

func (r *authorRepo) GetByID(ctx context.Context, id int64) (*models.Author, error) {
	var out *models.Author
	err := r.v.read(func(d *dataset) error {
		a, ok := d.authors[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *authorRepo) List(ctx context.Context) ([]*models.Author, error) {
	out := []*models.Author{}
	err := r.v.read(func(d *dataset) error {
		for _, a := range d.authors {
			a := a
			out = append(out, &a)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

type bookRepo struct{ v *view }

func (d *dataset) hydrateBook(b models.Book) *models.Book {
	b.AuthorName = d.authors[b.AuthorID].Name
	b.StreamName = d.streamName(b.StreamID)
	return &b
}

// checkBook enforces the foreign keys, the quantity floor and the uniqueness tuple
func (d *dataset) checkBook(book *models.Book) error {
	if _, ok := d.authors[book.AuthorID]; !ok {
		return repositories.ErrNotFound
	}
	if !d.refExists(book.StreamID) {
		return repositories.ErrNotFound
	}
	if book.Quantity < 0 {
		return repositories.ErrOutOfStock
	}
	for _, b := range d.books {
		if b.ID != book.ID && b.Title == book.Title && b.AuthorID == book.AuthorID &&
			sameRef(b.StreamID, book.StreamID) && sameRef(b.CreatedBy, book.CreatedBy) {
			return repositories.ErrAlreadyExists
		}
	}
	return nil
}

func (r *bookRepo) Create(ctx context.Context, book *models.Book) error {
	return r.v.read(func(d *dataset) error {
		book.ID = 0
		if err := d.checkBook(book); err != nil {
			return err
		}
		d.nextBook++
		now := r.v.now()()
		book.ID = d.nextBook
		book.CreatedAt = now
		book.UpdatedAt = now
		stored := *book
		stored.AuthorName = ""
		stored.StreamName = nil
		d.books[book.ID] = stored
		return nil
	})
}

func (r *bookRepo) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	var out *models.Book
	err := r.v.read(func(d *dataset) error {
		b, ok := d.books[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = d.hydrateBook(b)
		return nil
	})
	return out, err
}

func (r *bookRepo) GetByIDForUpdate(ctx context.Context, id int64) (*models.Book, error) {
	return r.GetByID(ctx, id)
}

func (r *bookRepo) GetByIDs(ctx context.Context, ids []int64) ([]*models.Book, error) {
	out := []*models.Book{}
	err := r.v.read(func(d *dataset) error {
		seen := map[int64]bool{}
		for _, id := range ids {
			if b, ok := d.books[id]; ok && !seen[id] {
				seen[id] = true
				out = append(out, d.hydrateBook(b))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *bookRepo) List(ctx context.Context, filter models.BookFilter) ([]*models.Book, error) {
	out := []*models.Book{}
	search := strings.ToLower(filter.Search)
	err := r.v.read(func(d *dataset) error {
		for _, b := range d.books {
			hb := d.hydrateBook(b)
			if search != "" &&
				!strings.Contains(strings.ToLower(hb.Title), search) &&
				!strings.Contains(strings.ToLower(hb.AuthorName), search) {
				continue
			}
			if filter.StreamID != nil && !sameRef(hb.StreamID, filter.StreamID) {
				continue
			}
			out = append(out, hb)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (r *bookRepo) Update(ctx context.Context, book *models.Book) error {
	return r.v.read(func(d *dataset) error {
		old, ok := d.books[book.ID]
		if !ok {
			return repositories.ErrNotFound
		}
		book.CreatedBy = old.CreatedBy
		if err := d.checkBook(book); err != nil {
			return err
		}
		book.CreatedAt = old.CreatedAt
		book.UpdatedAt = r.v.now()()
		stored := *book
		stored.AuthorName = ""
		stored.StreamName = nil
		d.books[book.ID] = stored
		return nil
	})
}

func (r *bookRepo) AdjustQuantity(ctx context.Context, id int64, delta int) error {
	return r.v.read(func(d *dataset) error {
		b, ok := d.books[id]
		if !ok {
			return repositories.ErrNotFound
		}
		if b.Quantity+delta < 0 {
			return repositories.ErrOutOfStock
		}
		b.Quantity += delta
		b.UpdatedAt = r.v.now()()
		d.books[id] = b
		return nil
	})
}

func (r *bookRepo) Delete(ctx context.Context, id int64) error {
	return r.v.read(func(d *dataset) error {
		if _, ok := d.books[id]; !ok {
			return repositories.ErrNotFound
		}
		delete(d.books, id)
		d.deleteRequests(func(br models.BookRequest) bool { return br.BookID == id })
		return nil
	})
}

type requestRepo struct{ v *view }

func (d *dataset) hydrateRequest(req models.BookRequest) *models.BookRequest {
	req.BookTitle = d.books[req.BookID].Title
	return &req
}

func (r *requestRepo) Create(ctx context.Context, req *models.BookRequest) error {
	return r.v.read(func(d *dataset) error {
		if _, ok := d.profiles[req.StudentID]; !ok {
			return repositories.ErrNotFound
		}
		if _, ok := d.books[req.BookID]; !ok {
			return repositories.ErrNotFound
		}
		if !req.IsApproved {
			for _, other := range d.requests {
				if other.StudentID == req.StudentID && other.BookID == req.BookID && !other.IsApproved {
					return repositories.ErrAlreadyExists
				}
			}
		}
		d.nextRequest++
		req.ID = d.nextRequest
		stored := *req
		stored.BookTitle = ""
		d.requests[req.ID] = stored
		return nil
	})
}

func (r *requestRepo) GetByID(ctx context.Context, id int64) (*models.BookRequest, error) {
	var out *models.BookRequest
	err := r.v.read(func(d *dataset) error {
		req, ok := d.requests[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = d.hydrateRequest(req)
		return nil
	})
	return out, err
}

func (r *requestRepo) GetByIDForUpdate(ctx context.Context, id int64) (*models.BookRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *requestRepo) collect(match func(models.BookRequest) bool) ([]*models.BookRequest, error) {
	out := []*models.BookRequest{}
	err := r.v.read(func(d *dataset) error {
		for _, req := range d.requests {
			if match(req) {
				out = append(out, d.hydrateRequest(req))
			}
		}
		return nil
	})
	return out, err
}

func (r *requestRepo) List(ctx context.Context, filter models.BookRequestFilter) ([]*models.BookRequest, error) {
	out, err := r.collect(func(req models.BookRequest) bool {
		return filter.StudentID == "" || req.StudentID == filter.StudentID
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.After(out[j].RequestedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (r *requestRepo) FindPending(ctx context.Context, studentID string, bookIDs []int64) ([]*models.BookRequest, error) {
	wanted := make(map[int64]bool, len(bookIDs))
	for _, id := range bookIDs {
		wanted[id] = true
	}
	out, err := r.collect(func(req models.BookRequest) bool {
		return req.StudentID == studentID && !req.IsApproved && wanted[req.BookID]
	})
	sort.Slice(out, func(i, j int) bool { return out[i].BookID < out[j].BookID })
	return out, err
}

func (r *requestRepo) CountOutstanding(ctx context.Context, studentID string) (int, error) {
	out, err := r.collect(func(req models.BookRequest) bool {
		return req.StudentID == studentID && req.IsApproved && !req.IsReturned
	})
	return len(out), err
}

func (r *requestRepo) Update(ctx context.Context, req *models.BookRequest) error {
	return r.v.read(func(d *dataset) error {
		old, ok := d.requests[req.ID]
		if !ok {
			return repositories.ErrNotFound
		}
		old.IsApproved = req.IsApproved
		old.ApprovedAt = req.ApprovedAt
		old.ReturnDueDate = req.ReturnDueDate
		old.IsReturned = req.IsReturned
		old.ReturnedAt = req.ReturnedAt
		d.requests[req.ID] = old
		return nil
	})
}

func (r *requestRepo) DeleteByStudent(ctx context.Context, studentID string) error {
	return r.v.read(func(d *dataset) error {
		d.deleteRequests(func(br models.BookRequest) bool { return br.StudentID == studentID })
		return nil
	})
}
