package booksvc

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/NasirKhan521436/RestFul-Library-API/model"
	bookrepo "github.com/NasirKhan521436/RestFul-Library-API/repository/book"
)

var (
	ErrBadInput  = errors.New("invalid book payload")
	ErrNotFound  = errors.New("book not found")
	ErrISBNTaken = errors.New("isbn already registered")
	ErrInUse     = errors.New("book still has active checkouts or pending reservations")
	ErrBadPage   = errors.New("page out of range")
)

type Book = model.Book
type ListParams = bookrepo.ListParams
type UpdatePatch = bookrepo.UpdatePatch

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	ByID(ctx context.Context, id int64) (*model.Book, error)
	List(ctx context.Context, p bookrepo.ListParams) ([]model.Book, error)
	Count(ctx context.Context, filters []bookrepo.Filter) (int64, error)
	Update(ctx context.Context, id int64, p bookrepo.UpdatePatch) (*model.Book, error)
	Delete(ctx context.Context, id int64) error
}

type Service interface {
	Create(ctx context.Context, b *model.Book) error
	Detail(ctx context.Context, id int64) (*model.Book, error)

	// List returns a page of books. pageRequested tells the service the page
	// was asked for explicitly, which makes an out-of-range page an error
	// instead of an empty result.
	List(ctx context.Context, p ListParams, pageRequested bool) ([]model.Book, error)

	Update(ctx context.Context, id int64, p UpdatePatch) (*model.Book, error)
	Delete(ctx context.Context, id int64) error
}

type service struct{ r Repo }

func New(r Repo) Service { return &service{r: r} }

func (s *service) Create(ctx context.Context, b *model.Book) error {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	b.ISBN = strings.TrimSpace(b.ISBN)
	if b.Title == "" || b.Author == "" || b.ISBN == "" || b.TotalCopies < 1 || len(b.Genre) == 0 {
		return ErrBadInput
	}
	for _, g := range b.Genre {
		if strings.TrimSpace(g) == "" {
			return ErrBadInput
		}
	}
	if err := s.r.Create(ctx, b); err != nil {
		if isUniqueViolation(err) {
			return ErrISBNTaken
		}
		return err
	}
	return nil
}

func (s *service) Detail(ctx context.Context, id int64) (*model.Book, error) {
	b, err := s.r.ByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *service) List(ctx context.Context, p ListParams, pageRequested bool) ([]model.Book, error) {
	if pageRequested && p.Page > 1 {
		limit := p.Limit
		if limit <= 0 {
			limit = 10
		}
		total, err := s.r.Count(ctx, p.Filters)
		if err != nil {
			return nil, err
		}
		if int64((p.Page-1)*limit) >= total {
			return nil, ErrBadPage
		}
	}
	return s.r.List(ctx, p)
}

func (s *service) Update(ctx context.Context, id int64, p UpdatePatch) (*model.Book, error) {
	if err := validatePatch(p); err != nil {
		return nil, err
	}
	b, err := s.r.Update(ctx, id, p)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrNotFound
	case isUniqueViolation(err):
		return nil, ErrISBNTaken
	case err != nil:
		return nil, err
	}
	return b, nil
}

func validatePatch(p UpdatePatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrBadInput
	}
	if p.Author != nil && strings.TrimSpace(*p.Author) == "" {
		return ErrBadInput
	}
	if p.ISBN != nil && strings.TrimSpace(*p.ISBN) == "" {
		return ErrBadInput
	}
	if p.TotalCopies != nil && *p.TotalCopies < 1 {
		return ErrBadInput
	}
	if p.Genre != nil && len(p.Genre) == 0 {
		return ErrBadInput
	}
	return nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	err := s.r.Delete(ctx, id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, bookrepo.ErrInUse):
		return ErrInUse
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
