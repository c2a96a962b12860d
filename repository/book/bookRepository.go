package bookrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NasirKhan521436/RestFul-Library-API/model"
)

// ErrInUse is returned when a delete targets a book that still has active
// checkouts or pending reservations.
var ErrInUse = errors.New("book has active checkouts or pending reservations")

// Filter is one condition from the list query string, e.g. published_year[gte]=2000.
type Filter struct {
	Field string
	Op    string // eq | gt | gte | lt | lte
	Value any
}

type ListParams struct {
	Filters []Filter
	Sort    []string // column names, "-" prefix for descending
	Page    int
	Limit   int
}

// UpdatePatch carries the fields of a partial update; nil means "leave as is".
type UpdatePatch struct {
	Title         *string
	Author        *string
	ISBN          *string
	TotalCopies   *int64
	Genre         []string
	PublishedYear *int
}

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	ByID(ctx context.Context, id int64) (*model.Book, error)
	List(ctx context.Context, p ListParams) ([]model.Book, error)
	Count(ctx context.Context, filters []Filter) (int64, error)
	Update(ctx context.Context, id int64, p UpdatePatch) (*model.Book, error)
	Delete(ctx context.Context, id int64) error
}

type repo struct{ db *pgxpool.Pool }

func New(db *pgxpool.Pool) Repo { return &repo{db: db} }

const bookColumns = `id, title, author, isbn, total_copies, available_copies, genre, published_year, created_at, updated_at`

func (r *repo) Create(ctx context.Context, b *model.Book) error {
	const q = `
INSERT INTO books (title, author, isbn, total_copies, available_copies, genre, published_year)
VALUES ($1,$2,$3,$4,$4,$5,$6)
RETURNING id, available_copies, created_at, updated_at`
	return r.db.QueryRow(ctx, q, b.Title, b.Author, b.ISBN, b.TotalCopies, b.Genre, b.PublishedYear).
		Scan(&b.ID, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt)
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Book, error) {
	q := `SELECT ` + bookColumns + ` FROM books WHERE id=$1`
	var b model.Book
	if err := r.db.QueryRow(ctx, q, id).Scan(
		&b.ID, &b.Title, &b.Author, &b.ISBN, &b.TotalCopies, &b.AvailableCopies,
		&b.Genre, &b.PublishedYear, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

var filterOps = map[string]string{
	"eq":  "=",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

var columns = map[string]bool{
	"title":            true,
	"author":           true,
	"isbn":             true,
	"total_copies":     true,
	"available_copies": true,
	"published_year":   true,
	"created_at":       true,
}

func buildWhere(filters []Filter) (string, []any, error) {
	var conds []string
	var args []any
	for _, f := range filters {
		op, ok := filterOps[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		args = append(args, f.Value)
		n := len(args)
		if f.Field == "genre" {
			if f.Op != "eq" {
				return "", nil, fmt.Errorf("operator %q not valid for genre", f.Op)
			}
			conds = append(conds, fmt.Sprintf("$%d = ANY(genre)", n))
			continue
		}
		if !columns[f.Field] {
			return "", nil, fmt.Errorf("unknown field %q", f.Field)
		}
		conds = append(conds, fmt.Sprintf("%s %s $%d", f.Field, op, n))
	}
	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func buildOrder(sort []string) (string, error) {
	if len(sort) == 0 {
		return " ORDER BY id", nil
	}
	var keys []string
	for _, s := range sort {
		dir := "ASC"
		col := s
		if strings.HasPrefix(s, "-") {
			dir = "DESC"
			col = s[1:]
		}
		if !columns[col] {
			return "", fmt.Errorf("cannot sort by %q", col)
		}
		keys = append(keys, col+" "+dir)
	}
	return " ORDER BY " + strings.Join(keys, ", "), nil
}

func (r *repo) List(ctx context.Context, p ListParams) ([]model.Book, error) {
	where, args, err := buildWhere(p.Filters)
	if err != nil {
		return nil, err
	}
	order, err := buildOrder(p.Sort)
	if err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	q := `SELECT ` + bookColumns + ` FROM books` + where + order +
		fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(
			&b.ID, &b.Title, &b.Author, &b.ISBN, &b.TotalCopies, &b.AvailableCopies,
			&b.Genre, &b.PublishedYear, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repo) Count(ctx context.Context, filters []Filter) (int64, error) {
	where, args, err := buildWhere(filters)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Update applies a partial update. When total_copies changes, available_copies
// is recomputed as total_copies minus the active checkout count, floored at 0.
// The row is locked so the recompute sees a stable count.
func (r *repo) Update(ctx context.Context, id int64, p UpdatePatch) (b *model.Book, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	b = &model.Book{ID: id}
	const sel = `
SELECT title, author, isbn, total_copies, available_copies, genre, published_year, created_at
FROM books
WHERE id=$1
FOR UPDATE`
	if err = tx.QueryRow(ctx, sel, id).Scan(
		&b.Title, &b.Author, &b.ISBN, &b.TotalCopies, &b.AvailableCopies,
		&b.Genre, &b.PublishedYear, &b.CreatedAt,
	); err != nil {
		return nil, err
	}

	oldTotal := b.TotalCopies
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.ISBN != nil {
		b.ISBN = *p.ISBN
	}
	if p.TotalCopies != nil {
		b.TotalCopies = *p.TotalCopies
	}
	if p.Genre != nil {
		b.Genre = p.Genre
	}
	if p.PublishedYear != nil {
		b.PublishedYear = p.PublishedYear
	}

	if p.TotalCopies != nil && b.TotalCopies != oldTotal {
		var active int64
		const cnt = `SELECT COUNT(*) FROM checkouts WHERE book_id=$1 AND NOT returned`
		if err = tx.QueryRow(ctx, cnt, id).Scan(&active); err != nil {
			return nil, err
		}
		b.AvailableCopies = b.TotalCopies - active
		if b.AvailableCopies < 0 {
			b.AvailableCopies = 0
		}
	}

	const upd = `
UPDATE books
SET title=$2, author=$3, isbn=$4, total_copies=$5, available_copies=$6,
    genre=$7, published_year=$8, updated_at=now()
WHERE id=$1
RETURNING updated_at`
	if err = tx.QueryRow(ctx, upd, id, b.Title, b.Author, b.ISBN,
		b.TotalCopies, b.AvailableCopies, b.Genre, b.PublishedYear,
	).Scan(&b.UpdatedAt); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repo) Delete(ctx context.Context, id int64) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var inUse bool
	const chk = `
SELECT EXISTS (SELECT 1 FROM checkouts WHERE book_id=$1 AND NOT returned)
    OR EXISTS (SELECT 1 FROM reservations WHERE book_id=$1 AND status='PENDING')`
	if err = tx.QueryRow(ctx, chk, id).Scan(&inUse); err != nil {
		return err
	}
	if inUse {
		err = ErrInUse
		return err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM books WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = pgx.ErrNoRows
		return err
	}
	return tx.Commit(ctx)
}
