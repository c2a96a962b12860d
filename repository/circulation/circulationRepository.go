// repository/circulation/repo.go
package circrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NasirKhan521436/RestFul-Library-API/model"
)

var (
	// ErrNoCopies: checkout requested but available_copies is zero.
	ErrNoCopies = errors.New("no copies available")
	// ErrBookAvailable: reservation requested while copies can simply be checked out.
	ErrBookAvailable = errors.New("copies are available")
	// ErrNotOwner: the record exists but belongs to another user.
	ErrNotOwner = errors.New("record belongs to another user")
)

type HistoryRow struct {
	CheckoutID   int64      `json:"checkout_id"`
	BookID       int64      `json:"book_id"`
	BookTitle    string     `json:"book_title"`
	Returned     bool       `json:"returned"`
	CheckedOutAt time.Time  `json:"checked_out_at"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
}

type ReservationRow struct {
	ReservationID int64                   `json:"reservation_id"`
	BookID        int64                   `json:"book_id"`
	BookTitle     string                  `json:"book_title"`
	Status        model.ReservationStatus `json:"status"`
	ExpiresAt     time.Time               `json:"expires_at"`
	CreatedAt     time.Time               `json:"created_at"`
}

type Repo interface {
	// Checkouts
	CreateCheckout(ctx context.Context, bookID, userID int64) (*model.Checkout, error)
	ReturnCheckout(ctx context.Context, checkoutID, userID int64) (*model.Checkout, *model.Reservation, error)
	ListUserCheckouts(ctx context.Context, userID int64) ([]HistoryRow, error)

	// Reservations
	CreateReservation(ctx context.Context, bookID, userID int64) (*model.Reservation, error)
	CancelReservation(ctx context.Context, reservationID, userID int64) error
	ListUserReservations(ctx context.Context, userID int64) ([]ReservationRow, error)
	CancelExpired(ctx context.Context, now time.Time) (int64, error)
}

type repo struct{ db *pgxpool.Pool }

func New(db *pgxpool.Pool) Repo { return &repo{db: db} }

// decrementIfAvailable is the serialization point for concurrent checkouts:
// the guarded UPDATE either takes a copy or affects zero rows.
const decrementIfAvailable = `
UPDATE books
SET available_copies = available_copies - 1,
    updated_at = now()
WHERE id = $1
  AND available_copies > 0`

func (r *repo) CreateCheckout(ctx context.Context, bookID, userID int64) (co *model.Checkout, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, decrementIfAvailable, bookID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE id=$1)`, bookID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			err = pgx.ErrNoRows
		} else {
			err = ErrNoCopies
		}
		return nil, err
	}

	co = &model.Checkout{BookID: bookID, UserID: userID}
	const ins = `
INSERT INTO checkouts (book_id, user_id)
VALUES ($1, $2)
RETURNING id, returned, checked_out_at`
	if err = tx.QueryRow(ctx, ins, bookID, userID).Scan(&co.ID, &co.Returned, &co.CheckedOutAt); err != nil {
		// a unique violation here means the user already holds this book;
		// the service maps the pg error code
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return co, nil
}

// ReturnCheckout marks the checkout returned, frees the copy and, if a pending
// reservation is waiting, hands the copy straight to the oldest reserver.
// All of it commits or none of it does.
func (r *repo) ReturnCheckout(ctx context.Context, checkoutID, userID int64) (co *model.Checkout, fulfilled *model.Reservation, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	co = &model.Checkout{ID: checkoutID, UserID: userID, Returned: true}
	const ret = `
UPDATE checkouts
SET returned = TRUE,
    returned_at = now()
WHERE id = $1
  AND user_id = $2
  AND NOT returned
RETURNING book_id, checked_out_at, returned_at`
	err = tx.QueryRow(ctx, ret, checkoutID, userID).Scan(&co.BookID, &co.CheckedOutAt, &co.ReturnedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var owner int64
		var returned bool
		probe := tx.QueryRow(ctx, `SELECT user_id, returned FROM checkouts WHERE id=$1`, checkoutID).
			Scan(&owner, &returned)
		switch {
		case errors.Is(probe, pgx.ErrNoRows):
			err = pgx.ErrNoRows
		case probe != nil:
			err = probe
		case !returned && owner != userID:
			err = ErrNotOwner
		default:
			// already returned reads as "no active checkout with that id"
			err = pgx.ErrNoRows
		}
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, err
	}

	const inc = `
UPDATE books
SET available_copies = available_copies + 1,
    updated_at = now()
WHERE id = $1`
	if _, err = tx.Exec(ctx, inc, co.BookID); err != nil {
		return nil, nil, err
	}

	fulfilled, err = r.fulfillOldestPending(ctx, tx, co.BookID)
	if err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return co, fulfilled, nil
}

// fulfillOldestPending claims the oldest live pending reservation for the book
// (FIFO by creation time) and consumes the freed copy on the reserver's behalf
// by opening a checkout for them. Reservers who already hold the book are
// skipped so the active-checkout uniqueness rule cannot abort the return.
func (r *repo) fulfillOldestPending(ctx context.Context, tx pgx.Tx, bookID int64) (*model.Reservation, error) {
	res := &model.Reservation{BookID: bookID, Status: model.ReservationFulfilled}
	const sel = `
SELECT r.id, r.user_id, r.expires_at, r.created_at
FROM reservations r
WHERE r.book_id = $1
  AND r.status = 'PENDING'
  AND r.expires_at > now()
  AND NOT EXISTS (
        SELECT 1 FROM checkouts c
        WHERE c.book_id = r.book_id AND c.user_id = r.user_id AND NOT c.returned
  )
ORDER BY r.created_at
LIMIT 1
FOR UPDATE SKIP LOCKED`
	err := tx.QueryRow(ctx, sel, bookID).Scan(&res.ID, &res.UserID, &res.ExpiresAt, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE reservations SET status='FULFILLED' WHERE id=$1`, res.ID); err != nil {
		return nil, err
	}
	tag, err := tx.Exec(ctx, decrementIfAvailable, bookID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, errors.New("availability drifted while fulfilling reservation")
	}
	if _, err := tx.Exec(ctx, `INSERT INTO checkouts (book_id, user_id) VALUES ($1,$2)`, bookID, res.UserID); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *repo) ListUserCheckouts(ctx context.Context, userID int64) ([]HistoryRow, error) {
	const q = `
SELECT
	c.id             AS checkout_id,
	c.book_id        AS book_id,
	b.title          AS book_title,
	c.returned       AS returned,
	c.checked_out_at AS checked_out_at,
	c.returned_at    AS returned_at
FROM checkouts c
JOIN books b ON b.id = c.book_id
WHERE c.user_id = $1
ORDER BY c.checked_out_at DESC, c.id DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(
			&h.CheckoutID, &h.BookID, &h.BookTitle,
			&h.Returned, &h.CheckedOutAt, &h.ReturnedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *repo) CreateReservation(ctx context.Context, bookID, userID int64) (res *model.Reservation, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// FOR SHARE pins the availability the precondition was judged against
	// until the reservation row is in.
	var available int64
	const sel = `SELECT available_copies FROM books WHERE id=$1 FOR SHARE`
	if err = tx.QueryRow(ctx, sel, bookID).Scan(&available); err != nil {
		return nil, err
	}
	if available > 0 {
		err = ErrBookAvailable
		return nil, err
	}

	res = &model.Reservation{BookID: bookID, UserID: userID}
	const ins = `
INSERT INTO reservations (book_id, user_id)
VALUES ($1, $2)
RETURNING id, status, expires_at, created_at`
	if err = tx.QueryRow(ctx, ins, bookID, userID).Scan(&res.ID, &res.Status, &res.ExpiresAt, &res.CreatedAt); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *repo) CancelReservation(ctx context.Context, reservationID, userID int64) error {
	const q = `
UPDATE reservations
SET status = 'CANCELLED'
WHERE id = $1
  AND user_id = $2
  AND status = 'PENDING'`
	tag, err := r.db.Exec(ctx, q, reservationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var owner int64
	var status model.ReservationStatus
	probe := r.db.QueryRow(ctx, `SELECT user_id, status FROM reservations WHERE id=$1`, reservationID).
		Scan(&owner, &status)
	switch {
	case errors.Is(probe, pgx.ErrNoRows):
		return pgx.ErrNoRows
	case probe != nil:
		return probe
	case status == model.ReservationPending && owner != userID:
		return ErrNotOwner
	default:
		return pgx.ErrNoRows
	}
}

func (r *repo) ListUserReservations(ctx context.Context, userID int64) ([]ReservationRow, error) {
	const q = `
SELECT
	r.id         AS reservation_id,
	r.book_id    AS book_id,
	b.title      AS book_title,
	r.status     AS status,
	r.expires_at AS expires_at,
	r.created_at AS created_at
FROM reservations r
JOIN books b ON b.id = r.book_id
WHERE r.user_id = $1
ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReservationRow
	for rows.Next() {
		var rr ReservationRow
		if err := rows.Scan(
			&rr.ReservationID, &rr.BookID, &rr.BookTitle,
			&rr.Status, &rr.ExpiresAt, &rr.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

func (r *repo) CancelExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `
UPDATE reservations
SET status = 'CANCELLED'
WHERE status = 'PENDING'
  AND expires_at <= $1`
	tag, err := r.db.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
