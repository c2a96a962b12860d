package circsvc

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/NasirKhan521436/RestFul-Library-API/model"
	circrepo "github.com/NasirKhan521436/RestFul-Library-API/repository/circulation"
)

// errors used by controllers

type ErrCode string

const (
	ErrBookNotFound    ErrCode = "BOOK_NOT_FOUND"
	ErrNoCopies        ErrCode = "NO_COPIES"
	ErrAlreadyBorrowed ErrCode = "ALREADY_BORROWED"
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrNotOwner        ErrCode = "NOT_OWNER"
	ErrBookAvailable   ErrCode = "BOOK_AVAILABLE"
	ErrAlreadyReserved ErrCode = "ALREADY_RESERVED"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// dto

// HistoryRow / ReservationRow = repository shapes
type HistoryRow = circrepo.HistoryRow
type ReservationRow = circrepo.ReservationRow

// Returned reports the outcome of a return: the closed checkout and, when the
// freed copy went straight to a waiting reserver, the fulfilled reservation.
type Returned struct {
	Checkout  *model.Checkout
	Fulfilled *model.Reservation
}

type Repo interface {
	CreateCheckout(ctx context.Context, bookID, userID int64) (*model.Checkout, error)
	ReturnCheckout(ctx context.Context, checkoutID, userID int64) (*model.Checkout, *model.Reservation, error)
	ListUserCheckouts(ctx context.Context, userID int64) ([]HistoryRow, error)

	CreateReservation(ctx context.Context, bookID, userID int64) (*model.Reservation, error)
	CancelReservation(ctx context.Context, reservationID, userID int64) error
	ListUserReservations(ctx context.Context, userID int64) ([]ReservationRow, error)
}

type Service interface {
	// Checkout: take one copy of a book for the user.
	Checkout(ctx context.Context, userID, bookID int64) (*model.Checkout, error)

	// Return: close the user's active checkout and free (or hand over) the copy.
	Return(ctx context.Context, userID, checkoutID int64) (*Returned, error)

	// MyCheckouts: checkout history for a user, newest first.
	MyCheckouts(ctx context.Context, userID int64) ([]HistoryRow, error)

	// Reserve: queue for a book that has no copies left.
	Reserve(ctx context.Context, userID, bookID int64) (*model.Reservation, error)

	// CancelReservation: owner drops a pending reservation.
	CancelReservation(ctx context.Context, userID, reservationID int64) error

	// MyReservations: reservations for a user, newest first.
	MyReservations(ctx context.Context, userID int64) ([]ReservationRow, error)
}

// ----- Service implementation -----

type service struct {
	r Repo
}

func New(r Repo) Service { return &service{r: r} }

func (s *service) Checkout(ctx context.Context, userID, bookID int64) (*model.Checkout, error) {
	co, err := s.r.CreateCheckout(ctx, bookID, userID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, makeErr(ErrBookNotFound)
		case errors.Is(err, circrepo.ErrNoCopies):
			return nil, makeErr(ErrNoCopies)
		case isUniqueViolation(err):
			return nil, makeErr(ErrAlreadyBorrowed)
		}
		return nil, err
	}
	return co, nil
}

func (s *service) Return(ctx context.Context, userID, checkoutID int64) (*Returned, error) {
	co, fulfilled, err := s.r.ReturnCheckout(ctx, checkoutID, userID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, makeErr(ErrNotFound)
		case errors.Is(err, circrepo.ErrNotOwner):
			return nil, makeErr(ErrNotOwner)
		}
		return nil, err
	}
	return &Returned{Checkout: co, Fulfilled: fulfilled}, nil
}

func (s *service) MyCheckouts(ctx context.Context, userID int64) ([]HistoryRow, error) {
	return s.r.ListUserCheckouts(ctx, userID)
}

func (s *service) Reserve(ctx context.Context, userID, bookID int64) (*model.Reservation, error) {
	res, err := s.r.CreateReservation(ctx, bookID, userID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, makeErr(ErrBookNotFound)
		case errors.Is(err, circrepo.ErrBookAvailable):
			return nil, makeErr(ErrBookAvailable)
		case isUniqueViolation(err):
			return nil, makeErr(ErrAlreadyReserved)
		}
		return nil, err
	}
	return res, nil
}

func (s *service) CancelReservation(ctx context.Context, userID, reservationID int64) error {
	err := s.r.CancelReservation(ctx, reservationID, userID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return makeErr(ErrNotFound)
	case errors.Is(err, circrepo.ErrNotOwner):
		return makeErr(ErrNotOwner)
	}
	return err
}

func (s *service) MyReservations(ctx context.Context, userID int64) ([]ReservationRow, error) {
	return s.r.ListUserReservations(ctx, userID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
