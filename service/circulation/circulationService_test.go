// service/circulation/circulation_service_test.go
package circsvc_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/NasirKhan521436/RestFul-Library-API/model"
	circrepo "github.com/NasirKhan521436/RestFul-Library-API/repository/circulation"
	circsvc "github.com/NasirKhan521436/RestFul-Library-API/service/circulation"
)

// fakeStore mimics the store's accounting under a single lock: the guarded
// copy decrement, the active-checkout uniqueness rule and FIFO reservation
// fulfillment behave like their SQL counterparts.
type fakeStore struct {
	mu           sync.Mutex
	nextID       int64
	books        map[int64]*bookState
	checkouts    map[int64]*model.Checkout
	reservations map[int64]*model.Reservation
}

type bookState struct {
	title     string
	total     int64
	available int64
}

var _ circsvc.Repo = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		books:        make(map[int64]*bookState),
		checkouts:    make(map[int64]*model.Checkout),
		reservations: make(map[int64]*model.Reservation),
	}
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation}
}

func (f *fakeStore) addBook(title string, total int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.books[f.nextID] = &bookState{title: title, total: total, available: total}
	return f.nextID
}

func (f *fakeStore) available(bookID int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.books[bookID].available
}

func (f *fakeStore) hasActiveCheckout(bookID, userID int64) bool {
	for _, co := range f.checkouts {
		if co.BookID == bookID && co.UserID == userID && !co.Returned {
			return true
		}
	}
	return false
}

func (f *fakeStore) openCheckout(bookID, userID int64) *model.Checkout {
	f.nextID++
	co := &model.Checkout{
		ID:           f.nextID,
		BookID:       bookID,
		UserID:       userID,
		CheckedOutAt: time.Now(),
	}
	f.checkouts[co.ID] = co
	return co
}

func (f *fakeStore) CreateCheckout(_ context.Context, bookID, userID int64) (*model.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.books[bookID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if b.available <= 0 {
		return nil, circrepo.ErrNoCopies
	}
	if f.hasActiveCheckout(bookID, userID) {
		return nil, uniqueViolation()
	}
	b.available--
	return f.openCheckout(bookID, userID), nil
}

func (f *fakeStore) ReturnCheckout(_ context.Context, checkoutID, userID int64) (*model.Checkout, *model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	co, ok := f.checkouts[checkoutID]
	if !ok || co.Returned {
		return nil, nil, pgx.ErrNoRows
	}
	if co.UserID != userID {
		return nil, nil, circrepo.ErrNotOwner
	}
	now := time.Now()
	co.Returned = true
	co.ReturnedAt = &now
	f.books[co.BookID].available++

	var oldest *model.Reservation
	for _, r := range f.reservations {
		if r.BookID != co.BookID || r.Status != model.ReservationPending || !r.ExpiresAt.After(now) {
			continue
		}
		if f.hasActiveCheckout(r.BookID, r.UserID) {
			continue
		}
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}
	if oldest != nil {
		oldest.Status = model.ReservationFulfilled
		f.books[co.BookID].available--
		f.openCheckout(co.BookID, oldest.UserID)
	}
	return co, oldest, nil
}

func (f *fakeStore) ListUserCheckouts(_ context.Context, userID int64) ([]circsvc.HistoryRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []circsvc.HistoryRow
	for _, co := range f.checkouts {
		if co.UserID != userID {
			continue
		}
		out = append(out, circsvc.HistoryRow{
			CheckoutID:   co.ID,
			BookID:       co.BookID,
			BookTitle:    f.books[co.BookID].title,
			Returned:     co.Returned,
			CheckedOutAt: co.CheckedOutAt,
			ReturnedAt:   co.ReturnedAt,
		})
	}
	return out, nil
}

func (f *fakeStore) CreateReservation(_ context.Context, bookID, userID int64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.books[bookID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if b.available > 0 {
		return nil, circrepo.ErrBookAvailable
	}
	for _, r := range f.reservations {
		if r.BookID == bookID && r.UserID == userID && r.Status == model.ReservationPending {
			return nil, uniqueViolation()
		}
	}
	f.nextID++
	res := &model.Reservation{
		ID:        f.nextID,
		BookID:    bookID,
		UserID:    userID,
		Status:    model.ReservationPending,
		ExpiresAt: time.Now().Add(model.ReservationTTL),
		CreatedAt: time.Now().Add(time.Duration(f.nextID)), // stable FIFO order
	}
	f.reservations[res.ID] = res
	return res, nil
}

func (f *fakeStore) CancelReservation(_ context.Context, reservationID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.reservations[reservationID]
	if !ok || r.Status != model.ReservationPending {
		return pgx.ErrNoRows
	}
	if r.UserID != userID {
		return circrepo.ErrNotOwner
	}
	r.Status = model.ReservationCancelled
	return nil
}

func (f *fakeStore) ListUserReservations(_ context.Context, userID int64) ([]circsvc.ReservationRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []circsvc.ReservationRow
	for _, r := range f.reservations {
		if r.UserID != userID {
			continue
		}
		out = append(out, circsvc.ReservationRow{
			ReservationID: r.ID,
			BookID:        r.BookID,
			BookTitle:     f.books[r.BookID].title,
			Status:        r.Status,
			ExpiresAt:     r.ExpiresAt,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

// --- tests ---

func TestCheckout_BookNotFound(t *testing.T) {
	svc := circsvc.New(newFakeStore())
	_, err := svc.Checkout(context.Background(), 1, 999)
	require.Error(t, err)
	require.Equal(t, circsvc.ErrBookNotFound, circsvc.Code(err))
}

func TestCheckout_NoCopies(t *testing.T) {
	f := newFakeStore()
	bookID := f.addBook("Dune", 1)
	svc := circsvc.New(f)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, 1, bookID)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, 2, bookID)
	require.Equal(t, circsvc.ErrNoCopies, circsvc.Code(err))
}

func TestCheckout_DuplicateActive(t *testing.T) {
	f := newFakeStore()
	bookID := f.addBook("Dune", 3)
	svc := circsvc.New(f)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, 1, bookID)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, 1, bookID)
	require.Equal(t, circsvc.ErrAlreadyBorrowed, circsvc.Code(err))
}

// With exactly one copy and N concurrent attempts, exactly one wins and the
// rest see NO_COPIES.
func TestCheckout_ConcurrentSingleCopy(t *testing.T) {
	f := newFakeStore()
	bookID := f.addBook("Dune", 1)
	svc := circsvc.New(f)
	ctx := context.Background()

	const n = 25
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Checkout(ctx, int64(i+1), bookID)
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		require.Equal(t, circsvc.ErrNoCopies, circsvc.Code(err))
	}
	require.Equal(t, 1, won)
	require.EqualValues(t, 0, f.available(bookID))
}

func TestRoundTrip_Counts(t *testing.T) {
	f := newFakeStore()
	bookID := f.addBook("Dune", 3)
	svc := circsvc.New(f)
	ctx := context.Background()

	require.EqualValues(t, 3, f.available(bookID))

	co, err := svc.Checkout(ctx, 1, bookID)
	require.NoError(t, err)
	require.EqualValues(t, 2, f.available(bookID))

	_, err = svc.Return(ctx, 1, co.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, f.available(bookID))
}

func TestReturn_Idempotent(t *testing.T) {
	f := newFakeStore()
	bookID := f.addBook("Dune", 3)
	svc := circsvc.New(f)
	ctx := context.Background()

	co, err := svc.Checkout(ctx, 1, bookID)
	require.NoError(t, err)

	_, err = svc.Return(ctx, 1, co.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, f.available(bookID))

	// second return must not double-increment
	_, err = svc.Return(ctx, 1, co.ID)
	require.Equal(t, circsvc.ErrNotFound, circsvc.Code(err))
	require.EqualValues(t, 3, f.available(bookID))
}

func TestReturn_NotOwner(t *testing.T) {
	f := newFakeStore()
	bookID := f.addBook("Dune", 1)
	svc := circsvc.New(f)
	ctx := context.Background()

	co, err := svc.Checkout(ctx, 1, bookID)
	require.NoError(t, err)

	_, err = svc.Return(ctx, 2, co.ID)
	require.Equal(t, circsvc.ErrNotOwner, circsvc.Code(err))
}

func TestReserve_OnlyWhenExhausted(t *testing.T) {
	f := newFakeStore()
	bookID := f.addBook("Dune", 1)
	svc := circsvc.New(f)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 2, bookID)
	require.Equal(t, circsvc.ErrBookAvailable, circsvc.Code(err))

	_, err = svc.Checkout(ctx, 1, bookID)
	require.NoError(t, err)

	res, err := svc.Reserve(ctx, 2, bookID)
	require.NoError(t, err)
	require.Equal(t, model.ReservationPending, res.Status)

	_, err = svc.Reserve(ctx, 2, bookID)
	require.Equal(t, circsvc.ErrAlreadyReserved, circsvc.Code(err))
}

func TestReserve_BookNotFound(t *testing.T) {
	svc := circsvc.New(newFakeStore())
	_, err := svc.Reserve(context.Background(), 1, 404)
	require.Equal(t, circsvc.ErrBookNotFound, circsvc.Code(err))
}

// Returning a copy hands it to the oldest waiting reserver.
func TestReturn_FulfillsOldestReservation(t *testing.T) {
	f := newFakeStore()
	bookID := f.addBook("Dune", 1)
	svc := circsvc.New(f)
	ctx := context.Background()

	co, err := svc.Checkout(ctx, 1, bookID)
	require.NoError(t, err)

	resB, err := svc.Reserve(ctx, 2, bookID)
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, 3, bookID)
	require.NoError(t, err)

	out, err := svc.Return(ctx, 1, co.ID)
	require.NoError(t, err)
	require.NotNil(t, out.Fulfilled)
	require.Equal(t, resB.ID, out.Fulfilled.ID)
	require.Equal(t, model.ReservationFulfilled, out.Fulfilled.Status)

	// the freed copy went straight to user 2
	require.EqualValues(t, 0, f.available(bookID))
	rows, err := svc.MyCheckouts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.False(t, rows[0].Returned)

	// user 3 is still queued
	pending, err := svc.MyReservations(ctx, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, model.ReservationPending, pending[0].Status)
}

func TestCancelReservation(t *testing.T) {
	f := newFakeStore()
	bookID := f.addBook("Dune", 1)
	svc := circsvc.New(f)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, 1, bookID)
	require.NoError(t, err)
	res, err := svc.Reserve(ctx, 2, bookID)
	require.NoError(t, err)

	err = svc.CancelReservation(ctx, 3, res.ID)
	require.Equal(t, circsvc.ErrNotOwner, circsvc.Code(err))

	require.NoError(t, svc.CancelReservation(ctx, 2, res.ID))

	// cancelled reads as gone
	err = svc.CancelReservation(ctx, 2, res.ID)
	require.Equal(t, circsvc.ErrNotFound, circsvc.Code(err))
}

// create Book(totalCopies=1) → A checks out → B fails → A returns → B succeeds
func TestScenario_SingleCopyHandoff(t *testing.T) {
	f := newFakeStore()
	bookID := f.addBook("Dune", 1)
	svc := circsvc.New(f)
	ctx := context.Background()

	coA, err := svc.Checkout(ctx, 1, bookID)
	require.NoError(t, err)
	require.EqualValues(t, 0, f.available(bookID))

	_, err = svc.Checkout(ctx, 2, bookID)
	require.Equal(t, circsvc.ErrNoCopies, circsvc.Code(err))

	_, err = svc.Return(ctx, 1, coA.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, f.available(bookID))

	_, err = svc.Checkout(ctx, 2, bookID)
	require.NoError(t, err)
	require.EqualValues(t, 0, f.available(bookID))
}
