// model/reservation.go
package model

import "time"

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// ReservationTTL is how long a pending reservation is honored.
const ReservationTTL = 7 * 24 * time.Hour

type Reservation struct {
	ID        int64             `json:"id"`
	BookID    int64             `json:"book_id"`
	UserID    int64             `json:"user_id"`
	Status    ReservationStatus `json:"status"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
}
