// model/checkout.go
package model

import "time"

type Checkout struct {
	ID           int64      `json:"id"`
	BookID       int64      `json:"book_id"`
	UserID       int64      `json:"user_id"`
	Returned     bool       `json:"returned"`
	CheckedOutAt time.Time  `json:"checked_out_at"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
}
