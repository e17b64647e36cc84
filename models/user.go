package models

import "time"

// UserRecord is the backend's registry entry for a storefront account.
type UserRecord struct {
	ID        string    `json:"_id,omitempty"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Envelope is the backend's common response wrapper.
type Envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}
