package models

import "math"

// Product is the backend's catalogue item. Quantity is only meaningful for
// entries held in a cart.
type Product struct {
	ID       string   `json:"_id"`
	Name     string   `json:"name"`
	Image    string   `json:"image,omitempty"`
	Price    float64  `json:"price"`
	Rating   float64  `json:"rating,omitempty"`
	Features []string `json:"features,omitempty"`
	Status   *bool    `json:"status,omitempty"`
	Quantity int      `json:"quantity,omitempty"`
}

// InStock reports the product's availability flag. A product without a
// status is treated as available; only an explicit false blocks it.
func (p Product) InStock() bool {
	return p.Status == nil || *p.Status
}

// Clone returns a copy that shares no slices or pointers with p.
func (p Product) Clone() Product {
	if p.Features != nil {
		p.Features = append([]string(nil), p.Features...)
	}
	if p.Status != nil {
		p.Status = Availability(*p.Status)
	}
	return p
}

// Availability returns a status pointer for v.
func Availability(v bool) *bool {
	return &v
}

// Comments is the comment thread attached to a product.
type Comments struct {
	ProductID string   `json:"_id,omitempty"`
	Comments  []string `json:"comments"`
}

// NewComment is the body accepted by POST /comment/{id}.
type NewComment struct {
	Comment string `json:"comment" binding:"required"`
}

// ToCents converts a price to integer minor units.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts integer minor units back to a price.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}
