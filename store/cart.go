package store

import (
	"sync"

	"storefront-service/apperrors"
	"storefront-service/models"
)

// CartState is an immutable snapshot of the cart.
type CartState struct {
	Products []models.Product `json:"products"`
	Total    float64          `json:"total"`
	Count    int              `json:"count"`
}

type cartEntry struct {
	product   models.Product
	unitCents int64
	quantity  int
}

// Cart is the client-side list of products selected for purchase. Entries
// keep insertion order; the running total is maintained in cents on every
// mutation and always equals the sum of price x quantity.
type Cart struct {
	mu         sync.Mutex
	dispatchMu sync.Mutex
	entries    []*cartEntry
	totalCents int64
	listeners  subject[CartState]
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// AddToCart adds one unit of p. Out-of-stock products are rejected and the
// cart is left unchanged.
func (c *Cart) AddToCart(p models.Product) error {
	if !p.InStock() {
		return apperrors.ErrOutOfStock
	}

	c.mu.Lock()
	if e := c.find(p.ID); e != nil {
		e.quantity++
		c.totalCents += e.unitCents
	} else {
		unit := models.ToCents(p.Price)
		c.entries = append(c.entries, &cartEntry{product: p.Clone(), unitCents: unit, quantity: 1})
		c.totalCents += unit
	}
	c.commit()
	return nil
}

// RemoveOne removes a single unit of p, dropping the entry when it was the
// last one. It reports whether anything changed.
func (c *Cart) RemoveOne(p models.Product) bool {
	c.mu.Lock()
	idx := c.index(p.ID)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}

	e := c.entries[idx]
	if e.quantity > 1 {
		e.quantity--
	} else {
		c.drop(idx)
	}
	c.totalCents -= e.unitCents
	c.commit()
	return true
}

// RemoveFromCart drops the entry for p whatever its quantity. It reports
// whether anything changed.
func (c *Cart) RemoveFromCart(p models.Product) bool {
	c.mu.Lock()
	idx := c.index(p.ID)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}

	e := c.entries[idx]
	c.drop(idx)
	c.totalCents -= e.unitCents * int64(e.quantity)
	c.commit()
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	c.entries = nil
	c.totalCents = 0
	c.commit()
}

// Snapshot returns a copy of the current state.
func (c *Cart) Snapshot() CartState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// TotalCents returns the running total in minor units.
func (c *Cart) TotalCents() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalCents
}

// Subscribe registers l for state changes. Listeners run synchronously after
// each mutation and must not mutate the cart themselves.
func (c *Cart) Subscribe(l Listener[CartState]) (unsubscribe func()) {
	return c.listeners.subscribe(l)
}

// Subscribers returns the number of registered listeners.
func (c *Cart) Subscribers() int {
	return c.listeners.count()
}

// commit must be called with c.mu held; it releases it and notifies
// listeners in mutation order.
func (c *Cart) commit() {
	state := c.snapshot()
	c.dispatchMu.Lock()
	c.mu.Unlock()
	defer c.dispatchMu.Unlock()
	c.listeners.notify(state)
}

func (c *Cart) snapshot() CartState {
	state := CartState{
		Products: make([]models.Product, 0, len(c.entries)),
		Total:    models.FromCents(c.totalCents),
	}
	for _, e := range c.entries {
		p := e.product.Clone()
		p.Quantity = e.quantity
		state.Products = append(state.Products, p)
		state.Count += e.quantity
	}
	return state
}

func (c *Cart) index(id string) int {
	for i, e := range c.entries {
		if e.product.ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) find(id string) *cartEntry {
	if i := c.index(id); i >= 0 {
		return c.entries[i]
	}
	return nil
}

func (c *Cart) drop(idx int) {
	c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
}
