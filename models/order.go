package models

import "time"

type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online"
	PaymentCash   PaymentMethod = "cash"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
)

// StatusFor returns the initial order status for a payment method.
func StatusFor(method PaymentMethod) OrderStatus {
	if method == PaymentCash {
		return OrderPending
	}
	return OrderProcessing
}

// DeliveryFee is the flat fee added to every order.
const DeliveryFee = 4.50

// OrderItem is a product as it was priced at checkout.
type OrderItem struct {
	ProductID string  `json:"_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Order is the snapshot sent to POST /order. It is immutable once created.
type Order struct {
	ID               string        `json:"_id,omitempty"`
	UserEmail        string        `json:"userEmail"`
	Name             string        `json:"name"`
	Phone            string        `json:"phone"`
	City             string        `json:"city"`
	Address          string        `json:"address"`
	Note             string        `json:"note,omitempty"`
	DeliveryDate     *time.Time    `json:"deliveryDate,omitempty"`
	PaymentMethod    PaymentMethod `json:"paymentMethod"`
	PaymentReference string        `json:"paymentReference,omitempty"`
	Products         []OrderItem   `json:"products"`
	Subtotal         float64       `json:"subtotal"`
	DeliveryFee      float64       `json:"deliveryFee"`
	Total            float64       `json:"total"`
	Status           OrderStatus   `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// CreatedOrder is the data part of the POST /order response.
type CreatedOrder struct {
	InsertedID string `json:"insertedId"`
}

// OrderSummary is the signed-in user's order history view.
type OrderSummary struct {
	Orders     []Order `json:"orders"`
	Count      int     `json:"count"`
	TotalSpent float64 `json:"totalSpent"`
}

// SummarizeOrders keeps the orders placed under email and totals them.
func SummarizeOrders(orders []Order, email string) OrderSummary {
	summary := OrderSummary{Orders: []Order{}}
	if email == "" {
		return summary
	}
	var spent int64
	for _, o := range orders {
		if o.UserEmail != email {
			continue
		}
		summary.Orders = append(summary.Orders, o)
		spent += ToCents(o.Total)
	}
	summary.Count = len(summary.Orders)
	summary.TotalSpent = FromCents(spent)
	return summary
}
