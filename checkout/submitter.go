package checkout

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront-service/apperrors"
	awspkg "storefront-service/aws"
	"storefront-service/logger"
	"storefront-service/models"
	"storefront-service/store"
)

// ConfirmationPath is where the UI navigates after a successful order.
const ConfirmationPath = "/order-confirmation"

// OrderCreator persists orders.
type OrderCreator interface {
	CreateOrder(ctx context.Context, order models.Order) (string, error)
}

// Cart is the part of the cart store the submission flow needs.
type Cart interface {
	Snapshot() store.CartState
	Clear()
}

// Request is one checkout attempt. SessionID scopes the idempotency key
// for visitors who are not signed in.
type Request struct {
	Form           Form
	Cart           Cart
	Session        store.SessionState
	SessionID      string
	IdempotencyKey string
}

// Confirmation is returned for a created (or replayed) order.
type Confirmation struct {
	OrderID  string        `json:"orderId"`
	Redirect string        `json:"redirect"`
	Order    *models.Order `json:"order,omitempty"`
	Replayed bool          `json:"replayed,omitempty"`
}

type Submitter struct {
	orders    OrderCreator
	validator *FormValidator
	payments  Payments
	idem      IdempotencyStore
	events    *EventPublisher
	metrics   *awspkg.MetricsClient
	now       func() time.Time
}

// NewSubmitter wires the submission flow. idem, events and metrics may be
// nil.
func NewSubmitter(orders OrderCreator, payments Payments, idem IdempotencyStore, events *EventPublisher, metrics *awspkg.MetricsClient) *Submitter {
	return &Submitter{
		orders:    orders,
		validator: NewFormValidator(),
		payments:  payments,
		idem:      idem,
		events:    events,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Submit validates the form, builds the order from the cart, authorizes
// payment and persists it. The cart is cleared only after the order was
// created; on any failure cart and form are left untouched.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Confirmation, error) {
	form := req.Form
	if req.Session.SignedIn() {
		form.Email = req.Session.Email()
	}
	if err := s.validator.Validate(form); err != nil {
		return nil, err
	}

	key := scopedKey(req)
	held := false
	if key != "" && s.idem != nil {
		claim, err := s.idem.Reserve(ctx, key)
		switch {
		case err != nil:
			logger.Warn(ctx, "idempotency reservation failed", zap.Error(err))
		case claim.OrderID != "":
			return &Confirmation{OrderID: claim.OrderID, Redirect: ConfirmationPath, Replayed: true}, nil
		case claim.Pending:
			return nil, apperrors.ErrCheckoutInFlight
		default:
			held = true
		}
	}
	completed := false
	if held {
		defer func() {
			if !completed {
				s.release(ctx, key)
			}
		}()
	}

	cart := req.Cart.Snapshot()
	if len(cart.Products) == 0 {
		return nil, apperrors.ErrEmptyCart
	}
	order := BuildOrder(form, cart, s.now())

	auth, err := s.payments.For(order.PaymentMethod).Authorize(ctx, order, key)
	if err != nil {
		s.metrics.RecordCountAsync(awspkg.MetricPaymentFailed, map[string]string{"Method": string(order.PaymentMethod)})
		logger.Warn(ctx, "payment authorization failed", zap.String("user_email", order.UserEmail), zap.Error(err))
		return nil, apperrors.ErrPaymentFailed.Wrap(err)
	}
	order.PaymentReference = auth.Reference
	if auth.Reference != "" && order.PaymentMethod == models.PaymentOnline {
		s.metrics.RecordCountAsync(awspkg.MetricPaymentSucceeded, nil)
	}

	orderID, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		s.metrics.RecordCountAsync(awspkg.MetricOrdersFailed, nil)
		logger.Error(ctx, "order creation failed", err, zap.String("user_email", order.UserEmail))
		return nil, err
	}
	order.ID = orderID
	completed = true

	if held {
		if err := s.idem.Complete(context.WithoutCancel(ctx), key, orderID); err != nil {
			logger.Warn(ctx, "failed to store idempotency key", zap.Error(err))
		}
	}

	req.Cart.Clear()
	s.events.OrderCreated(ctx, orderID, order)
	s.metrics.RecordCountAsync(awspkg.MetricOrdersCreated, map[string]string{"PaymentMethod": string(order.PaymentMethod)})
	logger.Info(ctx, "order created",
		zap.String("order_id", orderID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Float64("total", order.Total),
	)

	return &Confirmation{OrderID: orderID, Redirect: ConfirmationPath, Order: &order}, nil
}

func (s *Submitter) release(ctx context.Context, key string) {
	if err := s.idem.Release(context.WithoutCancel(ctx), key); err != nil {
		logger.Warn(ctx, "failed to release idempotency key", zap.Error(err))
	}
}

// scopedKey namespaces the client's Idempotency-Key by the signed-in email,
// or by the session when nobody is signed in, so a key reused elsewhere
// never replays someone else's order.
func scopedKey(req Request) string {
	if req.IdempotencyKey == "" {
		return ""
	}
	scope := req.SessionID
	if req.Session.SignedIn() {
		scope = "user:" + req.Session.Email()
	} else if scope != "" {
		scope = "session:" + scope
	}
	if scope == "" {
		return ""
	}
	return scope + ":" + req.IdempotencyKey
}

// BuildOrder snapshots the cart into an order. Note and delivery date are
// only kept for scheduled deliveries.
func BuildOrder(form Form, cart store.CartState, now time.Time) models.Order {
	items := make([]models.OrderItem, 0, len(cart.Products))
	var subtotal int64
	for _, p := range cart.Products {
		items = append(items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  p.Quantity,
		})
		subtotal += models.ToCents(p.Price) * int64(p.Quantity)
	}
	fee := models.ToCents(models.DeliveryFee)

	order := models.Order{
		UserEmail:     form.Email,
		Name:          form.Name,
		Phone:         form.Phone,
		City:          form.City,
		Address:       form.Address,
		PaymentMethod: form.PaymentMethod,
		Products:      items,
		Subtotal:      models.FromCents(subtotal),
		DeliveryFee:   models.FromCents(fee),
		Total:         models.FromCents(subtotal + fee),
		Status:        models.StatusFor(form.PaymentMethod),
		CreatedAt:     now.UTC(),
	}
	if form.Scheduled {
		order.Note = form.Note
		if form.DeliveryDate != nil {
			d := form.DeliveryDate.UTC()
			order.DeliveryDate = &d
		}
	}
	return order
}
