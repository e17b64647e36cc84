package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-service/apperrors"
	"storefront-service/clients"
	"storefront-service/models"
	"storefront-service/store"
)

type MockOrderCreator struct{ mock.Mock }

func (m *MockOrderCreator) CreateOrder(ctx context.Context, order models.Order) (string, error) {
	args := m.Called(ctx, order)
	return args.String(0), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(ctx context.Context, topicArn string, message []byte, attributes map[string]string) error {
	args := m.Called(ctx, topicArn, message, attributes)
	return args.Error(0)
}

type failingAuthorizer struct{}

func (failingAuthorizer) Authorize(ctx context.Context, order models.Order, key string) (Authorization, error) {
	return Authorization{}, errors.New("card declined")
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: map[string]string{}}
}

func (m *memoryIdempotency) Reserve(ctx context.Context, key string) (Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch val, ok := m.keys[key]; {
	case !ok:
		m.keys[key] = pendingMarker
		return Claim{}, nil
	case val == pendingMarker:
		return Claim{Pending: true}, nil
	default:
		return Claim{OrderID: val}, nil
	}
}

func (m *memoryIdempotency) Complete(ctx context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = orderID
	return nil
}

func (m *memoryIdempotency) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] == pendingMarker {
		delete(m.keys, key)
	}
	return nil
}

// gatedOrderCreator blocks every CreateOrder until gate is closed.
type gatedOrderCreator struct {
	started chan struct{}
	gate    chan struct{}
	mu      sync.Mutex
	calls   int
}

func (g *gatedOrderCreator) CreateOrder(ctx context.Context, order models.Order) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	g.started <- struct{}{}
	<-g.gate
	return fmt.Sprintf("order-%d", n), nil
}

func filledCart(t *testing.T) *store.Cart {
	t.Helper()
	c := store.NewCart()
	require.NoError(t, c.AddToCart(models.Product{ID: "a", Name: "Mouse", Price: 10, Status: models.Availability(true)}))
	require.NoError(t, c.AddToCart(models.Product{ID: "a", Name: "Mouse", Price: 10, Status: models.Availability(true)}))
	require.NoError(t, c.AddToCart(models.Product{ID: "b", Name: "Pad", Price: 2.25, Status: models.Availability(true)}))
	return c
}

func newTestSubmitter(orders OrderCreator) *Submitter {
	s := NewSubmitter(orders, DefaultPayments("", "usd"), nil, nil, nil)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestCashOrderIsPending(t *testing.T) {
	orders := new(MockOrderCreator)
	orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o models.Order) bool {
		return o.Status == models.OrderPending &&
			o.Subtotal == 22.25 &&
			o.DeliveryFee == 4.5 &&
			o.Total == 26.75 &&
			len(o.Products) == 2 &&
			o.Products[0].Quantity == 2 &&
			o.Note == "" && o.DeliveryDate == nil
	})).Return("ord-1", nil).Once()

	cart := filledCart(t)
	form := validForm()
	form.Note = "ignored when not scheduled"

	conf, err := newTestSubmitter(orders).Submit(context.Background(), Request{Form: form, Cart: cart})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", conf.OrderID)
	assert.Equal(t, ConfirmationPath, conf.Redirect)
	assert.Empty(t, cart.Snapshot().Products)
	orders.AssertExpectations(t)
}

func TestOnlineOrderIsProcessing(t *testing.T) {
	orders := new(MockOrderCreator)
	orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o models.Order) bool {
		return o.Status == models.OrderProcessing && o.PaymentReference == "deferred"
	})).Return("ord-2", nil).Once()

	form := validForm()
	form.PaymentMethod = models.PaymentOnline

	conf, err := newTestSubmitter(orders).Submit(context.Background(), Request{Form: form, Cart: filledCart(t)})
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, conf.Order.Status)
}

func TestScheduledOrderKeepsNoteAndDate(t *testing.T) {
	day := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	orders := new(MockOrderCreator)
	orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o models.Order) bool {
		return o.Note == "after 5pm" && o.DeliveryDate != nil && o.DeliveryDate.Equal(day)
	})).Return("ord-3", nil).Once()

	form := validForm()
	form.Scheduled = true
	form.Note = "after 5pm"
	form.DeliveryDate = &day

	_, err := newTestSubmitter(orders).Submit(context.Background(), Request{Form: form, Cart: filledCart(t)})
	require.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestInvalidFormNeverReachesBackend(t *testing.T) {
	orders := new(MockOrderCreator)
	cart := filledCart(t)
	form := validForm()
	form.Phone = "abc"

	_, err := newTestSubmitter(orders).Submit(context.Background(), Request{Form: form, Cart: cart})
	assert.True(t, IsValidationError(err))
	orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	assert.Equal(t, 3, cart.Snapshot().Count)
}

func TestEmptyCartRejected(t *testing.T) {
	orders := new(MockOrderCreator)
	_, err := newTestSubmitter(orders).Submit(context.Background(), Request{Form: validForm(), Cart: store.NewCart()})
	assert.ErrorIs(t, err, apperrors.ErrEmptyCart)
	orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestSignedInUserOrdersUnderSessionEmail(t *testing.T) {
	orders := new(MockOrderCreator)
	orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o models.Order) bool {
		return o.UserEmail == "session@example.com"
	})).Return("ord-4", nil).Once()

	email := "session@example.com"
	session := store.SessionState{User: store.SessionUser{Email: &email}}
	form := validForm()
	form.Email = "typed@example.com"

	_, err := newTestSubmitter(orders).Submit(context.Background(), Request{Form: form, Cart: filledCart(t), Session: session})
	require.NoError(t, err)
	orders.AssertExpectations(t)
}

func TestBackendFailureLeavesCart(t *testing.T) {
	orders := new(MockOrderCreator)
	orders.On("CreateOrder", mock.Anything, mock.Anything).
		Return("", &clients.APIError{StatusCode: 500, Message: "database unavailable"}).Once()

	cart := filledCart(t)
	before := cart.Snapshot()

	_, err := newTestSubmitter(orders).Submit(context.Background(), Request{Form: validForm(), Cart: cart})
	require.Error(t, err)
	assert.Equal(t, "database unavailable", err.Error())
	assert.Equal(t, before, cart.Snapshot())
}

func TestPaymentFailureAbortsSubmission(t *testing.T) {
	orders := new(MockOrderCreator)
	s := newTestSubmitter(orders)
	s.payments.Online = failingAuthorizer{}

	form := validForm()
	form.PaymentMethod = models.PaymentOnline
	cart := filledCart(t)

	_, err := s.Submit(context.Background(), Request{Form: form, Cart: cart})
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
	orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	assert.Equal(t, 3, cart.Snapshot().Count)
}

func TestIdempotentReplay(t *testing.T) {
	orders := new(MockOrderCreator)
	orders.On("CreateOrder", mock.Anything, mock.Anything).Return("ord-5", nil).Once()

	s := newTestSubmitter(orders)
	s.idem = newMemoryIdempotency()
	cart := filledCart(t)

	first, err := s.Submit(context.Background(), Request{Form: validForm(), Cart: cart, SessionID: "s1", IdempotencyKey: "k1"})
	require.NoError(t, err)

	second, err := s.Submit(context.Background(), Request{Form: validForm(), Cart: cart, SessionID: "s1", IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.True(t, second.Replayed)
	orders.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestConcurrentSubmitWithSameKeyCreatesOneOrder(t *testing.T) {
	orders := &gatedOrderCreator{started: make(chan struct{}, 1), gate: make(chan struct{})}
	s := newTestSubmitter(orders)
	s.idem = newMemoryIdempotency()
	req := Request{Form: validForm(), Cart: filledCart(t), SessionID: "s1", IdempotencyKey: "same"}

	type outcome struct {
		conf *Confirmation
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		conf, err := s.Submit(context.Background(), req)
		done <- outcome{conf, err}
	}()
	<-orders.started

	_, err := s.Submit(context.Background(), Request{Form: validForm(), Cart: filledCart(t), SessionID: "s1", IdempotencyKey: "same"})
	assert.ErrorIs(t, err, apperrors.ErrCheckoutInFlight)

	close(orders.gate)
	var first outcome
	select {
	case first = <-done:
	case <-time.After(time.Second):
		t.Fatal("submission did not finish")
	}
	require.NoError(t, first.err)
	assert.Equal(t, "order-1", first.conf.OrderID)

	again, err := s.Submit(context.Background(), Request{Form: validForm(), Cart: filledCart(t), SessionID: "s1", IdempotencyKey: "same"})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, "order-1", again.OrderID)
	assert.Equal(t, 1, orders.calls)
}

func TestFailedSubmitReleasesKey(t *testing.T) {
	t.Run("backend failure", func(t *testing.T) {
		orders := new(MockOrderCreator)
		orders.On("CreateOrder", mock.Anything, mock.Anything).
			Return("", &clients.APIError{StatusCode: 500, Message: "database unavailable"}).Once()
		orders.On("CreateOrder", mock.Anything, mock.Anything).Return("ord-8", nil).Once()

		idem := newMemoryIdempotency()
		s := newTestSubmitter(orders)
		s.idem = idem
		req := Request{Form: validForm(), Cart: filledCart(t), SessionID: "s1", IdempotencyKey: "retry"}

		_, err := s.Submit(context.Background(), req)
		require.Error(t, err)
		assert.Empty(t, idem.keys)

		conf, err := s.Submit(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "ord-8", conf.OrderID)
		assert.False(t, conf.Replayed)
	})

	t.Run("payment failure", func(t *testing.T) {
		idem := newMemoryIdempotency()
		s := newTestSubmitter(new(MockOrderCreator))
		s.payments.Online = failingAuthorizer{}
		s.idem = idem

		form := validForm()
		form.PaymentMethod = models.PaymentOnline
		_, err := s.Submit(context.Background(), Request{Form: form, Cart: filledCart(t), SessionID: "s1", IdempotencyKey: "declined"})
		assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
		assert.Empty(t, idem.keys)
	})

	t.Run("empty cart", func(t *testing.T) {
		idem := newMemoryIdempotency()
		s := newTestSubmitter(new(MockOrderCreator))
		s.idem = idem

		_, err := s.Submit(context.Background(), Request{Form: validForm(), Cart: store.NewCart(), SessionID: "s1", IdempotencyKey: "empty"})
		assert.ErrorIs(t, err, apperrors.ErrEmptyCart)
		assert.Empty(t, idem.keys)
	})
}

func TestIdempotencyKeysAreScoped(t *testing.T) {
	orders := new(MockOrderCreator)
	orders.On("CreateOrder", mock.Anything, mock.Anything).Return("ord-a", nil).Once()
	orders.On("CreateOrder", mock.Anything, mock.Anything).Return("ord-b", nil).Once()
	orders.On("CreateOrder", mock.Anything, mock.Anything).Return("ord-c", nil).Once()

	s := newTestSubmitter(orders)
	s.idem = newMemoryIdempotency()

	first, err := s.Submit(context.Background(), Request{Form: validForm(), Cart: filledCart(t), SessionID: "browser-1", IdempotencyKey: "k"})
	require.NoError(t, err)
	other, err := s.Submit(context.Background(), Request{Form: validForm(), Cart: filledCart(t), SessionID: "browser-2", IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, other.OrderID)
	assert.False(t, other.Replayed)

	email := "a@b.co"
	signedIn := store.SessionState{User: store.SessionUser{Email: &email}}
	user, err := s.Submit(context.Background(), Request{Form: validForm(), Cart: filledCart(t), Session: signedIn, SessionID: "browser-1", IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "ord-c", user.OrderID)
	orders.AssertNumberOfCalls(t, "CreateOrder", 3)
}

func TestScopedKey(t *testing.T) {
	email := "a@b.co"
	signedIn := store.SessionState{User: store.SessionUser{Email: &email}}

	assert.Equal(t, "", scopedKey(Request{SessionID: "s1"}))
	assert.Equal(t, "", scopedKey(Request{IdempotencyKey: "k"}))
	assert.Equal(t, "session:s1:k", scopedKey(Request{SessionID: "s1", IdempotencyKey: "k"}))
	assert.Equal(t, "user:a@b.co:k", scopedKey(Request{Session: signedIn, SessionID: "s1", IdempotencyKey: "k"}))
}

func TestOrderCreatedEventPublished(t *testing.T) {
	orders := new(MockOrderCreator)
	orders.On("CreateOrder", mock.Anything, mock.Anything).Return("ord-6", nil).Once()
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "arn:orders", mock.Anything, map[string]string{"event_type": EventOrderCreated}).Return(nil).Once()

	s := newTestSubmitter(orders)
	s.events = NewEventPublisher(pub, "arn:orders")

	_, err := s.Submit(context.Background(), Request{Form: validForm(), Cart: filledCart(t)})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestEventPublisherFailureIsIgnored(t *testing.T) {
	orders := new(MockOrderCreator)
	orders.On("CreateOrder", mock.Anything, mock.Anything).Return("ord-7", nil).Once()
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("sns down"))

	s := newTestSubmitter(orders)
	s.events = NewEventPublisher(pub, "arn:orders")

	conf, err := s.Submit(context.Background(), Request{Form: validForm(), Cart: filledCart(t)})
	require.NoError(t, err)
	assert.Equal(t, "ord-7", conf.OrderID)
}

func TestNoPublisherWithoutTopic(t *testing.T) {
	assert.Nil(t, NewEventPublisher(new(MockPublisher), ""))
}
