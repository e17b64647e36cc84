package query

import (
	"context"
	"time"

	"go.uber.org/zap"

	awspkg "storefront-service/aws"
	"storefront-service/logger"
	"storefront-service/models"
)

// Cache tags.
const (
	TagProduct = "Product"
	TagOrder   = "Order"
	TagUser    = "User"
)

func productTag(id string) string { return "Product:" + id }
func commentTag(id string) string { return "Comment:" + id }

// MinSearchLength is the shortest term that triggers a search.
const MinSearchLength = 2

// Backend is the REST surface the query layer reads from and writes to.
type Backend interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (models.Product, error)
	SearchProducts(ctx context.Context, name string) ([]models.Product, error)
	GetComments(ctx context.Context, id string) (models.Comments, error)
	PostComment(ctx context.Context, id string, comment models.NewComment) error
	ListOrders(ctx context.Context) ([]models.Order, error)
	CreateOrder(ctx context.Context, order models.Order) (string, error)
	AddUser(ctx context.Context, user models.UserRecord) error
	GetUser(ctx context.Context, email string) (models.UserRecord, error)
}

// Queries is the cache-backed data access layer. Values in results are
// shared between callers and must be treated as read-only.
type Queries struct {
	backend Backend
	cache   *Cache
	metrics *awspkg.MetricsClient
}

// New builds the query layer. metrics may be nil.
func New(backend Backend, cache *Cache, metrics *awspkg.MetricsClient) *Queries {
	return &Queries{backend: backend, cache: cache, metrics: metrics}
}

func (q *Queries) ListProducts(ctx context.Context) Result[[]models.Product] {
	return read(ctx, q, "products", []string{TagProduct}, q.backend.ListProducts)
}

func (q *Queries) GetProduct(ctx context.Context, id string) Result[models.Product] {
	return read(ctx, q, "product:"+id, []string{TagProduct, productTag(id)}, func(ctx context.Context) (models.Product, error) {
		return q.backend.GetProduct(ctx, id)
	})
}

// SearchProducts is skipped without a network call while term is shorter
// than MinSearchLength characters.
func (q *Queries) SearchProducts(ctx context.Context, term string) Result[[]models.Product] {
	if len([]rune(term)) < MinSearchLength {
		return skipped[[]models.Product]()
	}
	return read(ctx, q, "search:"+term, []string{TagProduct}, func(ctx context.Context) ([]models.Product, error) {
		return q.backend.SearchProducts(ctx, term)
	})
}

func (q *Queries) GetComments(ctx context.Context, id string) Result[models.Comments] {
	return read(ctx, q, "comments:"+id, []string{commentTag(id)}, func(ctx context.Context) (models.Comments, error) {
		return q.backend.GetComments(ctx, id)
	})
}

// PostComment adds a comment and invalidates the product's comment list.
func (q *Queries) PostComment(ctx context.Context, id string, comment models.NewComment) error {
	if err := q.backend.PostComment(ctx, id, comment); err != nil {
		return err
	}
	q.cache.Invalidate(ctx, commentTag(id))
	return nil
}

func (q *Queries) ListOrders(ctx context.Context) Result[[]models.Order] {
	return read(ctx, q, "orders", []string{TagOrder}, q.backend.ListOrders)
}

// UserOrders lists the orders placed under email.
func (q *Queries) UserOrders(ctx context.Context, email string) Result[models.OrderSummary] {
	res := q.ListOrders(ctx)
	if !res.OK() {
		return Result[models.OrderSummary]{Status: res.Status, Err: res.Err}
	}
	return Result[models.OrderSummary]{Status: StatusSuccess, Data: models.SummarizeOrders(res.Data, email)}
}

// CreateOrder persists order and invalidates the order list.
func (q *Queries) CreateOrder(ctx context.Context, order models.Order) (string, error) {
	id, err := q.backend.CreateOrder(ctx, order)
	if err != nil {
		return "", err
	}
	q.cache.Invalidate(ctx, TagOrder)
	return id, nil
}

// AddUser registers a user record and invalidates cached users.
func (q *Queries) AddUser(ctx context.Context, user models.UserRecord) error {
	if err := q.backend.AddUser(ctx, user); err != nil {
		return err
	}
	q.cache.Invalidate(ctx, TagUser)
	return nil
}

func (q *Queries) GetUser(ctx context.Context, email string) Result[models.UserRecord] {
	return read(ctx, q, "user:"+email, []string{TagUser}, func(ctx context.Context) (models.UserRecord, error) {
		return q.backend.GetUser(ctx, email)
	})
}

func read[T any](ctx context.Context, q *Queries, key string, tags []string, fetch func(context.Context) (T, error)) Result[T] {
	timed := func(ctx context.Context) (T, error) {
		start := time.Now()
		v, err := fetch(ctx)
		q.metrics.RecordLatencyAsync(awspkg.MetricBackendLatency, time.Since(start), map[string]string{"Tag": tags[0]})
		return v, err
	}
	v, hit, err := load(ctx, q.cache, key, tags, timed)
	if hit {
		q.metrics.RecordCountAsync(awspkg.MetricCacheHits, map[string]string{"Tag": tags[0]})
	} else {
		q.metrics.RecordCountAsync(awspkg.MetricCacheMisses, map[string]string{"Tag": tags[0]})
	}
	res := resultOf(v, err)
	if res.Status == StatusError {
		logger.Warn(ctx, "query failed", zap.String("key", key), zap.Error(err))
	}
	return res
}
