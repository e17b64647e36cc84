package controllers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awspkg "storefront-service/aws"
	"storefront-service/logger"
	"storefront-service/models"
	"storefront-service/query"
	"storefront-service/store"
)

// ProductLookup resolves a product id to the current catalogue entry.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) query.Result[models.Product]
}

type addItemRequest struct {
	ID string `json:"_id" binding:"required"`
}

type CartController struct {
	products  ProductLookup
	metrics   *awspkg.MetricsClient
	keepAlive time.Duration
}

func NewCartController(products ProductLookup, metrics *awspkg.MetricsClient) *CartController {
	return &CartController{products: products, metrics: metrics, keepAlive: 15 * time.Second}
}

func (cc *CartController) Get(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Cart.Snapshot())
}

// Add looks the product up so price and stock come from the catalogue, not
// from the client.
func (cc *CartController) Add(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product _id is required"})
		return
	}

	res := cc.products.GetProduct(c.Request.Context(), req.ID)
	switch res.Status {
	case query.StatusNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	case query.StatusError:
		writeError(c, res.Err)
		return
	}

	if err := sess.Cart.AddToCart(res.Data); err != nil {
		writeError(c, err)
		return
	}
	cc.metrics.RecordCountAsync(awspkg.MetricCartAdds, nil)
	c.JSON(http.StatusOK, sess.Cart.Snapshot())
}

// Decrement removes one unit. Unknown ids leave the cart as it is.
func (cc *CartController) Decrement(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	sess.Cart.RemoveOne(models.Product{ID: c.Param("id")})
	c.JSON(http.StatusOK, sess.Cart.Snapshot())
}

// Remove drops the whole entry.
func (cc *CartController) Remove(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	sess.Cart.RemoveFromCart(models.Product{ID: c.Param("id")})
	c.JSON(http.StatusOK, sess.Cart.Snapshot())
}

// Events streams cart snapshots as server-sent events until the client
// goes away. Intermediate snapshots may be coalesced; the latest is always
// delivered.
func (cc *CartController) Events(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	updates := make(chan store.CartState, 1)
	unsubscribe := sess.Cart.Subscribe(func(s store.CartState) {
		select {
		case updates <- s:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(cc.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("cart", sess.Cart.Snapshot())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case s := <-updates:
			c.SSEvent("cart", s)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
	logger.Debug(ctx, "cart event stream closed", zap.String("session", sess.ID))
}
