package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-service/checkout"
)

const IdempotencyHeader = "Idempotency-Key"

// OrderSubmitter runs the order submission flow.
type OrderSubmitter interface {
	Submit(ctx context.Context, req checkout.Request) (*checkout.Confirmation, error)
}

type CheckoutController struct {
	submitter OrderSubmitter
}

func NewCheckoutController(submitter OrderSubmitter) *CheckoutController {
	return &CheckoutController{submitter: submitter}
}

func (cc *CheckoutController) Submit(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var form checkout.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid checkout form"})
		return
	}

	conf, err := cc.submitter.Submit(c.Request.Context(), checkout.Request{
		Form:           form,
		Cart:           sess.Cart,
		Session:        sess.Auth.Snapshot(),
		SessionID:      sess.ID,
		IdempotencyKey: c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if conf.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, conf)
}
