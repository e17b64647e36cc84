package controllers

import (
	"context"

	"github.com/gin-gonic/gin"

	"storefront-service/guard"
	"storefront-service/models"
	"storefront-service/query"
)

// Accounts reads the signed-in user's data.
type Accounts interface {
	UserOrders(ctx context.Context, email string) query.Result[models.OrderSummary]
	GetUser(ctx context.Context, email string) query.Result[models.UserRecord]
}

// ProfileController serves guarded routes only; the email comes from the
// route guard.
type ProfileController struct {
	accounts Accounts
}

func NewProfileController(accounts Accounts) *ProfileController {
	return &ProfileController{accounts: accounts}
}

func (pc *ProfileController) Orders(c *gin.Context) {
	writeResult(c, pc.accounts.UserOrders(c.Request.Context(), guard.UserEmail(c)))
}

func (pc *ProfileController) User(c *gin.Context) {
	writeResult(c, pc.accounts.GetUser(c.Request.Context(), guard.UserEmail(c)))
}
