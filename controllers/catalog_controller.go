package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-service/models"
	"storefront-service/query"
)

// Catalog is the product side of the query layer.
type Catalog interface {
	ListProducts(ctx context.Context) query.Result[[]models.Product]
	GetProduct(ctx context.Context, id string) query.Result[models.Product]
	SearchProducts(ctx context.Context, term string) query.Result[[]models.Product]
	GetComments(ctx context.Context, id string) query.Result[models.Comments]
	PostComment(ctx context.Context, id string, comment models.NewComment) error
}

type CatalogController struct {
	catalog Catalog
}

func NewCatalogController(catalog Catalog) *CatalogController {
	return &CatalogController{catalog: catalog}
}

func (cc *CatalogController) ListProducts(c *gin.Context) {
	writeResult(c, cc.catalog.ListProducts(c.Request.Context()))
}

func (cc *CatalogController) GetProduct(c *gin.Context) {
	writeResult(c, cc.catalog.GetProduct(c.Request.Context(), c.Param("id")))
}

// Search reads the term from ?name=.
func (cc *CatalogController) Search(c *gin.Context) {
	writeResult(c, cc.catalog.SearchProducts(c.Request.Context(), c.Query("name")))
}

func (cc *CatalogController) GetComments(c *gin.Context) {
	writeResult(c, cc.catalog.GetComments(c.Request.Context(), c.Param("id")))
}

func (cc *CatalogController) PostComment(c *gin.Context) {
	var body models.NewComment
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment is required"})
		return
	}

	id := c.Param("id")
	if err := cc.catalog.PostComment(c.Request.Context(), id, body); err != nil {
		writeError(c, err)
		return
	}
	writeResult(c, cc.catalog.GetComments(c.Request.Context(), id))
}
