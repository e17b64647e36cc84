package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-service/apperrors"
	"storefront-service/checkout"
	"storefront-service/clients"
	"storefront-service/identity"
	"storefront-service/query"
	"storefront-service/sessions"
	"storefront-service/store"
)

func writeResult[T any](c *gin.Context, res query.Result[T]) {
	status := http.StatusOK
	switch res.Status {
	case query.StatusNotFound:
		status = http.StatusNotFound
	case query.StatusError:
		status = http.StatusBadGateway
	}
	c.JSON(status, res.View())
}

// writeError maps an error from any layer to a JSON response.
func writeError(c *gin.Context, err error) {
	var (
		verr    *checkout.ValidationError
		apiErr  *clients.APIError
		provErr *identity.ProviderError
		appErr  *apperrors.Error
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": apperrors.ErrValidation.Message, "fields": verr.Fields})
	case errors.As(err, &appErr):
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
	case errors.Is(err, store.ErrSessionReset):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, clients.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": apperrors.ErrNotFound.Message})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": apiErr.Message})
	case errors.As(err, &provErr):
		status := provErr.StatusCode
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": provErr.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": apperrors.ErrBadGateway.Message})
	}
	_ = c.Error(err)
}

func currentSession(c *gin.Context) (*sessions.Session, bool) {
	s, ok := sessions.FromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return nil, false
	}
	return s, true
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
