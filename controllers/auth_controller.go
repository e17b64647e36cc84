package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awspkg "storefront-service/aws"
	"storefront-service/logger"
	"storefront-service/models"
	"storefront-service/sessions"
	"storefront-service/store"
)

// UserRegistrar records new accounts with the backend.
type UserRegistrar interface {
	AddUser(ctx context.Context, user models.UserRecord) error
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type federatedRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

type AuthController struct {
	users   UserRegistrar
	metrics *awspkg.MetricsClient
	now     func() time.Time
}

func NewAuthController(users UserRegistrar, metrics *awspkg.MetricsClient) *AuthController {
	return &AuthController{users: users, metrics: metrics, now: time.Now}
}

func (ac *AuthController) Session(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess.Auth.Snapshot()})
}

// SignUp creates the account and registers the user record. The browser
// stays signed out until it signs in.
func (ac *AuthController) SignUp(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email and a password of at least 6 characters are required"})
		return
	}

	ctx := c.Request.Context()
	res := sess.Auth.SignUp(ctx, req.Email, req.Password)
	if !res.OK() {
		ac.fail(c, res)
		return
	}

	if err := ac.users.AddUser(ctx, models.UserRecord{Email: res.Email, CreatedAt: ac.now().UTC()}); err != nil {
		logger.Warn(ctx, "user record not registered", zap.String("email", res.Email), zap.Error(err))
	}
	c.JSON(http.StatusCreated, gin.H{"result": res, "session": sess.Auth.Snapshot()})
}

func (ac *AuthController) SignIn(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	res := sess.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	ac.finish(c, sess, res)
}

func (ac *AuthController) SignInFederated(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req federatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idToken is required"})
		return
	}

	res := sess.Auth.SignInFederated(c.Request.Context(), req.IDToken)
	ac.finish(c, sess, res)
}

func (ac *AuthController) SignOut(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	res := sess.Auth.SignOut(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"result": res, "session": sess.Auth.Snapshot()})
}

func (ac *AuthController) finish(c *gin.Context, sess *sessions.Session, res store.AuthResult) {
	if !res.OK() {
		ac.fail(c, res)
		return
	}
	ac.metrics.RecordCountAsync(awspkg.MetricSignIns, map[string]string{"Operation": string(res.Operation)})
	c.JSON(http.StatusOK, gin.H{"result": res, "session": sess.Auth.Snapshot()})
}

func (ac *AuthController) fail(c *gin.Context, res store.AuthResult) {
	ac.metrics.RecordCountAsync(awspkg.MetricAuthFailures, map[string]string{"Operation": string(res.Operation)})
	writeError(c, res.Err)
}
