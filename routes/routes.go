package routes

import (
	"github.com/gin-gonic/gin"

	"storefront-service/controllers"
	"storefront-service/guard"
	"storefront-service/sessions"
)

// Controllers groups the handlers the router needs.
type Controllers struct {
	Catalog  *controllers.CatalogController
	Cart     *controllers.CartController
	Auth     *controllers.AuthController
	Checkout *controllers.CheckoutController
	Profile  *controllers.ProfileController
}

// Options carries the per-route middleware settings.
type Options struct {
	Sessions     *sessions.Registry
	CookieSecure bool
	SignInPath   string
	AuthLimiter  gin.HandlerFunc
}

func RegisterRoutes(r *gin.Engine, ctrl Controllers, opts Options) {
	r.GET("/health", controllers.Health)

	api := r.Group("/api")
	{
		api.GET("/products", ctrl.Catalog.ListProducts)
		api.GET("/products/:id", ctrl.Catalog.GetProduct)
		api.GET("/search", ctrl.Catalog.Search)
		api.GET("/products/:id/comments", ctrl.Catalog.GetComments)
		api.POST("/products/:id/comments", ctrl.Catalog.PostComment)
	}

	// Everything below needs the browser's session
	session := api.Group("")
	session.Use(sessions.Middleware(opts.Sessions, opts.CookieSecure))
	{
		session.GET("/cart", ctrl.Cart.Get)
		session.POST("/cart/items", ctrl.Cart.Add)
		session.POST("/cart/items/:id/decrement", ctrl.Cart.Decrement)
		session.DELETE("/cart/items/:id", ctrl.Cart.Remove)
		session.GET("/cart/events", ctrl.Cart.Events)

		session.GET("/auth/session", ctrl.Auth.Session)
		session.POST("/auth/signout", ctrl.Auth.SignOut)
	}

	auth := session.Group("/auth")
	if opts.AuthLimiter != nil {
		auth.Use(opts.AuthLimiter)
	}
	{
		auth.POST("/signup", ctrl.Auth.SignUp)
		auth.POST("/signin", ctrl.Auth.SignIn)
		auth.POST("/federated", ctrl.Auth.SignInFederated)
	}

	protected := session.Group("")
	protected.Use(guard.Middleware(opts.SignInPath, sessions.AuthState))
	{
		protected.POST("/checkout", ctrl.Checkout.Submit)
		protected.GET("/profile", ctrl.Profile.Orders)
		protected.GET("/profile/user", ctrl.Profile.User)
	}
}
