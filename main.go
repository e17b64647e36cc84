package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront-service/apperrors"
	awspkg "storefront-service/aws"
	"storefront-service/checkout"
	"storefront-service/clients"
	"storefront-service/config"
	"storefront-service/controllers"
	"storefront-service/identity"
	"storefront-service/logger"
	"storefront-service/middleware"
	"storefront-service/query"
	"storefront-service/routes"
	"storefront-service/sessions"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWSEndpoint)
	if err != nil {
		log.Fatalf("failed to load AWS config: %v", err)
	}

	// ── CloudWatch Logs + Metrics ──
	var logSink io.Writer
	if cfg.CloudWatchEnabled {
		cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, cfg.Service)
		if err != nil {
			log.Printf("CloudWatch Logs init failed: %v", err)
		} else {
			logSink = cwLogs
		}
	}
	logger.InitializeWithWriter(cfg.AppEnv, logSink)
	defer logger.Sync()

	metricsClient := awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)

	// Redis is optional; it backs the shared query tier and idempotency keys
	var (
		tier query.Tier
		idem checkout.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Log.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		tier = query.NewRedisTier(redisClient, cfg.QueryCacheTTL)
		idem = checkout.NewRedisIdempotency(redisClient, cfg.IdempotencyTTL)
		logger.Log.Info("connected to Redis")
	}

	stripeKey := cfg.StripeSecretKey
	if stripeKey == "" && cfg.StripeSecretName != "" {
		secret, err := awspkg.NewSecretsClient(awsCfg).GetSecretField(ctx, cfg.StripeSecretName, "secret_key")
		if err != nil {
			logger.Log.Warn("stripe secret unavailable, online payments are deferred", zap.Error(err))
		} else {
			stripeKey = secret
		}
	}

	var events *checkout.EventPublisher
	if cfg.OrderEventsTopicArn != "" {
		events = checkout.NewEventPublisher(awspkg.NewSNSClient(awsCfg), cfg.OrderEventsTopicArn)
	}

	backendGateway := clients.NewGatewayClient(cfg.BackendURL, cfg.RequestTimeout)
	queries := query.New(clients.NewBackendClient(backendGateway), query.NewCache(cfg.QueryCacheTTL, tier), metricsClient)

	if cfg.JWTSecret == "" {
		logger.Log.Warn("JWT_SECRET is not set, every sign-in will be rejected")
	}
	provider := identity.NewHTTPProvider(
		clients.NewGatewayClient(cfg.IdentityURL, cfg.RequestTimeout),
		identity.NewTokenVerifier(cfg.JWTSecret),
	)

	registry := sessions.NewRegistry(provider, cfg.SessionIdleTTL)
	go registry.Run(ctx)

	limiter := middleware.NewRateLimiter(cfg.AuthRatePerMinute, cfg.AuthRateBurst, 10*time.Minute)
	go limiter.Run(ctx.Done())

	submitter := checkout.NewSubmitter(queries, checkout.DefaultPayments(stripeKey, cfg.Currency), idem, events, metricsClient)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger.Log))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(metricsClient, cfg.Service))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterRoutes(r, routes.Controllers{
		Catalog:  controllers.NewCatalogController(queries),
		Cart:     controllers.NewCartController(queries, metricsClient),
		Auth:     controllers.NewAuthController(queries, metricsClient),
		Checkout: controllers.NewCheckoutController(submitter),
		Profile:  controllers.NewProfileController(queries),
	}, routes.Options{
		Sessions:     registry,
		CookieSecure: cfg.CookieSecure,
		SignInPath:   cfg.SignInPath,
		AuthLimiter:  limiter.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("storefront service listening", zap.String("addr", srv.Addr), zap.String("backend", backendGateway.BaseURL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("shutdown error", zap.Error(err))
	}
}
