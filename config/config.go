package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the loaded configuration
type Config struct {
	Port    string
	AppEnv  string
	Service string

	BackendURL     string
	IdentityURL    string
	JWTSecret      string
	RequestTimeout time.Duration

	QueryCacheTTL  time.Duration
	SessionIdleTTL time.Duration
	RedisURL       string
	IdempotencyTTL time.Duration

	StripeSecretKey  string
	StripeSecretName string
	Currency         string

	AWSEndpoint         string
	OrderEventsTopicArn string
	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string

	SignInPath        string
	AuthRatePerMinute int
	AuthRateBurst     int
	CookieSecure      bool
	AllowedOrigins    []string
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Config{
		Port:    getEnv("PORT", "8000"),
		AppEnv:  getEnv("APP_ENV", "development"),
		Service: getEnv("SERVICE_NAME", "storefront-service"),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:5000"),
		IdentityURL:    getEnv("IDENTITY_URL", "http://localhost:8081"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),

		QueryCacheTTL:  getDuration("QUERY_CACHE_TTL", time.Minute),
		SessionIdleTTL: getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		RedisURL:       os.Getenv("REDIS_URL"),
		IdempotencyTTL: getDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		StripeSecretName: os.Getenv("STRIPE_SECRET_NAME"),
		Currency:         getEnv("CURRENCY", "usd"),

		AWSEndpoint:         os.Getenv("AWS_ENDPOINT"),
		OrderEventsTopicArn: os.Getenv("ORDER_EVENTS_TOPIC_ARN"),
		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Storefront"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/storefront/services"),

		SignInPath:        getEnv("SIGNIN_PATH", "/login"),
		AuthRatePerMinute: getInt("AUTH_RATE_PER_MINUTE", 30),
		AuthRateBurst:     getInt("AUTH_RATE_BURST", 10),
		CookieSecure:      os.Getenv("COOKIE_SECURE") == "true",
		AllowedOrigins:    getList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}
}

// IsProduction reports whether the service runs with production logging.
func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid duration for %s=%q, using %s", key, raw, defaultVal)
		return defaultVal
	}
	return d
}

func getInt(key string, defaultVal int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("invalid integer for %s=%q, using %d", key, raw, defaultVal)
		return defaultVal
	}
	return n
}

func getList(key string, defaultVal []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(strings.TrimSuffix(v, "/")); v != "" {
			out = append(out, v)
		}
	}
	return out
}
