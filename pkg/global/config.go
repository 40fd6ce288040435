package global

import (
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port string
	Env  string

	BackendURL     string
	BackendTimeout time.Duration

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	CartKey         string
	CatalogCacheKey string
	CatalogCacheTTL time.Duration

	FallbackRate          decimal.Decimal
	CheckoutRedirectDelay time.Duration

	MongoURI      string
	MongoDatabase string

	CORSOrigins []string

	AIEndpoint   string
	AIKey        string
	AIDeployment string
}

// LoadConfig reads the process environment. godotenv should already have run.
func LoadConfig() Config {
	return Config{
		Port:                  GetEnvOrDefault("PORT", "8000"),
		Env:                   GetEnvOrDefault("ENV", "development"),
		BackendURL:            GetEnvOrDefault("BACKEND_URL", "http://localhost:3000/api"),
		BackendTimeout:        GetEnvDuration("BACKEND_TIMEOUT", 10*time.Second),
		RedisAddress:          GetEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:         GetEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:               GetEnvInt("REDIS_DB", 0),
		CartKey:               GetEnvOrDefault("CART_KEY", "carrito"),
		CatalogCacheKey:       GetEnvOrDefault("CATALOG_CACHE_KEY", "catalogo_cache"),
		CatalogCacheTTL:       GetEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		FallbackRate:          GetEnvDecimal("FALLBACK_RATE", decimal.NewFromFloat(142.00)),
		CheckoutRedirectDelay: GetEnvDuration("CHECKOUT_REDIRECT_DELAY", 3*time.Second),
		MongoURI:              GetEnvOrDefault("MONGODB_URI", ""),
		MongoDatabase:         GetEnvOrDefault("MONGODB_DATABASE", "topup_storefront"),
		CORSOrigins:           GetEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		AIEndpoint:            GetEnvOrDefault("AZURE_OPENAI_ENDPOINT", ""),
		AIKey:                 GetEnvOrDefault("AZURE_OPENAI_API_KEY", ""),
		AIDeployment:          GetEnvOrDefault("AZURE_OPENAI_DEPLOYMENT_NAME", "gpt-35-turbo"),
	}
}

// JournalEnabled reports whether checkout attempts should be written to MongoDB.
func (c Config) JournalEnabled() bool {
	return c.MongoURI != ""
}
