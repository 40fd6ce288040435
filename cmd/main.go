package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/topup-storefront/internal/router"
	"julianmorley.ca/con-plar/topup-storefront/internal/storefront"
	"julianmorley.ca/con-plar/topup-storefront/pkg/ai"
	"julianmorley.ca/con-plar/topup-storefront/pkg/backend"
	"julianmorley.ca/con-plar/topup-storefront/pkg/cart"
	"julianmorley.ca/con-plar/topup-storefront/pkg/catalog"
	"julianmorley.ca/con-plar/topup-storefront/pkg/checkout"
	"julianmorley.ca/con-plar/topup-storefront/pkg/currency"
	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
	"julianmorley.ca/con-plar/topup-storefront/pkg/mongo"
	"julianmorley.ca/con-plar/topup-storefront/pkg/redis"
	"julianmorley.ca/con-plar/topup-storefront/pkg/session"
)

func main() {
	envErr := godotenv.Load()
	cfg := global.LoadConfig()

	logger, err := global.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()
	if envErr != nil {
		logger.Info("no .env file, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.RedisClient(cfg)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, cart and catalog cache will not persist", zap.Error(err))
	}

	api := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	converter := currency.NewConverter(cfg.FallbackRate)
	engine := cart.NewEngine(redis.NewCartStore(rdb, cfg.CartKey, logger), logger)
	sessions := session.NewManager(api, logger)

	var (
		journal  checkout.Journal
		attempts storefront.AttemptReader
	)
	if cfg.JournalEnabled() {
		client, err := mongo.Connect(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer client.Disconnect(context.Background())

		db := client.Database(cfg.MongoDatabase)
		if err := mongo.EnsureIndexes(ctx, db, logger); err != nil {
			logger.Warn("could not ensure journal indexes", zap.Error(err))
		}
		j := mongo.NewJournal(db)
		journal, attempts = j, j
		logger.Info("checkout journal enabled", zap.String("database", cfg.MongoDatabase))
	}

	app := storefront.New(storefront.Deps{
		Catalog:       catalog.NewService(api, redis.NewCatalogCache(rdb, cfg.CatalogCacheKey, cfg.CatalogCacheTTL), converter, logger),
		Cart:          engine,
		Session:       sessions,
		Checkout:      checkout.NewService(engine, sessions, api, journal, logger),
		Converter:     converter,
		Attempts:      attempts,
		Reporter:      ai.NewReporter(cfg, logger),
		Logger:        logger,
		RedirectDelay: cfg.CheckoutRedirectDelay,
	})

	app.Boot(ctx)
	go app.Reload(ctx)

	router.InitEngine(cfg, logger)
	router.InitializeRoutes(app)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router.Router}
	go func() {
		logger.Info("server is running", zap.String("port", cfg.Port), zap.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	app.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
