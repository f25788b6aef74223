package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BintangGalang/TiketLoka/internal/config"
	"github.com/BintangGalang/TiketLoka/internal/database"
	"github.com/BintangGalang/TiketLoka/internal/handler"
	"github.com/BintangGalang/TiketLoka/internal/logger"
	"github.com/BintangGalang/TiketLoka/internal/middleware"
	"github.com/BintangGalang/TiketLoka/internal/model"
	"github.com/BintangGalang/TiketLoka/internal/queue"
	"github.com/BintangGalang/TiketLoka/internal/repository"
	"github.com/BintangGalang/TiketLoka/internal/router"
	"github.com/BintangGalang/TiketLoka/internal/service"
	"github.com/BintangGalang/TiketLoka/internal/storage"
)

// stores is the set of persistence ports the services are built from.
type stores struct {
	bookings interface {
		repository.BookingStore
		repository.TicketStore
	}
	catalog repository.CatalogStore
	carts   repository.CartStore
	reviews repository.ReviewStore
	users   repository.UserStore
	tokens  repository.TokenStore
	close   func() error
}

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer st.close() //nolint:errcheck

	if err := seedAdmin(ctx, cfg, st.users, zl); err != nil {
		zl.Fatal("seed admin", zap.Error(err))
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, zl)
		defer pub.Close() //nolint:errcheck
		events = pub
		go func() {
			if err := queue.NewConsumer(cfg.RabbitURL, cfg.LogDir, zl).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("booking log consumer stopped", zap.Error(err))
			}
		}()
	} else {
		zl.Info("RABBITMQ_URL not set; domain events are disabled")
	}

	rdb := config.NewRedisClient(zl)
	if rdb == nil {
		zl.Warn("redis unavailable; response cache disabled and rate limiting is per-process")
	} else {
		defer rdb.Close()
	}

	bookings := service.NewBookingService(st.bookings, events, zl)
	tickets := service.NewTicketService(st.bookings, events, zl)
	reviews := service.NewReviewService(st.reviews, st.catalog, storage.NewLocalImages(cfg.UploadDir), zl)
	carts := service.NewCartService(st.carts, st.catalog)

	limits := config.LoadRateLimits()
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)
	reviewHandler := handler.NewReviewHandler(reviews, zl)
	reviewHandler.Cache = cache

	e := newEcho(cfg, zl, rdb, limits.Global)
	router.Setup(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, st.users, st.tokens, zl),
		Destinations: handler.NewDestinationHandler(st.catalog, zl),
		Reviews:      reviewHandler,
		Bookings:     handler.NewBookingHandler(bookings, zl),
		Carts:        handler.NewCartHandler(carts, zl),
		Tickets:      handler.NewTicketHandler(tickets, zl),
	}, cfg.JWTSecret, router.Options{
		Cache:         cache,
		CheckoutLimit: middleware.NewTokenBucket(limits.Checkout, rdb),
		ScanLimit:     middleware.NewTokenBucket(limits.Scan, rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("storage", cfg.StorageDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown", zap.Error(err))
	}
}

func newEcho(cfg config.Config, zl *zap.Logger, rdb *redis.Client, limit config.RateLimitConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(zl))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	// review uploads are capped at 2MiB; leave room for the other fields
	e.Use(echomw.BodyLimit("3M"))
	e.Use(middleware.NewTokenBucket(limit, rdb))

	e.Static("/storage", cfg.UploadDir)
	return e
}

func openStores(ctx context.Context, cfg config.Config, zl *zap.Logger) (*stores, error) {
	if cfg.StorageDriver == config.DriverMemory {
		mem := repository.NewMemoryStore()
		seedCatalog(mem)
		zl.Warn("using in-memory storage; data is lost on restart")
		return &stores{
			bookings: mem, catalog: mem, carts: mem, reviews: mem, users: mem, tokens: mem,
			close: func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &stores{
		bookings: repository.NewBookingRepo(db),
		catalog:  repository.NewDestinationRepo(db),
		carts:    repository.NewCartRepo(db),
		reviews:  repository.NewReviewRepo(db),
		users:    repository.NewUserRepo(db),
		tokens:   repository.NewTokenRepo(db),
		close:    db.Close,
	}, nil
}

// seedAdmin creates the configured admin account once.
func seedAdmin(ctx context.Context, cfg config.Config, users repository.UserStore, zl *zap.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}
	_, err := users.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	id, err := users.Create(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword, model.RoleAdmin, cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return nil
	}
	if err != nil {
		return err
	}
	zl.Info("admin account created", zap.Uint64("user_id", id), zap.String("email", cfg.AdminEmail))
	return nil
}

// seedCatalog fills the memory driver with a few destinations so the API
// is usable without a database.
func seedCatalog(mem *repository.MemoryStore) {
	for _, d := range []model.Destination{
		{CategoryID: 1, Name: "Candi Borobudur", Slug: "candi-borobudur", Price: 50000, IsActive: true},
		{CategoryID: 1, Name: "Candi Prambanan", Slug: "candi-prambanan", Price: 120000, IsActive: true},
		{CategoryID: 2, Name: "Pantai Parangtritis", Slug: "pantai-parangtritis", Price: 10000, IsActive: true},
		{CategoryID: 3, Name: "Kawah Ijen", Slug: "kawah-ijen", Price: 100000, IsActive: true},
	} {
		mem.PutDestination(d)
	}
}
