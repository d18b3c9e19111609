package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stagepass/backoffice/internal/di"
	"github.com/stagepass/backoffice/internal/events"
	"github.com/stagepass/backoffice/internal/inventory"
	"github.com/stagepass/backoffice/internal/repository"
	"github.com/stagepass/backoffice/internal/service"
	"github.com/stagepass/backoffice/internal/worker"
	"github.com/stagepass/backoffice/pkg/clock"
	"github.com/stagepass/backoffice/pkg/config"
	"github.com/stagepass/backoffice/pkg/database"
	"github.com/stagepass/backoffice/pkg/logger"
	"github.com/stagepass/backoffice/pkg/middleware"
	"github.com/stagepass/backoffice/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{
		Level:       logLevel(cfg),
		ServiceName: cfg.App.Name,
		Development: cfg.App.Environment == "development",
		OutputPath:  "stdout",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("service exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// Postgres
	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()
	log.Info("connected to postgres", zap.String("host", cfg.Database.Host))

	clk := clock.NewSystem()

	// Inventory ledger
	var ledger inventory.Ledger
	var rdb *redis.Client
	switch cfg.Inventory.Backend {
	case "redis":
		rdb = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		ledger = inventory.NewRedisLedger(rdb, clk)
		log.Info("using redis inventory ledger", zap.String("addr", cfg.Redis.Addr()))
	default:
		ledger = inventory.NewMemoryLedger(clk)
		log.Info("using in-memory inventory ledger")
	}

	// Event publisher
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		publisher, err = events.NewKafkaPublisher(cfg.Kafka.Brokers, log.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to kafka: %w", err)
		}
		log.Info("kafka publisher enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}
	defer publisher.Close()

	container := di.NewContainer(&di.ContainerConfig{
		DB:               db,
		Ledger:           ledger,
		Publisher:        publisher,
		Clock:            clk,
		Logger:           log.Logger,
		TicketTypeRepo:   repository.NewPostgresTicketTypeRepository(db.Pool()),
		TicketRepo:       repository.NewPostgresTicketRepository(db.Pool()),
		PricingRuleRepo:  repository.NewPostgresPricingRuleRepository(db.Pool()),
		SpecialOfferRepo: repository.NewPostgresSpecialOfferRepository(db.Pool()),
		SaleRepo:         repository.NewPostgresSaleRepository(db.Pool()),
		SaleConfig: service.SaleServiceConfig{
			ReservationTTL:    cfg.Inventory.ReservationTTL,
			MaxTicketsPerSale: cfg.Inventory.MaxTicketsPerSale,
		},
		SweeperConfig: &worker.SweeperConfig{
			ScanInterval: cfg.Inventory.SweepInterval,
			BatchSize:    cfg.Inventory.SweepBatchSize,
		},
	})

	// The ledger starts empty; counters come from the catalog.
	if err := container.CatalogService.BootstrapLedger(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap inventory ledger: %w", err)
	}

	container.Sweeper.Start(ctx)
	defer container.Sweeper.Stop()

	auditLogger := middleware.NewAuditLogger(middleware.DefaultAuditConfig(db.Pool()))
	defer auditLogger.Close()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.Server.RateLimitRPS,
		BurstSize:         cfg.Server.RateLimitBurst,
		RedisClient:       rdb,
		KeyPrefix:         "ratelimit:",
		EntryTTL:          time.Minute,
	})
	defer rateLimiter.Stop()

	router := buildRouter(cfg, container, auditLogger, rateLimiter)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func buildRouter(cfg *config.Config, c *di.Container, auditLogger *middleware.AuditLogger, rateLimiter *middleware.RateLimiter) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimitMiddleware(rateLimiter))
	router.Use(middleware.JWTMiddleware(&middleware.JWTConfig{
		Secret:    cfg.JWT.Secret,
		SkipPaths: []string{"/health", "/ready"},
	}))
	router.Use(middleware.AuditMiddleware(auditLogger))

	router.GET("/health", c.HealthHandler.Health)
	router.GET("/ready", c.HealthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sales", c.SaleHandler.Record)
		v1.GET("/sales/:id", c.SaleHandler.GetByID)
		v1.POST("/sales/:id/refund", c.SaleHandler.Refund)
		v1.POST("/quotes", c.SaleHandler.Quote)
		v1.GET("/tickets/:code", c.SaleHandler.GetTicket)
		v1.GET("/inventory/:ticket_type_id", c.SaleHandler.GetInventory)

		admin := v1.Group("/admin", middleware.RequireRole("admin"))
		{
			admin.POST("/ticket-types", c.AdminHandler.CreateTicketType)
			admin.GET("/ticket-types", c.AdminHandler.ListTicketTypes)
			admin.GET("/ticket-types/:id", c.AdminHandler.GetTicketType)
			admin.DELETE("/ticket-types/:id", c.AdminHandler.RetireTicketType)
			admin.POST("/pricing-rules", c.AdminHandler.CreatePricingRule)
			admin.GET("/pricing-rules", c.AdminHandler.ListPricingRules)
			admin.GET("/pricing-rules/:id", c.AdminHandler.GetPricingRule)
			admin.PUT("/pricing-rules/:id", c.AdminHandler.UpdatePricingRule)
			admin.POST("/special-offers", c.AdminHandler.CreateSpecialOffer)
			admin.GET("/special-offers", c.AdminHandler.ListSpecialOffers)
			admin.GET("/special-offers/:id", c.AdminHandler.GetSpecialOffer)
		}
	}

	return router
}

func logLevel(cfg *config.Config) string {
	if cfg.App.Debug {
		return "debug"
	}
	return "info"
}
