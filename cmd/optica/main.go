package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/optica-erp/optica-erp/internal/app"
	"github.com/optica-erp/optica-erp/internal/cashier"
	"github.com/optica-erp/optica-erp/internal/commission"
	"github.com/optica-erp/optica-erp/internal/finance"
	"github.com/optica-erp/optica-erp/internal/inventory"
	"github.com/optica-erp/optica-erp/internal/observability"
	"github.com/optica-erp/optica-erp/internal/platform/cache"
	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/quotes"
	"github.com/optica-erp/optica-erp/internal/rbac"
	"github.com/optica-erp/optica-erp/internal/sales"
	"github.com/optica-erp/optica-erp/internal/shared"
	"github.com/optica-erp/optica-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	guard := rbac.Middleware{Gate: rbac.DefaultRoles(), Logger: logger}
	auditLogger := shared.NewAuditLogger(dbpool)

	statsCache := quotes.NewStatsCache(redisClient, cfg.QuoteStatsCacheTTL)
	quoteService := quotes.NewService(quotes.NewRepository(dbpool), statsCache, logger, quotes.ServiceConfig{
		ValidityDays: cfg.QuoteValidityDays,
		Location:     cfg.Location(),
	})
	saleService := sales.NewService(sales.NewRepository(dbpool), quoteService, metrics, logger, sales.ServiceConfig{
		DefaultCommissionPercent: cfg.CommissionPercent(),
		Location:                 cfg.Location(),
	})
	cashService := cashier.NewService(cashier.NewRepository(dbpool), logger)
	stockService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, logger)
	provisioner := finance.NewProvisioner(finance.NewRepository(dbpool), logger, finance.ProvisionerConfig{
		Concurrency: cfg.ProvisionConcurrency,
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	if cfg.DBAutoMigrate {
		// Fresh migrations may add seed accounts; existing tenants pick them up in the background.
		jobsClient := jobs.NewClient(redisOpts)
		if info, err := jobsClient.EnqueueProvision(ctx, jobs.ProvisionPayload{}); err != nil {
			logger.Warn("enqueue provisioning", slog.Any("error", err))
		} else {
			logger.Info("provisioning enqueued", slog.String("task_id", info.ID))
		}
		_ = jobsClient.Close()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		ActorResolver:     shared.HeaderActorResolver{},
		QuotesHandler:     quotes.NewHandler(quoteService, guard, logger),
		SalesHandler:      sales.NewHandler(saleService, guard, logger),
		CashierHandler:    cashier.NewHandler(cashService, guard, logger),
		CommissionHandler: commission.NewHandler(commission.NewStore(dbpool), guard, logger, cfg.Location()),
		InventoryHandler:  inventory.NewHandler(stockService, guard, logger),
		FinanceHandler:    finance.NewHandler(provisioner, guard, logger),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
