package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-settlement/internal/boot"
	"github.com/angelmondragon/storefront-settlement/internal/commission"
	"github.com/angelmondragon/storefront-settlement/internal/cron"
	"github.com/angelmondragon/storefront-settlement/internal/ledger"
	"github.com/angelmondragon/storefront-settlement/internal/orders"
	"github.com/angelmondragon/storefront-settlement/internal/sellers"
	"github.com/angelmondragon/storefront-settlement/internal/settings"
	"github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/instance"
	"github.com/angelmondragon/storefront-settlement/pkg/metrics"
	"github.com/angelmondragon/storefront-settlement/pkg/migrate"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single locked cycle and exit")
	only := flag.String("jobs", "", "comma separated job names to run (default all)")
	flag.Parse()

	cfg, logg := boot.Load("cron-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	boot.Must(ctx, logg, "database", err)
	defer boot.Close(ctx, logg, "database", dbClient)
	boot.Must(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	boot.Must(ctx, logg, "redis", err)
	defer boot.Close(ctx, logg, "redis", redisClient)

	conn := dbClient.DB()
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	boot.Must(ctx, logg, "ledger service", err)
	outboxRepo := outbox.NewRepository(conn)

	reconcile, err := cron.NewReconcileCommissionJob(cron.ReconcileCommissionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Orders:      orders.NewRepository(conn),
		Commissions: commission.NewRepository(conn),
		Sellers:     sellers.NewRepository(conn),
		Ledger:      ledgerSvc,
		Outbox:      outbox.NewService(outboxRepo, logg),
		Settings:    settings.NewStore(conn, cfg.Checkout),
		Grace:       cfg.Cron.ReconcileGrace,
		BatchSize:   cfg.Cron.ReconcileBatch,
	})
	boot.Must(ctx, logg, "commission reconcile job", err)

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	boot.Must(ctx, logg, "outbox retention job", err)

	registry, err := cron.NewRegistry(reconcile, retention).Select(splitJobs(*only)...)
	boot.Must(ctx, logg, "job selection", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+envOrLocal(cfg.App.Env)), cfg.Cron.LockTTL)
	boot.Must(ctx, logg, "cron lock", err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
	boot.Must(ctx, logg, "cron service", err)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	go func() {
		if err := metrics.Serve(ctx, ":"+cfg.App.Port, reg); err != nil {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker stopped")
}

func splitJobs(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return strings.ToLower(env)
}
