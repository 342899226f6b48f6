package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-settlement/api/routes"
	"github.com/angelmondragon/storefront-settlement/internal/catalog"
	"github.com/angelmondragon/storefront-settlement/internal/checkout"
	"github.com/angelmondragon/storefront-settlement/internal/commission"
	"github.com/angelmondragon/storefront-settlement/internal/ledger"
	"github.com/angelmondragon/storefront-settlement/internal/orders"
	"github.com/angelmondragon/storefront-settlement/internal/payouts"
	"github.com/angelmondragon/storefront-settlement/internal/sellers"
	"github.com/angelmondragon/storefront-settlement/internal/settings"
	"github.com/angelmondragon/storefront-settlement/pkg/auth"
	"github.com/angelmondragon/storefront-settlement/pkg/bankverify"
	"github.com/angelmondragon/storefront-settlement/pkg/config"
	"github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/gateway"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/metrics"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/redis"
)

// wire builds the command services behind the HTTP surface. Bank
// verification is optional; everything else is required.
func wire(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg *prometheus.Registry) (routes.Dependencies, error) {
	var deps routes.Dependencies

	tokens, err := auth.NewTokens(cfg.JWT)
	if err != nil {
		return deps, fmt.Errorf("jwt: %w", err)
	}
	gatewayClient, err := gateway.FromConfig(ctx, cfg.Gateway, cfg.Square, logg)
	if err != nil {
		return deps, fmt.Errorf("payment gateway: %w", err)
	}
	settlementMetrics := metrics.NewSettlementMetrics(reg)

	conn := dbClient.DB()
	catalogRepo := catalog.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	commissionRepo := commission.NewRepository(conn)
	sellersRepo := sellers.NewRepository(conn)
	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, logg)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return deps, fmt.Errorf("ledger: %w", err)
	}

	validator, err := checkout.NewValidator(catalogRepo)
	if err != nil {
		return deps, fmt.Errorf("order validator: %w", err)
	}
	payments, err := checkout.NewPaymentVerifier(checkout.PaymentVerifierParams{
		Gateway:  gatewayClient,
		Cache:    redisClient,
		CacheTTL: cfg.Gateway.CacheTTL,
		Metrics:  settlementMetrics,
		Logger:   logg,
	})
	if err != nil {
		return deps, fmt.Errorf("payment verifier: %w", err)
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:          dbClient,
		Validator:   validator,
		Payments:    payments,
		Stock:       catalogRepo,
		Orders:      ordersRepo,
		Commissions: commissionRepo,
		Sellers:     sellersRepo,
		Ledger:      ledgerSvc,
		Outbox:      outboxSvc,
		Settings:    settings.NewStore(conn, cfg.Checkout),
		Metrics:     settlementMetrics,
		Logger:      logg,
	})
	if err != nil {
		return deps, fmt.Errorf("checkout: %w", err)
	}

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, logg)
	if err != nil {
		return deps, fmt.Errorf("orders: %w", err)
	}

	payoutParams := payouts.ServiceParams{
		Tx:          dbClient,
		Commissions: commissionRepo,
		Sellers:     sellersRepo,
		Ledger:      ledgerSvc,
		Outbox:      outboxSvc,
		Metrics:     settlementMetrics,
		Logger:      logg,
	}
	if bank, err := bankverify.NewClient(cfg.BankVerify, nil); err != nil {
		logg.Warn(ctx, "bank verification disabled: "+err.Error())
	} else {
		payoutParams.Bank = bank
	}
	payoutsSvc, err := payouts.NewService(payoutParams)
	if err != nil {
		return deps, fmt.Errorf("payouts: %w", err)
	}

	return routes.Dependencies{
		Tokens:      tokens,
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		Gatherer:    reg,
		Checkout:    checkoutSvc,
		Orders:      ordersSvc,
		Payouts:     payoutsSvc,
		DeadLetters: outbox.NewDeadLetters(dbClient, outboxRepo, outbox.NewDLQRepository(conn), logg),
	}, nil
}
