package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/angelmondragon/storefront-settlement/internal/boot"
	"github.com/angelmondragon/storefront-settlement/internal/notifications"
	"github.com/angelmondragon/storefront-settlement/internal/settings"
	"github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-settlement/pkg/pubsub"
	"github.com/angelmondragon/storefront-settlement/pkg/redis"
)

const settingsLookupTimeout = 2 * time.Second

func main() {
	cfg, logg := boot.Load("notification-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	boot.Must(ctx, logg, "database", err)
	defer boot.Close(ctx, logg, "database", dbClient)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	boot.Must(ctx, logg, "redis", err)
	defer boot.Close(ctx, logg, "redis", redisClient)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, pubsub.Subscription(cfg.PubSub.NotificationSubscription))
	boot.Must(ctx, logg, "pubsub", err)
	defer boot.Close(ctx, logg, "pubsub", pubsubClient)

	subscription := pubsubClient.NotificationSubscription()
	if subscription == nil {
		boot.Must(ctx, logg, "notification subscription", errors.New("subscription not configured"))
	}

	events, err := registry.NewEventRegistry(cfg.PubSub)
	boot.Must(ctx, logg, "event registry", err)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	boot.Must(ctx, logg, "idempotency manager", err)

	var dispatcher notifications.Dispatcher = notifications.NewLogDispatcher(logg)
	if strings.TrimSpace(cfg.Notify.WebhookURL) == "" {
		logg.Warn(ctx, "notification webhook not configured; messages will be logged only")
	} else {
		dispatcher, err = notifications.NewWebhookDispatcher(cfg.Notify, nil)
		boot.Must(ctx, logg, "notification webhook", err)
	}

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Subscription: subscription,
		Events:       events,
		Idempotency:  manager,
		Dispatcher:   dispatcher,
		AdminEmails:  cfg.Notify.AdminEmails,
		Format:       settingsFormatter(settings.NewStore(dbClient.DB(), cfg.Checkout), logg),
		Logger:       logg,
	})
	boot.Must(ctx, logg, "notification consumer", err)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "notification worker ready")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notification worker failed", err)
		os.Exit(1)
	}
}

// settingsFormatter renders amounts with the current site settings. Lookup or
// conversion failures fall back to "<minor> <CODE>" so a message still goes out.
func settingsFormatter(resolver settings.Resolver, logg *logger.Logger) notifications.FormatFunc {
	return func(amountMinor int64, currency string) string {
		ctx, cancel := context.WithTimeout(context.Background(), settingsLookupTimeout)
		defer cancel()
		current, err := resolver.Resolve(ctx)
		if err == nil {
			var formatted string
			if formatted, err = current.Format(amountMinor, currency); err == nil {
				return formatted
			}
		}
		logg.Warn(ctx, "amount formatting fell back to raw minor units: "+err.Error())
		return fmt.Sprintf("%d %s", amountMinor, strings.ToUpper(currency))
	}
}
