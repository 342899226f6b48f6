// Package pubsub wraps the Pub/Sub v2 client. Each process declares the
// topics and subscriptions it depends on; startup and health checks verify
// only those.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	"github.com/angelmondragon/storefront-settlement/pkg/config"
	"github.com/angelmondragon/storefront-settlement/pkg/gcp"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
)

const (
	collectionTopics        = "topics"
	collectionSubscriptions = "subscriptions"
)

var errNotInitialized = errors.New("pubsub client not initialized")

// Requirement names a resource a process cannot run without.
type Requirement struct {
	Collection string
	Name       string
}

// Topic requires a topic to exist.
func Topic(name string) Requirement {
	return Requirement{Collection: collectionTopics, Name: name}
}

// Subscription requires a subscription to exist.
func Subscription(name string) Requirement {
	return Requirement{Collection: collectionSubscriptions, Name: name}
}

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	required  []Requirement
}

// NewClient dials Pub/Sub and verifies every required resource exists.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, required ...Requirement) (*Client, error) {
	projectID, err := gcp.ProjectID(gcpCfg)
	if err != nil {
		return nil, err
	}
	for _, req := range required {
		if strings.TrimSpace(req.Name) == "" {
			return nil, fmt.Errorf("pubsub %s name is required", strings.TrimSuffix(req.Collection, "s"))
		}
	}

	raw, err := pubsub.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	c := &Client{client: raw, projectID: projectID, cfg: cfg, required: required}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"project_id": projectID, "required": len(required)}), "pubsub client initialized")
	return c, nil
}

// Ping confirms the required topics and subscriptions are still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	for _, req := range c.required {
		if err := c.check(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) check(ctx context.Context, req Requirement) error {
	name := gcp.ResourceName(c.projectID, req.Collection, req.Name)
	var err error
	switch req.Collection {
	case collectionTopics:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	case collectionSubscriptions:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	default:
		return fmt.Errorf("unknown pubsub collection %q", req.Collection)
	}
	switch {
	case err == nil:
		return nil
	case gcp.IsNotFound(err):
		return fmt.Errorf("%s does not exist", name)
	default:
		return fmt.Errorf("check %s: %w", name, err)
	}
}

// Subscriber returns a receive handle for a subscription id or full name.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := gcp.ResourceName(c.projectID, collectionSubscriptions, name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// NotificationSubscription feeds the notification worker.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscriber(c.cfg.NotificationSubscription)
}

// AnalyticsSubscription feeds the BigQuery sink.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscriber(c.cfg.AnalyticsSubscription)
}

// Publisher returns a publish handle for a topic id or full name. Callers
// own the handle and must Stop it.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := gcp.ResourceName(c.projectID, collectionTopics, name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
