package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-settlement/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
)

const responseBodyReadLimit int64 = 1024

// Dispatcher delivers a rendered message to its recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// WebhookDispatcher posts messages as JSON to a delivery service.
type WebhookDispatcher struct {
	httpClient *http.Client
	url        string
}

// NewWebhookDispatcher builds a dispatcher for cfg.WebhookURL. A custom
// http.Client may be supplied for tests.
func NewWebhookDispatcher(cfg config.NotifyConfig, httpClient *http.Client) (*WebhookDispatcher, error) {
	url := strings.TrimSpace(cfg.WebhookURL)
	if url == "" {
		return nil, fmt.Errorf("notification webhook url required")
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &WebhookDispatcher{httpClient: httpClient, url: url}, nil
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode notification")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send notification")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
			"notification webhook rejected message")
	}
	return nil
}

// LogDispatcher writes messages to the log. Used when no webhook is configured.
type LogDispatcher struct {
	logg *logger.Logger
}

func NewLogDispatcher(logg *logger.Logger) *LogDispatcher {
	return &LogDispatcher{logg: logg}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if d.logg == nil {
		return nil
	}
	ctx = d.logg.WithFields(ctx, map[string]any{
		"audience":     string(msg.Audience),
		"order_number": msg.OrderNumber,
		"recipients":   len(msg.To),
		"subject":      msg.Subject,
	})
	d.logg.Info(ctx, "notification rendered")
	return nil
}
