package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-settlement/pkg/config"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
)

const (
	ProviderHTTP   = "http"
	ProviderSquare = "square"
)

// FromConfig builds the verifier named by cfg.Provider.
func FromConfig(ctx context.Context, cfg config.GatewayConfig, square config.SquareConfig, logg *logger.Logger) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderHTTP:
		client, err := NewHTTPClient(cfg.SecretKey, WithBaseURL(cfg.BaseURL), WithTimeout(cfg.Timeout))
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderSquare:
		client, err := NewSquareClient(ctx, square, logg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown payment gateway provider %q", cfg.Provider)
	}
}
