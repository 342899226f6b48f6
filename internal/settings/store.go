package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/commission"
	"github.com/angelmondragon/storefront-settlement/internal/repo"
	"github.com/angelmondragon/storefront-settlement/pkg/config"
	"github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/money"
)

const publishAttempts = 3

// Settings is one immutable storefront configuration version.
type Settings struct {
	Version               int64                      `json:"-"`
	Currency              string                     `json:"currency"`
	DefaultCommissionRate decimal.Decimal            `json:"default_commission_rate"`
	ExchangeRates         map[string]decimal.Decimal `json:"exchange_rates,omitempty"`
	FreeShippingCents     int64                      `json:"free_shipping_threshold_cents,omitempty"`
}

// RateTable returns the conversion table rooted at the settlement currency.
func (s Settings) RateTable() money.RateTable {
	return money.RateTable{Base: s.Currency, Rates: s.ExchangeRates}
}

// Format renders a settlement-currency amount in the display currency code.
func (s Settings) Format(amountMinor int64, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		code = s.Currency
	}
	return money.Format(amountMinor, code, s.RateTable())
}

func (s Settings) validate() error {
	if _, err := money.Scale(s.Currency); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid settlement currency")
	}
	if err := commission.ValidateRate(s.DefaultCommissionRate); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid default commission rate")
	}
	for code := range s.ExchangeRates {
		if _, err := s.RateTable().Rate(code); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid exchange rate")
		}
	}
	if s.FreeShippingCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "free shipping threshold must be non-negative")
	}
	return nil
}

// Resolver returns the settings snapshot in force for one request.
type Resolver interface {
	Resolve(ctx context.Context) (Settings, error)
}

// Store keeps settings as append-only versions; the highest version wins.
type Store struct {
	repo.Base
	defaults Settings
}

// NewStore builds a store whose fallback snapshot comes from checkout config.
func NewStore(conn *gorm.DB, cfg config.CheckoutConfig) *Store {
	return &Store{
		Base: repo.NewBase(conn),
		defaults: Settings{
			Currency:              strings.ToUpper(strings.TrimSpace(cfg.Currency)),
			DefaultCommissionRate: cfg.CommissionRate(),
		},
	}
}

// Resolve loads the latest version, or the configured defaults when none exist.
func (s *Store) Resolve(ctx context.Context) (Settings, error) {
	var row models.SiteSetting
	err := s.DB(ctx).Order("version DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return Settings{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load site settings")
	}
	var out Settings
	if err := json.Unmarshal(row.Payload, &out); err != nil {
		return Settings{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode site settings")
	}
	out.Version = row.Version
	return out, nil
}

// Publish stores next as a new version and returns it with its version set.
func (s *Store) Publish(ctx context.Context, actorID *uuid.UUID, next Settings) (Settings, error) {
	next.Currency = strings.ToUpper(strings.TrimSpace(next.Currency))
	if err := next.validate(); err != nil {
		return Settings{}, err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return Settings{}, fmt.Errorf("encode site settings: %w", err)
	}

	for attempt := 0; attempt < publishAttempts; attempt++ {
		var current int64
		if err := s.DB(ctx).Model(&models.SiteSetting{}).Select("COALESCE(MAX(version), 0)").Scan(&current).Error; err != nil {
			return Settings{}, err
		}
		row := models.SiteSetting{
			ID:        uuid.New(),
			Version:   current + 1,
			Payload:   payload,
			CreatedBy: actorID,
		}
		err := s.DB(ctx).Create(&row).Error
		if err == nil {
			next.Version = row.Version
			return next, nil
		}
		if !db.IsUniqueViolation(err, "version") {
			return Settings{}, err
		}
	}
	return Settings{}, pkgerrors.New(pkgerrors.CodeConflict, "concurrent settings update")
}
