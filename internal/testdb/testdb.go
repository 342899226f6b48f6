// Package testdb opens an in-memory SQLite database carrying the settlement
// schema, constraints included, for repository and service tests.
package testdb

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
)

var schema = []string{
	`CREATE TABLE seller_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  commission_rate NUMERIC CHECK (commission_rate IS NULL OR (commission_rate >= 0 AND commission_rate <= 100)),
  total_sales_cents INTEGER NOT NULL DEFAULT 0,
  total_commission_cents INTEGER NOT NULL DEFAULT 0,
  bank_name TEXT,
  bank_code TEXT,
  account_number TEXT,
  account_name TEXT,
  bank_verified_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  seller_id TEXT,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
  stock_quantity INTEGER NOT NULL DEFAULT 0 CONSTRAINT ck_products_stock_non_negative CHECK (stock_quantity >= 0),
  is_active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE platform_wallets (
  id TEXT PRIMARY KEY,
  currency TEXT NOT NULL UNIQUE,
  total_commission_cents INTEGER NOT NULL DEFAULT 0,
  withdrawable_balance_cents INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  buyer_user_id TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  shipping_address TEXT,
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  status TEXT NOT NULL DEFAULT 'pending',
  currency TEXT NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  shipping_fee_cents INTEGER NOT NULL DEFAULT 0,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  payment_reference TEXT,
  commission_cents INTEGER NOT NULL DEFAULT 0,
  seller_amount_cents INTEGER NOT NULL DEFAULT 0,
  seller_id TEXT,
  tracking_token_hash TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ck_orders_total_balances CHECK (total_cents = subtotal_cents + shipping_fee_cents + tax_cents - discount_cents)
);`,
	`CREATE UNIQUE INDEX ux_orders_payment_reference ON orders (payment_reference) WHERE payment_reference IS NOT NULL;`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  seller_id TEXT,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price_cents INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  commission_rate NUMERIC,
  created_at DATETIME
);`,
	`CREATE TABLE payment_transactions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  method TEXT NOT NULL,
  status TEXT NOT NULL,
  reference TEXT,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  gateway_status TEXT,
  verified_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE commission_transactions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  currency TEXT NOT NULL,
  total_cents INTEGER NOT NULL,
  commission_rate NUMERIC NOT NULL,
  commission_cents INTEGER NOT NULL,
  seller_amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_reference TEXT,
  rejection_reason TEXT,
  paid_at DATETIME,
  rejected_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_commission_order_seller UNIQUE (order_id, seller_id),
  CONSTRAINT ck_commission_split_balances CHECK (commission_cents + seller_amount_cents = total_cents)
);`,
	`CREATE TABLE ledger_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  commission_transaction_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  actor_user_id TEXT,
  type TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  metadata TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE site_settings (
  id TEXT PRIMARY KEY,
  version INTEGER NOT NULL UNIQUE,
  payload TEXT NOT NULL,
  created_by TEXT,
  created_at DATETIME
);`,
}

// Open returns a fresh database isolated from every other test. A single
// connection serializes concurrent writers the way row locks would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:settlement_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

// SeedSeller inserts a seller profile. A nil rate means the platform default applies.
func SeedSeller(t testing.TB, db *gorm.DB, name string, rate *decimal.Decimal) models.SellerProfile {
	t.Helper()
	seller := models.SellerProfile{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		DisplayName:    name,
		CommissionRate: rate,
	}
	if err := db.Create(&seller).Error; err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	return seller
}

// SeedProduct inserts an active product.
func SeedProduct(t testing.TB, db *gorm.DB, sellerID *uuid.UUID, name string, priceCents int64, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:            uuid.New(),
		SellerID:      sellerID,
		Name:          name,
		PriceCents:    priceCents,
		StockQuantity: stock,
		IsActive:      true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// Rate is shorthand for a percentage literal.
func Rate(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}
