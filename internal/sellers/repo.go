package sellers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-settlement/internal/repo"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
)

// ErrNotFound signals a missing seller profile.
var ErrNotFound = errors.New("seller profile not found")

// ErrWalletNotFound signals a debit against a currency with no wallet row.
var ErrWalletNotFound = errors.New("platform wallet not found")

// BankVerification is the outcome persisted after a successful account lookup.
type BankVerification struct {
	AccountName string
	VerifiedAt  time.Time
}

// Repository owns seller profiles and the platform wallet. Every counter
// change is expressed as an in-database delta.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, id uuid.UUID) (*models.SellerProfile, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.SellerProfile, error)
	CreditPayout(ctx context.Context, sellerID uuid.UUID, salesCents, commissionCents int64) error
	MarkBankVerified(ctx context.Context, sellerID uuid.UUID, result BankVerification) error
	AccrueWallet(ctx context.Context, currency string, commissionCents, heldCents int64) error
	DebitWallet(ctx context.Context, currency string, amountCents int64) error
	GetWallet(ctx context.Context, currency string) (*models.PlatformWallet, error)
}

type repository struct {
	repo.Base
}

// NewRepository binds a seller repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.SellerProfile, error) {
	var profile models.SellerProfile
	if err := r.First(ctx, &profile, ErrNotFound, "id = ?", id); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.SellerProfile, error) {
	out := make(map[uuid.UUID]models.SellerProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.SellerProfile
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *repository) CreditPayout(ctx context.Context, sellerID uuid.UUID, salesCents, commissionCents int64) error {
	res := r.DB(ctx).Model(&models.SellerProfile{}).
		Where("id = ?", sellerID).
		Updates(map[string]any{
			"total_sales_cents":      gorm.Expr("total_sales_cents + ?", salesCents),
			"total_commission_cents": gorm.Expr("total_commission_cents + ?", commissionCents),
			"updated_at":             time.Now().UTC(),
		})
	return repo.Touched(res, ErrNotFound)
}

func (r *repository) MarkBankVerified(ctx context.Context, sellerID uuid.UUID, result BankVerification) error {
	res := r.DB(ctx).Model(&models.SellerProfile{}).
		Where("id = ?", sellerID).
		Updates(map[string]any{
			"account_name":     result.AccountName,
			"bank_verified_at": result.VerifiedAt,
			"updated_at":       time.Now().UTC(),
		})
	return repo.Touched(res, ErrNotFound)
}

func (r *repository) AccrueWallet(ctx context.Context, currency string, commissionCents, heldCents int64) error {
	wallet := models.PlatformWallet{
		ID:                       uuid.New(),
		Currency:                 normalizeCurrency(currency),
		TotalCommissionCents:     commissionCents,
		WithdrawableBalanceCents: heldCents,
		UpdatedAt:                time.Now().UTC(),
	}
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "currency"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_commission_cents":     gorm.Expr("platform_wallets.total_commission_cents + ?", commissionCents),
			"withdrawable_balance_cents": gorm.Expr("platform_wallets.withdrawable_balance_cents + ?", heldCents),
			"updated_at":                 wallet.UpdatedAt,
		}),
	}).Create(&wallet).Error
}

func (r *repository) DebitWallet(ctx context.Context, currency string, amountCents int64) error {
	res := r.DB(ctx).Model(&models.PlatformWallet{}).
		Where("currency = ?", normalizeCurrency(currency)).
		Updates(map[string]any{
			"withdrawable_balance_cents": gorm.Expr("withdrawable_balance_cents - ?", amountCents),
			"updated_at":                 time.Now().UTC(),
		})
	return repo.Touched(res, ErrWalletNotFound)
}

func (r *repository) GetWallet(ctx context.Context, currency string) (*models.PlatformWallet, error) {
	var wallet models.PlatformWallet
	err := r.DB(ctx).Where("currency = ?", normalizeCurrency(currency)).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.PlatformWallet{Currency: normalizeCurrency(currency)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
