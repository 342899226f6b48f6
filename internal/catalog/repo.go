package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/repo"
	"github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
)

// Product is the authoritative view of a listing used to price a checkout.
type Product struct {
	ID            uuid.UUID
	SellerID      *uuid.UUID
	Name          string
	PriceCents    int64
	StockQuantity int
	Active        bool
}

// Reader resolves listings by id.
type Reader interface {
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)
}

// StockAdjuster decrements stock inside the caller's transaction.
type StockAdjuster interface {
	Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Repository reads the product table and performs conditional stock writes.
type Repository struct {
	repo.Base
}

// NewRepository binds the catalog repository to db.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

// GetProducts loads every requested product. Missing ids are absent from the result.
func (r *Repository) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	out := make(map[uuid.UUID]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	for _, row := range rows {
		out[row.ID] = Product{
			ID:            row.ID,
			SellerID:      row.SellerID,
			Name:          row.Name,
			PriceCents:    row.PriceCents,
			StockQuantity: row.StockQuantity,
			Active:        row.IsActive,
		}
	}
	return out, nil
}

// Decrement removes qty units only while enough stock remains at write time.
func (r *Repository) Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	conn := r.DB(ctx)
	if tx != nil {
		conn = tx.WithContext(ctx)
	}
	res := conn.Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		if db.IsCheckViolation(res.Error, "stock") {
			return insufficientStock(productID, qty)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return insufficientStock(productID, qty)
	}
	return nil
}

func insufficientStock(productID uuid.UUID, qty int) error {
	return pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonInsufficientStock,
		"insufficient stock", pkgerrors.ReasonDetails{ProductID: productID.String(), Expected: qty})
}

// IsInsufficientStock reports whether err came from a failed conditional decrement.
func IsInsufficientStock(err error) bool {
	return pkgerrors.HasReason(err, pkgerrors.ReasonInsufficientStock)
}

var errNotFound = errors.New("product not found")

// GetProduct returns a single product or a not-found error.
func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	products, err := r.GetProducts(ctx, []uuid.UUID{id})
	if err != nil {
		return Product{}, err
	}
	p, ok := products[id]
	if !ok {
		return Product{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, errNotFound, "product not found")
	}
	return p, nil
}
