package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-settlement/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/money"
)

// Validator re-derives every amount of a checkout from the catalog.
type Validator struct {
	catalog catalog.Reader
}

// NewValidator builds a validator over the catalog reader.
func NewValidator(reader catalog.Reader) (*Validator, error) {
	if reader == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &Validator{catalog: reader}, nil
}

// Validate prices input against the catalog and returns the server quote.
// It runs regardless of payment method; a gateway certifies only the amount
// charged, not how it was composed.
func (v *Validator) Validate(ctx context.Context, input CreateOrderInput) (*Quote, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	for field, amount := range map[string]int64{
		"shipping_fee":    input.ShippingFeeCents,
		"tax_amount":      input.TaxCents,
		"discount_amount": input.DiscountCents,
		"total_amount":    input.TotalCents,
	} {
		if amount < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be non-negative").
				WithDetails(pkgerrors.ReasonDetails{Field: field})
		}
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	requested := make(map[uuid.UUID]int, len(input.Items))
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].product_id is required", i))
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].quantity must be positive", i)).
				WithDetails(pkgerrors.ReasonDetails{Field: "quantity", ProductID: item.ProductID.String()})
		}
		if _, seen := requested[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}

	products, err := v.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		Lines:            make([]QuotedLine, 0, len(input.Items)),
		ShippingFeeCents: input.ShippingFeeCents,
		TaxCents:         input.TaxCents,
		DiscountCents:    input.DiscountCents,
	}
	for _, item := range input.Items {
		product, ok := products[item.ProductID]
		if !ok || !product.Active {
			return nil, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonProductUnavailable,
				"product is not available", pkgerrors.ReasonDetails{ProductID: item.ProductID.String()})
		}
		if !money.WithinTolerance(item.UnitPriceCents, product.PriceCents) {
			return nil, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonPriceMismatch,
				fmt.Sprintf("price for %s has changed", product.Name),
				pkgerrors.ReasonDetails{ProductID: product.ID.String(), Expected: product.PriceCents, Actual: item.UnitPriceCents})
		}
		if requested[item.ProductID] > product.StockQuantity {
			return nil, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonInsufficientStock,
				fmt.Sprintf("only %d of %s left in stock", product.StockQuantity, product.Name),
				pkgerrors.ReasonDetails{ProductID: product.ID.String(), Expected: product.StockQuantity, Actual: requested[item.ProductID]})
		}

		lineTotal := product.PriceCents * int64(item.Quantity)
		quote.Lines = append(quote.Lines, QuotedLine{
			ProductID:      product.ID,
			SellerID:       product.SellerID,
			ProductName:    product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: product.PriceCents,
			LineTotalCents: lineTotal,
		})
		quote.SubtotalCents += lineTotal
	}

	if input.DiscountCents > quote.SubtotalCents+input.ShippingFeeCents+input.TaxCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds order value").
			WithDetails(pkgerrors.ReasonDetails{Field: "discount_amount"})
	}
	quote.TotalCents = quote.SubtotalCents + input.ShippingFeeCents + input.TaxCents - input.DiscountCents
	if !money.WithinTolerance(input.TotalCents, quote.TotalCents) {
		return nil, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonTotalMismatch,
			"order total does not match items",
			pkgerrors.ReasonDetails{Field: "total_amount", Expected: quote.TotalCents, Actual: input.TotalCents})
	}
	return quote, nil
}
