package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/money"
	"github.com/angelmondragon/storefront-settlement/pkg/types"
)

// LineInput is one client-submitted cart line. Prices are what the client
// displayed and are re-checked against the catalog.
type LineInput struct {
	ProductID      uuid.UUID
	ProductName    string
	Quantity       int
	UnitPriceCents int64
}

// CreateOrderInput is a checkout submission.
type CreateOrderInput struct {
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	ShippingAddress  *types.ShippingAddress
	PaymentMethod    enums.PaymentMethod
	PaymentReference string
	Items            []LineInput
	ShippingFeeCents int64
	TaxCents         int64
	DiscountCents    int64
	TotalCents       int64
}

// LineRequest is a cart line priced in major currency units.
type LineRequest struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// OrderRequest is a checkout submission as storefronts send it, with every
// amount in major currency units.
type OrderRequest struct {
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	ShippingAddress  *types.ShippingAddress
	PaymentMethod    enums.PaymentMethod
	PaymentReference string
	Items            []LineRequest
	ShippingFee      decimal.Decimal
	TaxAmount        decimal.Decimal
	DiscountAmount   decimal.Decimal
	TotalAmount      decimal.Decimal
}

func (r OrderRequest) minorUnits(currency string) (CreateOrderInput, error) {
	convert := func(field string, amount decimal.Decimal) (int64, error) {
		if amount.IsNegative() {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, field+" must be non-negative").
				WithDetails(pkgerrors.ReasonDetails{Field: field})
		}
		minor, err := money.FromMajor(amount, currency)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settlement currency")
		}
		return minor, nil
	}

	input := CreateOrderInput{
		CustomerName:     r.CustomerName,
		CustomerEmail:    r.CustomerEmail,
		CustomerPhone:    r.CustomerPhone,
		ShippingAddress:  r.ShippingAddress,
		PaymentMethod:    r.PaymentMethod,
		PaymentReference: r.PaymentReference,
		Items:            make([]LineInput, 0, len(r.Items)),
	}
	for _, line := range r.Items {
		price, err := convert("price", line.Price)
		if err != nil {
			return CreateOrderInput{}, err
		}
		input.Items = append(input.Items, LineInput{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceCents: price,
		})
	}

	var err error
	if input.ShippingFeeCents, err = convert("shipping_fee", r.ShippingFee); err != nil {
		return CreateOrderInput{}, err
	}
	if input.TaxCents, err = convert("tax_amount", r.TaxAmount); err != nil {
		return CreateOrderInput{}, err
	}
	if input.DiscountCents, err = convert("discount_amount", r.DiscountAmount); err != nil {
		return CreateOrderInput{}, err
	}
	if input.TotalCents, err = convert("total_amount", r.TotalAmount); err != nil {
		return CreateOrderInput{}, err
	}
	return input, nil
}

// CreateOrderResult is returned once the order has committed.
type CreateOrderResult struct {
	Success       bool      `json:"success"`
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	TrackingToken string    `json:"tracking_token"`
}

// QuotedLine is a line priced from authoritative catalog data.
type QuotedLine struct {
	ProductID      uuid.UUID
	SellerID       *uuid.UUID
	ProductName    string
	Quantity       int
	UnitPriceCents int64
	LineTotalCents int64
}

// Quote is the server-derived breakdown of a validated checkout.
type Quote struct {
	Lines            []QuotedLine
	SubtotalCents    int64
	ShippingFeeCents int64
	TaxCents         int64
	DiscountCents    int64
	TotalCents       int64
}

// SellerShare is the merchandise subtotal owed to one seller.
type SellerShare struct {
	SellerID      uuid.UUID
	SubtotalCents int64
}

// SellerShares groups line totals by seller in first-seen order. Lines with
// no seller belong to the platform and carry no commission record.
func (q Quote) SellerShares() []SellerShare {
	var shares []SellerShare
	index := map[uuid.UUID]int{}
	for _, line := range q.Lines {
		if line.SellerID == nil {
			continue
		}
		pos, ok := index[*line.SellerID]
		if !ok {
			pos = len(shares)
			index[*line.SellerID] = pos
			shares = append(shares, SellerShare{SellerID: *line.SellerID})
		}
		shares[pos].SubtotalCents += line.LineTotalCents
	}
	return shares
}
