package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-settlement/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
)

type stubCatalog map[uuid.UUID]catalog.Product

func (s stubCatalog) GetProducts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	out := map[uuid.UUID]catalog.Product{}
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func catalogWith(products ...catalog.Product) stubCatalog {
	out := stubCatalog{}
	for _, p := range products {
		out[p.ID] = p
	}
	return out
}

func product(price int64, stock int) catalog.Product {
	seller := uuid.New()
	return catalog.Product{ID: uuid.New(), SellerID: &seller, Name: "Adire scarf", PriceCents: price, StockQuantity: stock, Active: true}
}

func TestValidateScenarioWithTax(t *testing.T) {
	p := product(5000, 10)
	v, err := NewValidator(catalogWith(p))
	require.NoError(t, err)

	input := CreateOrderInput{
		Items:      []LineInput{{ProductID: p.ID, Quantity: 2, UnitPriceCents: 5000}},
		TaxCents:   800,
		TotalCents: 10800,
	}
	quote, err := v.Validate(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, int64(10000), quote.SubtotalCents)
	require.Equal(t, int64(10800), quote.TotalCents)

	input.TotalCents = 10000
	_, err = v.Validate(context.Background(), input)
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonTotalMismatch))
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestValidateToleratesOneMinorUnit(t *testing.T) {
	p := product(999, 5)
	v, _ := NewValidator(catalogWith(p))
	_, err := v.Validate(context.Background(), CreateOrderInput{
		Items:      []LineInput{{ProductID: p.ID, Quantity: 1, UnitPriceCents: 1000}},
		TotalCents: 1000,
	})
	require.NoError(t, err)
}

func TestValidateRejections(t *testing.T) {
	p := product(5000, 2)
	inactive := product(100, 5)
	inactive.Active = false
	v, _ := NewValidator(catalogWith(p, inactive))

	cases := []struct {
		name   string
		input  CreateOrderInput
		reason pkgerrors.Reason
	}{
		{
			name:   "price tampered",
			input:  CreateOrderInput{Items: []LineInput{{ProductID: p.ID, Quantity: 1, UnitPriceCents: 100}}, TotalCents: 100},
			reason: pkgerrors.ReasonPriceMismatch,
		},
		{
			name:   "too many units",
			input:  CreateOrderInput{Items: []LineInput{{ProductID: p.ID, Quantity: 3, UnitPriceCents: 5000}}, TotalCents: 15000},
			reason: pkgerrors.ReasonInsufficientStock,
		},
		{
			name: "split lines exceed stock",
			input: CreateOrderInput{Items: []LineInput{
				{ProductID: p.ID, Quantity: 2, UnitPriceCents: 5000},
				{ProductID: p.ID, Quantity: 1, UnitPriceCents: 5000},
			}, TotalCents: 15000},
			reason: pkgerrors.ReasonInsufficientStock,
		},
		{
			name:   "inactive product",
			input:  CreateOrderInput{Items: []LineInput{{ProductID: inactive.ID, Quantity: 1, UnitPriceCents: 100}}, TotalCents: 100},
			reason: pkgerrors.ReasonProductUnavailable,
		},
		{
			name:   "unknown product",
			input:  CreateOrderInput{Items: []LineInput{{ProductID: uuid.New(), Quantity: 1, UnitPriceCents: 100}}, TotalCents: 100},
			reason: pkgerrors.ReasonProductUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tc.input)
			require.Error(t, err)
			require.Equal(t, tc.reason, pkgerrors.ReasonOf(err))
		})
	}
}

func TestValidateRejectsMalformedInput(t *testing.T) {
	p := product(5000, 2)
	v, _ := NewValidator(catalogWith(p))

	inputs := map[string]CreateOrderInput{
		"empty cart":        {},
		"zero quantity":     {Items: []LineInput{{ProductID: p.ID, Quantity: 0, UnitPriceCents: 5000}}},
		"negative tax":      {Items: []LineInput{{ProductID: p.ID, Quantity: 1, UnitPriceCents: 5000}}, TaxCents: -1},
		"missing product":   {Items: []LineInput{{Quantity: 1}}},
		"oversize discount": {Items: []LineInput{{ProductID: p.ID, Quantity: 1, UnitPriceCents: 5000}}, DiscountCents: 6000},
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), input)
			require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}
}

func TestSellerSharesGroupsBySeller(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	quote := Quote{Lines: []QuotedLine{
		{SellerID: &a, LineTotalCents: 1000},
		{SellerID: &b, LineTotalCents: 300},
		{SellerID: nil, LineTotalCents: 50},
		{SellerID: &a, LineTotalCents: 200},
	}}
	shares := quote.SellerShares()
	require.Equal(t, []SellerShare{{SellerID: a, SubtotalCents: 1200}, {SellerID: b, SubtotalCents: 300}}, shares)
}
