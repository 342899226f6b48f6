package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-settlement/api/responses"
	"github.com/angelmondragon/storefront-settlement/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-settlement/internal/checkout"
	ordersvc "github.com/angelmondragon/storefront-settlement/internal/orders"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/types"
)

type createOrderRequest struct {
	CustomerName     string                 `json:"customer_name" validate:"required,max=200"`
	CustomerEmail    string                 `json:"customer_email" validate:"required,email"`
	CustomerPhone    string                 `json:"customer_phone" validate:"required,max=32"`
	ShippingAddress  *types.ShippingAddress `json:"shipping_address" validate:"required"`
	PaymentMethod    string                 `json:"payment_method" validate:"required,payment_method"`
	PaymentReference string                 `json:"payment_reference,omitempty" validate:"max=128"`
	Items            []orderLineRequest     `json:"items" validate:"required,min=1,dive"`
	ShippingFee      decimal.Decimal        `json:"shipping_fee"`
	TaxAmount        decimal.Decimal        `json:"tax_amount"`
	DiscountAmount   decimal.Decimal        `json:"discount_amount"`
	TotalAmount      decimal.Decimal        `json:"total_amount"`
}

type orderLineRequest struct {
	ProductID   uuid.UUID       `json:"product_id" validate:"required"`
	ProductName string          `json:"product_name" validate:"max=200"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
	Price       decimal.Decimal `json:"price"`
}

func (req createOrderRequest) toRequest() (checkoutsvc.OrderRequest, error) {
	method, err := enums.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return checkoutsvc.OrderRequest{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]string{"payment_method": "is invalid"})
	}
	items := make([]checkoutsvc.LineRequest, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, checkoutsvc.LineRequest{
			ProductID:   line.ProductID,
			ProductName: validators.SanitizeString(line.ProductName, 200),
			Quantity:    line.Quantity,
			Price:       line.Price,
		})
	}
	return checkoutsvc.OrderRequest{
		CustomerName:     validators.SanitizeString(req.CustomerName, 200),
		CustomerEmail:    strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:    validators.SanitizeString(req.CustomerPhone, 32),
		ShippingAddress:  req.ShippingAddress,
		PaymentMethod:    method,
		PaymentReference: strings.TrimSpace(req.PaymentReference),
		Items:            items,
		ShippingFee:      req.ShippingFee,
		TaxAmount:        req.TaxAmount,
		DiscountAmount:   req.DiscountAmount,
		TotalAmount:      req.TotalAmount,
	}, nil
}

// CreateOrder submits the caller's cart. The order number and the one-time
// tracking token are only ever returned here.
func CreateOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := payload.toRequest()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SubmitOrder(r.Context(), buyerID, order)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// TrackOrder resolves a public tracking token.
func TrackOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		token := strings.TrimSpace(chi.URLParam(r, "token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tracking token is required"))
			return
		}
		tracked, err := svc.TrackOrder(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tracked)
	}
}
