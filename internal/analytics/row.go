package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
)

// SettlementSchema is the settlement events table layout. It mirrors the
// bigquery tags on settlementEventRow.
var SettlementSchema = cbigquery.Schema{
	{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
	{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
	{Name: "order_id", Type: cbigquery.StringFieldType},
	{Name: "seller_id", Type: cbigquery.StringFieldType},
	{Name: "commission_id", Type: cbigquery.StringFieldType},
	{Name: "currency", Type: cbigquery.StringFieldType},
	{Name: "total_cents", Type: cbigquery.IntegerFieldType},
	{Name: "commission_cents", Type: cbigquery.IntegerFieldType},
	{Name: "seller_amount_cents", Type: cbigquery.IntegerFieldType},
	{Name: "status", Type: cbigquery.StringFieldType},
	{Name: "payment_method", Type: cbigquery.StringFieldType},
	{Name: "actor_user_id", Type: cbigquery.StringFieldType},
	{Name: "payload", Type: cbigquery.JSONFieldType},
}

// SettlementPartitionField is the column the table is day-partitioned on.
const SettlementPartitionField = "occurred_at"

// settlementEventRow is one row of the settlement events table. Amount columns
// are null when the event does not carry them.
type settlementEventRow struct {
	EventID           string               `bigquery:"event_id"`
	EventType         string               `bigquery:"event_type"`
	OccurredAt        time.Time            `bigquery:"occurred_at"`
	OrderID           cbigquery.NullString `bigquery:"order_id"`
	SellerID          cbigquery.NullString `bigquery:"seller_id"`
	CommissionID      cbigquery.NullString `bigquery:"commission_id"`
	Currency          cbigquery.NullString `bigquery:"currency"`
	TotalCents        cbigquery.NullInt64  `bigquery:"total_cents"`
	CommissionCents   cbigquery.NullInt64  `bigquery:"commission_cents"`
	SellerAmountCents cbigquery.NullInt64  `bigquery:"seller_amount_cents"`
	Status            cbigquery.NullString `bigquery:"status"`
	PaymentMethod     cbigquery.NullString `bigquery:"payment_method"`
	ActorUserID       cbigquery.NullString `bigquery:"actor_user_id"`
	Payload           cbigquery.NullJSON   `bigquery:"payload"`
}

// eventFields is the union of the settlement payload fields the table projects.
type eventFields struct {
	OrderID           string              `json:"order_id"`
	SellerID          string              `json:"seller_id"`
	CommissionID      string              `json:"commission_id"`
	Currency          string              `json:"currency"`
	TotalCents        *int64              `json:"total_cents"`
	CommissionCents   *int64              `json:"commission_cents"`
	SellerAmountCents *int64              `json:"seller_amount_cents"`
	NewStatus         string              `json:"new_status"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method"`
}

func buildRow(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*settlementEventRow, error) {
	var fields eventFields
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &fields); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}

	row := &settlementEventRow{
		EventID:           envelope.EventID,
		EventType:         string(eventType),
		OccurredAt:        envelope.OccurredAt.UTC(),
		OrderID:           nullString(fields.OrderID),
		SellerID:          nullString(fields.SellerID),
		CommissionID:      nullString(fields.CommissionID),
		Currency:          nullString(fields.Currency),
		TotalCents:        nullInt(fields.TotalCents),
		CommissionCents:   nullInt(fields.CommissionCents),
		SellerAmountCents: nullInt(fields.SellerAmountCents),
		Status:            nullString(statusFor(eventType, fields)),
		PaymentMethod:     nullString(string(fields.PaymentMethod)),
	}
	if envelope.Actor != nil {
		row.ActorUserID = nullString(envelope.Actor.UserID.String())
	}
	if len(envelope.Data) > 0 {
		row.Payload = cbigquery.NullJSON{JSONVal: string(envelope.Data), Valid: true}
	}
	return row, nil
}

func statusFor(eventType enums.OutboxEventType, fields eventFields) string {
	switch eventType {
	case enums.EventOrderCreated:
		return string(enums.OrderStatusPending)
	case enums.EventOrderStatusChanged:
		return fields.NewStatus
	case enums.EventPayoutPaid:
		return string(enums.CommissionStatusPaid)
	case enums.EventPayoutRejected:
		return string(enums.CommissionStatusRejected)
	case enums.EventCommissionBackfill:
		return string(enums.CommissionStatusPending)
	}
	return ""
}

func nullString(v string) cbigquery.NullString {
	v = strings.TrimSpace(v)
	return cbigquery.NullString{StringVal: v, Valid: v != ""}
}

func nullInt(v *int64) cbigquery.NullInt64 {
	if v == nil {
		return cbigquery.NullInt64{}
	}
	return cbigquery.NullInt64{Int64: *v, Valid: true}
}
