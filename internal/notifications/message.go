package notifications

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/payloads"
)

// Message is one rendered notification handed to a Dispatcher.
type Message struct {
	Audience    enums.NotificationAudience `json:"audience"`
	EventType   enums.OutboxEventType      `json:"event_type"`
	OrderNumber string                     `json:"order_number"`
	To          []string                   `json:"to"`
	Phone       string                     `json:"phone,omitempty"`
	Subject     string                     `json:"subject"`
	Body        string                     `json:"body"`
}

var statusCopy = map[enums.OrderStatus]struct {
	subject string
	body    string
}{
	enums.OrderStatusConfirmed: {
		subject: "Order %s confirmed",
		body:    "Hi %s, your order %s has been confirmed and will be prepared shortly.",
	},
	enums.OrderStatusProcessing: {
		subject: "Order %s is being prepared",
		body:    "Hi %s, we are preparing your order %s for shipment.",
	},
	enums.OrderStatusShipped: {
		subject: "Order %s has shipped",
		body:    "Hi %s, your order %s is on its way.",
	},
	enums.OrderStatusDelivered: {
		subject: "Order %s delivered",
		body:    "Hi %s, your order %s has been delivered. Thank you for shopping with us.",
	},
	enums.OrderStatusCancelled: {
		subject: "Order %s cancelled",
		body:    "Hi %s, your order %s has been cancelled. Contact support if this is unexpected.",
	},
}

// StatusChangedMessage renders the buyer message for a status transition.
// Statuses with no buyer-facing copy return ok=false.
func StatusChangedMessage(event payloads.OrderStatusChangedEvent) (Message, bool) {
	text, ok := statusCopy[event.NewStatus]
	if !ok || strings.TrimSpace(event.CustomerEmail) == "" {
		return Message{}, false
	}
	body := fmt.Sprintf(text.body, firstName(event.CustomerName), event.OrderNumber)
	if event.NewStatus == enums.OrderStatusShipped {
		if addr := event.ShippingAddress.OneLine(); addr != "" {
			body += " Delivery address: " + addr + "."
		}
	}
	return Message{
		Audience:    enums.NotificationAudienceBuyer,
		EventType:   enums.EventOrderStatusChanged,
		OrderNumber: event.OrderNumber,
		To:          []string{event.CustomerEmail},
		Phone:       event.CustomerPhone,
		Subject:     fmt.Sprintf(text.subject, event.OrderNumber),
		Body:        body,
	}, true
}

// OrderCreatedMessages renders the buyer receipt and, when admins are
// configured, the admin alert for a new order.
func OrderCreatedMessages(event payloads.OrderCreatedEvent, adminEmails []string, format func(amountMinor int64, currency string) string) []Message {
	if format == nil {
		format = func(amount int64, currency string) string { return fmt.Sprintf("%s %d", currency, amount) }
	}
	total := format(event.TotalCents, event.Currency)
	out := make([]Message, 0, 2)
	if strings.TrimSpace(event.CustomerEmail) != "" {
		out = append(out, Message{
			Audience:    enums.NotificationAudienceBuyer,
			EventType:   enums.EventOrderCreated,
			OrderNumber: event.OrderNumber,
			To:          []string{event.CustomerEmail},
			Phone:       event.CustomerPhone,
			Subject:     fmt.Sprintf("We received your order %s", event.OrderNumber),
			Body: fmt.Sprintf("Hi %s, thanks for your order %s. Total: %s. Payment: %s.",
				firstName(event.CustomerName), event.OrderNumber, total, paymentLabel(event.PaymentMethod)),
		})
	}
	admins := cleanRecipients(adminEmails)
	if len(admins) > 0 {
		out = append(out, Message{
			Audience:    enums.NotificationAudienceAdmin,
			EventType:   enums.EventOrderCreated,
			OrderNumber: event.OrderNumber,
			To:          admins,
			Subject:     fmt.Sprintf("New order %s", event.OrderNumber),
			Body: fmt.Sprintf("Order %s from %s (%s) for %s via %s. Commission %s across %d seller(s).",
				event.OrderNumber, event.CustomerName, event.CustomerEmail, total,
				paymentLabel(event.PaymentMethod), format(event.CommissionCents, event.Currency), len(event.SellerIDs)),
		})
	}
	return out
}

func paymentLabel(method enums.PaymentMethod) string {
	switch method {
	case enums.PaymentMethodGateway:
		return "card"
	case enums.PaymentMethodCashOnDelivery:
		return "cash on delivery"
	case enums.PaymentMethodBankTransfer:
		return "bank transfer"
	default:
		return string(method)
	}
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

func cleanRecipients(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
