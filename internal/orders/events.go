package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPaid   = "OrderPaid"
	EventOrderVoided = "OrderVoided"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "pos-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer string, orderID int64, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: fmt.Sprint(orderID),
		Payload:       b,
	}, nil
}

// ---- Payload tipe per event ----

type ItemQty struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type OrderPaidPayload struct {
	OrderID         int64     `json:"order_id"`
	TransactionCode string    `json:"transaction_code"`
	CashierID       int64     `json:"cashier_id"`
	Items           []ItemQty `json:"items"`
	Total           string    `json:"total"` // decimal string
	PaidAt          time.Time `json:"paid_at"`
}

type OrderVoidedPayload struct {
	OrderID   int64     `json:"order_id"`
	VoidedBy  int64     `json:"voided_by"`
	Restocked []ItemQty `json:"restocked,omitempty"` // hanya produk yang managed saat void
	VoidedAt  time.Time `json:"voided_at"`
}
