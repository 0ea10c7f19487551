package orders

import "strconv"

const (
	TopicOrderPaid   = "pos.order.paid"
	TopicOrderVoided = "pos.order.voided"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }

// TopicFor maps an event type onto its topic; unknown types return "".
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderPaid:
		return TopicOrderPaid
	case EventOrderVoided:
		return TopicOrderVoided
	}
	return ""
}
