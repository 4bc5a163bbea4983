package alerts

import (
	"strings"

	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

// Task type constants
const (
	TaskRequestSubmitted = "event:request_submitted"
	TaskRequestAccepted  = "event:request_accepted"
	TaskRequestDeclined  = "event:request_declined"
	TaskRequestExpired   = "event:request_expired"
	TaskOrderDelivered   = "event:order_delivered"
	TaskOrderCompleted   = "event:order_completed"
	TaskOrderCancelled   = "event:order_cancelled"
	TaskReviewSubmitted  = "event:review_submitted"
)

var taskTypes = map[marketplace.EventType]string{
	marketplace.EventRequestSubmitted: TaskRequestSubmitted,
	marketplace.EventRequestAccepted:  TaskRequestAccepted,
	marketplace.EventRequestDeclined:  TaskRequestDeclined,
	marketplace.EventRequestExpired:   TaskRequestExpired,
	marketplace.EventOrderDelivered:   TaskOrderDelivered,
	marketplace.EventOrderCompleted:   TaskOrderCompleted,
	marketplace.EventOrderCancelled:   TaskOrderCancelled,
	marketplace.EventReviewSubmitted:  TaskReviewSubmitted,
}

// TaskType returns the queue task name for an event type. Unknown types get
// a name derived from the event itself.
func TaskType(t marketplace.EventType) string {
	if name, ok := taskTypes[t]; ok {
		return name
	}
	return "event:" + strings.ReplaceAll(string(t), ".", "_")
}

// Recipient returns the user an event is addressed to: the seller for
// incoming work and reviews, the buyer for everything else.
func Recipient(ev marketplace.Event) string {
	switch ev.Type {
	case marketplace.EventRequestSubmitted, marketplace.EventOrderCompleted, marketplace.EventReviewSubmitted:
		return ev.SellerID
	default:
		return ev.BuyerID
	}
}
