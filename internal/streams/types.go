package streams

import "time"

// Stream name constants
const (
	StreamNotifications = "notifications"
	StreamEvents        = "events"
	StreamReceipts      = "notifications:receipts"
)

// GroupHubWorkers is the consumer group the hub reads receipts with.
const GroupHubWorkers = "hub-workers"

const (
	SchemaVersionV1 = "v1"
)

// Message type values carried in the "type" field of every entry.
const (
	TypeNotifications = "notifications"
)

// NotificationMessage announces a notification handed to the provider.
type NotificationMessage struct {
	DispatchID        string    `json:"dispatch_id"`
	RecipientClientID string    `json:"recipient_client_id"`
	SenderClientID    string    `json:"sender_client_id,omitempty"`
	ContentKey        string    `json:"content_key"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	SentAt            time.Time `json:"sent_at"`
}

// Receipt status values reported by the provider.
const (
	ReceiptDelivered = "delivered"
	ReceiptFailed    = "failed"
)

// Receipt is a provider delivery report read from the receipts stream.
type Receipt struct {
	DispatchID  string    `json:"dispatch_id"`
	Status      string    `json:"status"`
	Error       string    `json:"error"`
	DeliveredAt time.Time `json:"delivered_at"`
}
