package webhook

import (
	"encoding/json"
	"time"
)

// Notification is what the hub hands to the notification provider.
type Notification struct {
	DispatchID        string          `json:"dispatch_id"`
	RecipientClientID string          `json:"recipient_client_id"`
	SenderClientID    string          `json:"sender_client_id,omitempty"`
	ContentKey        string          `json:"content_key"`
	Title             string          `json:"title"`
	Body              string          `json:"body"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// Receipt is the provider's acknowledgement. Final delivery status arrives
// later on the receipts stream.
type Receipt struct {
	ProviderMessageID string    `json:"provider_message_id"`
	AcceptedAt        time.Time `json:"accepted_at"`
}
