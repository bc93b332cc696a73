// Package webhook receives Notion webhook deliveries, verifies their
// signatures, deduplicates events and dispatches sync tasks off the request
// path.
package webhook

// Event types routed to sync tasks. Other types are acknowledged and
// ignored.
const (
	EventPropertiesUpdated = "page.properties_updated"
	EventContentUpdated    = "page.content_updated"
)

// SignatureHeader carries the hex HMAC-SHA-256 of the raw request body,
// optionally prefixed with "sha256=".
const SignatureHeader = "X-Notion-Signature"

// Payload is the inbound webhook body. Notion sends either a one-time
// verification handshake or a batch of events.
type Payload struct {
	VerificationToken string  `json:"verification_token,omitempty"`
	Events            []Event `json:"events,omitempty"`
}

// Event is one entry of a webhook batch.
type Event struct {
	Type string    `json:"type"`
	ID   string    `json:"id"`
	Data EventData `json:"data"`
}

// EventData carries the subject of the event.
type EventData struct {
	PageID string `json:"page_id"`
}
