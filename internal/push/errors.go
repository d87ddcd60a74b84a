package push

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeliveryError records a single failed delivery attempt sequence for one
// device token. These are data, not Go errors: the engine accumulates them
// and the caller retrieves them asynchronously.
type DeliveryError struct {
	// MessageID is the message's CustomIdentifier, when set.
	MessageID string `json:"messageId,omitempty"`
	// Token is the recipient device token the delivery failed for.
	Token string `json:"token"`
	// Status is the HTTP status returned by the gateway, or 0 for
	// transport-level failures.
	Status int `json:"status"`
	// Reason is the gateway reason string (e.g. "BadDeviceToken") or the
	// transport error text.
	Reason string `json:"reason"`
	// Attempts is the number of delivery attempts made.
	Attempts int `json:"attempts"`
	// Time is when the delivery was given up on.
	Time time.Time `json:"time"`
}

// String renders a compact human-readable form.
func (e DeliveryError) String() string {
	id := e.MessageID
	if id == "" {
		id = "-"
	}
	return fmt.Sprintf("message %s token %s: %s (status %d, %d attempts)",
		id, e.Token, e.Reason, e.Status, e.Attempts)
}

// EncodeDeliveryError serializes a record for the shared error slot.
func EncodeDeliveryError(e DeliveryError) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeDeliveryError deserializes a record from the shared error slot.
func DecodeDeliveryError(b []byte) (DeliveryError, error) {
	var e DeliveryError
	if err := json.Unmarshal(b, &e); err != nil {
		return DeliveryError{}, fmt.Errorf("push: decode delivery error: %w", err)
	}
	return e, nil
}
