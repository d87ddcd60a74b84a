package push

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// MaxPayloadBytes is the provider API limit for a notification payload.
const MaxPayloadBytes = 4096

// reserved root key of the APNs payload; custom properties may not use it.
const apsKey = "aps"

// Message is a single notification addressed to one or more device tokens.
// The dispatch core treats messages as opaque units; only the engine
// inspects them.
type Message struct {
	// Tokens are the recipient device tokens (64 hex characters each).
	Tokens []string `json:"tokens"`

	// Topic is the apns-topic header, normally the app bundle id. When
	// empty the engine's default topic is used.
	Topic string `json:"topic,omitempty"`

	// CustomIdentifier correlates delivery failures back to the caller.
	// It is never sent to the gateway.
	CustomIdentifier string `json:"customIdentifier,omitempty"`

	Title            string                 `json:"title,omitempty"`
	Body             string                 `json:"body,omitempty"`
	Badge            *int                   `json:"badge,omitempty"`
	Sound            string                 `json:"sound,omitempty"`
	Category         string                 `json:"category,omitempty"`
	ContentAvailable bool                   `json:"contentAvailable,omitempty"`
	Custom           map[string]interface{} `json:"custom,omitempty"`

	// Expiry is the apns-expiration value in epoch seconds; zero means
	// deliver once, immediately or not at all.
	Expiry int64 `json:"expiry,omitempty"`

	// Priority is the apns-priority header (5 or 10); zero defaults to 10.
	Priority int `json:"priority,omitempty"`

	// CollapseID is the apns-collapse-id header.
	CollapseID string `json:"collapseId,omitempty"`
}

// NewMessage creates a message for the given device tokens.
func NewMessage(tokens ...string) *Message {
	return &Message{Tokens: tokens}
}

// AddToken appends a recipient device token after validating its format.
func (m *Message) AddToken(token string) error {
	if err := ValidateToken(token); err != nil {
		return err
	}
	m.Tokens = append(m.Tokens, token)
	return nil
}

// SetCustomProperty attaches a custom root-level payload property.
func (m *Message) SetCustomProperty(name string, value interface{}) error {
	if name == apsKey {
		return fmt.Errorf("push: property name %q is reserved", apsKey)
	}
	if m.Custom == nil {
		m.Custom = make(map[string]interface{})
	}
	m.Custom[name] = value
	return nil
}

// ValidateToken checks that token is a 64-character hex device token.
func ValidateToken(token string) error {
	if len(token) != 64 {
		return fmt.Errorf("push: device token must be 64 hex characters, got %d", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		return fmt.Errorf("push: device token is not hex: %w", err)
	}
	return nil
}

// Validate checks the message is deliverable.
func (m *Message) Validate() error {
	if len(m.Tokens) == 0 {
		return fmt.Errorf("push: message has no recipients")
	}
	for _, tok := range m.Tokens {
		if err := ValidateToken(tok); err != nil {
			return err
		}
	}
	payload, err := m.Payload()
	if err != nil {
		return err
	}
	if len(payload) > MaxPayloadBytes {
		return fmt.Errorf("push: payload is %d bytes, limit %d", len(payload), MaxPayloadBytes)
	}
	return nil
}

// Payload renders the APNs JSON payload.
func (m *Message) Payload() ([]byte, error) {
	aps := make(map[string]interface{})

	switch {
	case m.Title != "":
		aps["alert"] = map[string]interface{}{"title": m.Title, "body": m.Body}
	case m.Body != "":
		aps["alert"] = m.Body
	}
	if m.Badge != nil {
		aps["badge"] = *m.Badge
	}
	if m.Sound != "" {
		aps["sound"] = m.Sound
	}
	if m.Category != "" {
		aps["category"] = m.Category
	}
	if m.ContentAvailable {
		aps["content-available"] = 1
	}

	root := make(map[string]interface{}, len(m.Custom)+1)
	for k, v := range m.Custom {
		if k == apsKey {
			continue
		}
		root[k] = v
	}
	root[apsKey] = aps
	return json.Marshal(root)
}

// Encode serializes the message for placement in a queue-store slot.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage deserializes a message from a queue-store record.
func DecodeMessage(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("push: decode message: %w", err)
	}
	return &m, nil
}
