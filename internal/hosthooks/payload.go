// Package hosthooks receives the host platform's lifecycle events and maps
// their payloads onto the reconciliation engine's inputs.
package hosthooks

import (
	"encoding/json"
	"strings"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
)

// Payload is the decoded shape shared by the cart and order hook events.
type Payload struct {
	SessionID string
	OrderID   string
	Context   domain.CalcContext
	Signals   domain.UpdateSignals
	Fees      []string
}

type rawPayload struct {
	SessionID        string                     `json:"session_id"`
	OrderID          string                     `json:"order_id"`
	Context          string                     `json:"context"`
	AdditionalFields map[string]json.RawMessage `json:"additional_fields"`
	Extensions       map[string]json.RawMessage `json:"extensions"`
	Fees             []string                   `json:"fees"`
}

// ParsePayload decodes a hook delivery body. Signal values of any JSON type
// are coerced to booleans rather than rejected; only a syntactically broken
// body fails.
func ParsePayload(body []byte) (Payload, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}, err
	}

	payload := Payload{
		SessionID: strings.TrimSpace(raw.SessionID),
		OrderID:   strings.TrimSpace(raw.OrderID),
		Context:   domain.ParseCalcContext(raw.Context),
		Fees:      raw.Fees,
	}

	// The structured field wins only when its key carries a real value. A
	// key set to null means the host had nothing to say, same as an absent
	// key, so it must not shadow the extension signal.
	if value, ok := raw.AdditionalFields[domain.CheckoutFieldID]; ok && !isNull(value) {
		payload.Signals.Field = domain.PresentSignal(truthy(value))
	}

	if ns, ok := raw.Extensions[domain.ExtensionNamespace]; ok {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(ns, &fields); err == nil {
			if value, ok := fields[domain.SessionKey]; ok && !isNull(value) {
				payload.Signals.Extension = domain.PresentSignal(truthy(value))
			}
		}
	}

	return payload, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// truthy coerces an arbitrary JSON value to a boolean. Booleans map onto
// themselves, numbers are true when non-zero, strings follow common boolean
// spellings and fall back to non-emptiness.
func truthy(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "false", "0", "no", "off":
			return false
		default:
			return true
		}
	}

	return len(raw) > 0
}
