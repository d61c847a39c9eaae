package hosthooks

import (
	"testing"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
)

func TestParsePayloadSignals(t *testing.T) {
	cases := []struct {
		name          string
		body          string
		wantField     domain.Signal
		wantExtension domain.Signal
	}{
		{
			name:          "both signals explicit",
			body:          `{"session_id":"s1","additional_fields":{"eva/gift-wrap":false},"extensions":{"eva":{"gift_wrap":true}}}`,
			wantField:     domain.PresentSignal(false),
			wantExtension: domain.PresentSignal(true),
		},
		{
			name:          "field absent extension present",
			body:          `{"session_id":"s1","extensions":{"eva":{"gift_wrap":true}}}`,
			wantField:     domain.AbsentSignal(),
			wantExtension: domain.PresentSignal(true),
		},
		{
			name:          "no signals",
			body:          `{"session_id":"s1","additional_fields":{"other/field":true}}`,
			wantField:     domain.AbsentSignal(),
			wantExtension: domain.AbsentSignal(),
		},
		{
			name:          "null field key is absent",
			body:          `{"additional_fields":{"eva/gift-wrap":null}}`,
			wantField:     domain.AbsentSignal(),
			wantExtension: domain.AbsentSignal(),
		},
		{
			name:          "null field key does not shadow extension",
			body:          `{"additional_fields":{"eva/gift-wrap":null},"extensions":{"eva":{"gift_wrap":true}}}`,
			wantField:     domain.AbsentSignal(),
			wantExtension: domain.PresentSignal(true),
		},
		{
			name:          "null extension key is absent",
			body:          `{"extensions":{"eva":{"gift_wrap":null}}}`,
			wantField:     domain.AbsentSignal(),
			wantExtension: domain.AbsentSignal(),
		},
		{
			name:          "string truthiness",
			body:          `{"additional_fields":{"eva/gift-wrap":"1"},"extensions":{"eva":{"gift_wrap":"no"}}}`,
			wantField:     domain.PresentSignal(true),
			wantExtension: domain.PresentSignal(false),
		},
		{
			name:          "numeric truthiness",
			body:          `{"additional_fields":{"eva/gift-wrap":1},"extensions":{"eva":{"gift_wrap":0}}}`,
			wantField:     domain.PresentSignal(true),
			wantExtension: domain.PresentSignal(false),
		},
		{
			name:          "foreign namespace ignored",
			body:          `{"extensions":{"other":{"gift_wrap":true}}}`,
			wantField:     domain.AbsentSignal(),
			wantExtension: domain.AbsentSignal(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := ParsePayload([]byte(tc.body))
			if err != nil {
				t.Fatalf("ParsePayload: %v", err)
			}
			if payload.Signals.Field != tc.wantField {
				t.Fatalf("field signal = %+v, want %+v", payload.Signals.Field, tc.wantField)
			}
			if payload.Signals.Extension != tc.wantExtension {
				t.Fatalf("extension signal = %+v, want %+v", payload.Signals.Extension, tc.wantExtension)
			}
		})
	}
}

func TestParsePayloadMetadata(t *testing.T) {
	body := `{"session_id":" s1 ","order_id":"ord-9","context":"background","fees":["shipping","eva_gift_wrap_fee"]}`
	payload, err := ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload.SessionID != "s1" {
		t.Fatalf("expected trimmed session id, got %q", payload.SessionID)
	}
	if payload.OrderID != "ord-9" {
		t.Fatalf("unexpected order id %q", payload.OrderID)
	}
	if payload.Context != domain.CalcContextBackground {
		t.Fatalf("unexpected context %q", payload.Context)
	}
	if len(payload.Fees) != 2 {
		t.Fatalf("unexpected fees %+v", payload.Fees)
	}
}

func TestParsePayloadUnknownContextDefaultsToStorefront(t *testing.T) {
	payload, err := ParsePayload([]byte(`{"context":"cron"}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload.Context != domain.CalcContextStorefront {
		t.Fatalf("unexpected context %q", payload.Context)
	}
}

func TestParsePayloadRejectsBrokenJSON(t *testing.T) {
	if _, err := ParsePayload([]byte(`{`)); err == nil {
		t.Fatalf("expected error for broken body")
	}
}
