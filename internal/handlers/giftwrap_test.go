package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
	"github.com/eva-commerce/giftwrap/internal/platform/requestctx"
	"github.com/eva-commerce/giftwrap/internal/platform/session"
	"github.com/eva-commerce/giftwrap/internal/services"
)

type stubReconcileService struct {
	toggleFn func(ctx context.Context, sessionID string, value bool) (services.Resolution, error)
	cartFn   func(ctx context.Context, input services.CartUpdateInput) (services.Resolution, error)
	orderFn  func(ctx context.Context, input services.OrderCreateInput) (services.OrderResult, error)
}

func (s *stubReconcileService) ApplyToggle(ctx context.Context, sessionID string, value bool) (services.Resolution, error) {
	if s.toggleFn != nil {
		return s.toggleFn(ctx, sessionID, value)
	}
	return services.Resolution{SessionID: sessionID, GiftWrap: value, Changed: true}, nil
}

func (s *stubReconcileService) ApplyCartUpdate(ctx context.Context, input services.CartUpdateInput) (services.Resolution, error) {
	if s.cartFn != nil {
		return s.cartFn(ctx, input)
	}
	return services.Resolution{SessionID: input.SessionID}, nil
}

func (s *stubReconcileService) ApplyOrderCreate(ctx context.Context, input services.OrderCreateInput) (services.OrderResult, error) {
	if s.orderFn != nil {
		return s.orderFn(ctx, input)
	}
	return services.OrderResult{}, nil
}

type stubPreference struct {
	readFn func(ctx context.Context, sessionID string) (bool, error)
}

func (s *stubPreference) Read(ctx context.Context, sessionID string) (bool, error) {
	if s.readFn != nil {
		return s.readFn(ctx, sessionID)
	}
	return false, nil
}

func (s *stubPreference) Write(context.Context, string, bool) error { return nil }

func (s *stubPreference) EnsureSession(sessionID string) string {
	if sessionID == "" {
		return "minted"
	}
	return sessionID
}

func giftWrapRouterForTest(h *GiftWrapHandlers) chi.Router {
	r := chi.NewRouter()
	r.Route("/gift-wrap", h.Routes)
	return r
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestToggleWritesPreference(t *testing.T) {
	var gotSession string
	var gotValue bool
	h := NewGiftWrapHandlers(GiftWrapHandlersDeps{
		Reconcile: &stubReconcileService{
			toggleFn: func(_ context.Context, sessionID string, value bool) (services.Resolution, error) {
				gotSession = sessionID
				gotValue = value
				return services.Resolution{SessionID: "sess-1", GiftWrap: value, Changed: true}, nil
			},
		},
		Preference: &stubPreference{},
	})

	req := httptest.NewRequest(http.MethodPost, "/gift-wrap/toggle", strings.NewReader(`{"enabled":true}`))
	req = req.WithContext(requestctx.WithSessionID(req.Context(), "sess-1"))
	rr := httptest.NewRecorder()
	giftWrapRouterForTest(h).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotSession != "sess-1" || !gotValue {
		t.Fatalf("unexpected toggle call session=%q value=%v", gotSession, gotValue)
	}
	payload := decodeBody(t, rr)
	if payload["success"] != true || payload["gift_wrap"] != true {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestToggleIssuesCookieForMintedSession(t *testing.T) {
	h := NewGiftWrapHandlers(GiftWrapHandlersDeps{
		Reconcile: &stubReconcileService{
			toggleFn: func(context.Context, string, bool) (services.Resolution, error) {
				return services.Resolution{SessionID: "fresh-session", GiftWrap: true}, nil
			},
		},
		Sessions: session.Config{CookieName: "gw_session"},
	})

	req := httptest.NewRequest(http.MethodPost, "/gift-wrap/toggle", strings.NewReader(`{"enabled":true}`))
	rr := httptest.NewRecorder()
	giftWrapRouterForTest(h).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	cookie := rr.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, "gw_session=fresh-session") {
		t.Fatalf("expected session cookie issued, got %q", cookie)
	}
}

func TestToggleValidation(t *testing.T) {
	h := NewGiftWrapHandlers(GiftWrapHandlersDeps{Reconcile: &stubReconcileService{}})
	router := giftWrapRouterForTest(h)

	cases := []struct {
		name string
		body string
	}{
		{name: "missing field", body: `{}`},
		{name: "string value", body: `{"enabled":"true"}`},
		{name: "number value", body: `{"enabled":1}`},
		{name: "null value", body: `{"enabled":null}`},
		{name: "not an object", body: `true`},
		{name: "broken json", body: `{"enabled":`},
		{name: "empty body", body: ``},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/gift-wrap/toggle", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			payload := decodeBody(t, rr)
			if payload["error"] != "invalid_request" {
				t.Fatalf("unexpected error payload %+v", payload)
			}
		})
	}
}

func TestStatusWithoutSessionIsFalse(t *testing.T) {
	h := NewGiftWrapHandlers(GiftWrapHandlersDeps{Preference: &stubPreference{}})

	req := httptest.NewRequest(http.MethodGet, "/gift-wrap/status", nil)
	rr := httptest.NewRecorder()
	giftWrapRouterForTest(h).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["enabled"] != false {
		t.Fatalf("expected false status, got %+v", payload)
	}
}

func TestStatusReflectsStoredPreference(t *testing.T) {
	h := NewGiftWrapHandlers(GiftWrapHandlersDeps{
		Preference: &stubPreference{
			readFn: func(_ context.Context, sessionID string) (bool, error) {
				return sessionID == "sess-1", nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/gift-wrap/status", nil)
	req = req.WithContext(requestctx.WithSessionID(req.Context(), "sess-1"))
	rr := httptest.NewRecorder()
	giftWrapRouterForTest(h).ServeHTTP(rr, req)

	payload := decodeBody(t, rr)
	if payload["enabled"] != true {
		t.Fatalf("expected true status, got %+v", payload)
	}
}

func TestStatusDegradesWhenStoreFails(t *testing.T) {
	h := NewGiftWrapHandlers(GiftWrapHandlersDeps{
		Preference: &stubPreference{
			readFn: func(context.Context, string) (bool, error) {
				return false, services.ErrPreferenceUnavailable
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/gift-wrap/status", nil)
	rr := httptest.NewRecorder()
	giftWrapRouterForTest(h).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status must degrade to false, got %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["enabled"] != false {
		t.Fatalf("expected degraded false, got %+v", payload)
	}
}

func TestCheckoutFieldDeclaresOrderMetaKey(t *testing.T) {
	settingsSvc, err := services.NewSettingsService(services.SettingsServiceDeps{
		Repository: &memSettingsRepo{},
		Currency:   "EUR",
		Locale:     "it",
		Clock:      func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewSettingsService: %v", err)
	}

	h := NewGiftWrapHandlers(GiftWrapHandlersDeps{
		Settings: settingsSvc,
		Preference: &stubPreference{
			readFn: func(context.Context, string) (bool, error) { return true, nil },
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/gift-wrap/checkout-field", nil)
	rr := httptest.NewRecorder()
	giftWrapRouterForTest(h).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["id"] != domain.CheckoutFieldID {
		t.Fatalf("unexpected field id %+v", payload["id"])
	}
	if payload["type"] != "checkbox" {
		t.Fatalf("unexpected field type %+v", payload["type"])
	}
	if payload["order_meta_key"] != domain.OrderMetaKey {
		t.Fatalf("expected order meta key %q, got %+v", domain.OrderMetaKey, payload["order_meta_key"])
	}
	if payload["default"] != true {
		t.Fatalf("expected default to mirror stored preference, got %+v", payload["default"])
	}
}
