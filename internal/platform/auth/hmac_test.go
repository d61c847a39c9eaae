package auth

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func signedRequest(t *testing.T, secret string, at time.Time, body []byte) *http.Request {
	t.Helper()
	timestamp := fmt.Sprintf("%d", at.Unix())
	req := httptest.NewRequest(http.MethodPost, "/hooks/cart-updated", bytes.NewReader(body))
	req.Header.Set(defaultTimestampHeader, timestamp)
	req.Header.Set(defaultSignatureHeader, Sign(secret, timestamp, body))
	return req
}

func TestHookSignatureMiddlewareAcceptsValidSignature(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	body := []byte(`{"session_id":"s1"}`)

	var sawBody []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		sawBody = buf.Bytes()
		w.WriteHeader(http.StatusOK)
	})

	mw := HookSignatureMiddleware(HMACConfig{Secret: "topsecret", Now: func() time.Time { return now }})
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, signedRequest(t, "topsecret", now, body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !bytes.Equal(sawBody, body) {
		t.Fatalf("expected body restored for downstream handler, got %q", sawBody)
	}
}

func TestHookSignatureMiddlewareRejectsUnsignedRequest(t *testing.T) {
	mw := HookSignatureMiddleware(HMACConfig{Secret: "topsecret"})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hooks/cart-updated", bytes.NewReader([]byte(`{}`)))

	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run for unsigned request")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHookSignatureMiddlewareRejectsWrongSecret(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mw := HookSignatureMiddleware(HMACConfig{Secret: "topsecret", Now: func() time.Time { return now }})
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run for a bad signature")
	})).ServeHTTP(rr, signedRequest(t, "othersecret", now, []byte(`{}`)))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHookSignatureMiddlewareRejectsStaleTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mw := HookSignatureMiddleware(HMACConfig{Secret: "topsecret", Now: func() time.Time { return now }})
	rr := httptest.NewRecorder()

	stale := now.Add(-time.Hour)
	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run for a stale signature")
	})).ServeHTTP(rr, signedRequest(t, "topsecret", stale, []byte(`{}`)))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHookSignatureMiddlewareDisabledWithoutSecret(t *testing.T) {
	mw := HookSignatureMiddleware(HMACConfig{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hooks/cart-updated", bytes.NewReader([]byte(`{}`)))

	called := false
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)

	if !called {
		t.Fatalf("expected handler to run when no secret is configured")
	}
}
