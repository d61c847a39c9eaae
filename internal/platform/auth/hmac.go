package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eva-commerce/giftwrap/internal/platform/httpx"
)

const (
	defaultSignatureHeader = "X-Eva-Signature"
	defaultTimestampHeader = "X-Eva-Timestamp"
	defaultClockSkew       = 5 * time.Minute

	maxSignedBodySize = 1 << 20
)

// HMACConfig describes the shared-secret signature expected on host hook calls.
type HMACConfig struct {
	Secret          string
	SignatureHeader string
	TimestampHeader string
	ClockSkew       time.Duration
	Now             func() time.Time
}

// HookSignatureMiddleware validates the HMAC-SHA256 signature the host platform
// attaches to hook requests. The signature covers "<unix timestamp>.<body>".
// An empty secret disables verification, which is only intended for local runs.
func HookSignatureMiddleware(cfg HMACConfig) func(http.Handler) http.Handler {
	signatureHeader := headerOrDefault(cfg.SignatureHeader, defaultSignatureHeader)
	timestampHeader := headerOrDefault(cfg.TimestampHeader, defaultTimestampHeader)
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = defaultClockSkew
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	secret := strings.TrimSpace(cfg.Secret)

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			signature := strings.TrimSpace(r.Header.Get(signatureHeader))
			timestamp := strings.TrimSpace(r.Header.Get(timestampHeader))
			if signature == "" || timestamp == "" {
				httpx.WriteError(ctx, w, httpx.NewError("signature_required", "hook signature headers are required", http.StatusUnauthorized))
				return
			}

			unix, err := strconv.ParseInt(timestamp, 10, 64)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "timestamp must be a unix epoch value", http.StatusUnauthorized))
				return
			}
			issued := time.Unix(unix, 0)
			if delta := now().Sub(issued); delta > skew || delta < -skew {
				httpx.WriteError(ctx, w, httpx.NewError("signature_expired", "hook signature timestamp outside the accepted window", http.StatusUnauthorized))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodySize))
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !validSignature(secret, timestamp, body, signature) {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "hook signature mismatch", http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Sign computes the hex signature for the given timestamp and body. Exposed for
// clients and tests producing signed hook requests.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret, timestamp string, body []byte, provided string) bool {
	expected := Sign(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

func headerOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
