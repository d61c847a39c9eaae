// Package idempotency deduplicates host hook deliveries. The host retries a
// hook until it gets an answer, reusing the same delivery identifier, so a
// replayed delivery must get the originally stored response instead of being
// processed a second time.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Status represents the lifecycle state of a delivery record.
type Status string

const (
	// DefaultTTL is the default duration that delivery records are retained.
	DefaultTTL = 24 * time.Hour
	// StatusPending indicates the delivery has been reserved but its response
	// is not stored yet.
	StatusPending Status = "pending"
	// StatusCompleted indicates the response is stored and can be replayed.
	StatusCompleted Status = "completed"
)

// ReservationState describes the outcome of attempting to reserve a delivery.
type ReservationState int

const (
	// ReservationStateNew means the delivery has not been seen and the caller
	// may process it.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a stored response should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means another request is currently processing
	// this delivery.
	ReservationStatePending
)

// DeliveryKey identifies one hook delivery. Scope separates deliveries of
// different shopping sessions that happen to reuse an identifier.
type DeliveryKey struct {
	ID    string
	Scope string
	Event string
}

// Reservation is the result of reserving a delivery, carrying the stored
// record when one exists.
type Reservation struct {
	State    ReservationState
	Delivery Delivery
}

// Delivery captures the persisted processing state of a hook delivery.
type Delivery struct {
	ID             string
	Scope          string
	Event          string
	Fingerprint    string
	Status         Status
	ResponseStatus int
	ContentType    string
	ResponseBody   []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time
}

// Response is the answer stored for future replays. Hook responses are small
// JSON bodies, so a content type and body cover the surface.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Store persists delivery reservations and their responses.
type Store interface {
	Reserve(ctx context.Context, key DeliveryKey, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	Complete(ctx context.Context, key DeliveryKey, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key DeliveryKey) error
}

// ErrFingerprintMismatch is returned when a delivery identifier is reused
// with a different request body.
var ErrFingerprintMismatch = errors.New("idempotency: delivery id reused for a different request")

func (k DeliveryKey) docID() string {
	return sha256Hex([]byte(strings.TrimSpace(k.ID) + "|" + strings.TrimSpace(k.Scope)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newDelivery(key DeliveryKey, fingerprint string, now time.Time, ttl time.Duration) Delivery {
	return Delivery{
		ID:          key.ID,
		Scope:       key.Scope,
		Event:       key.Event,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (d Delivery) expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}
