package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps delivery records in memory, for tests and local runs.
// Expired records are pruned lazily on reservation.
type MemoryStore struct {
	mu         sync.Mutex
	deliveries map[string]Delivery
}

// NewMemoryStore constructs an empty memory-backed delivery store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{deliveries: make(map[string]Delivery)}
}

// Reserve implements the Store interface.
func (s *MemoryStore) Reserve(_ context.Context, key DeliveryKey, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(now)

	id := key.docID()
	delivery, ok := s.deliveries[id]
	if !ok {
		delivery = newDelivery(key, fingerprint, now, ttl)
		s.deliveries[id] = delivery
		return Reservation{State: ReservationStateNew, Delivery: delivery}, nil
	}

	if delivery.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if delivery.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Delivery: delivery}, nil
	}
	return Reservation{State: ReservationStatePending, Delivery: delivery}, nil
}

// Complete implements the Store interface.
func (s *MemoryStore) Complete(_ context.Context, key DeliveryKey, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.docID()
	delivery, ok := s.deliveries[id]
	if ok && delivery.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	if !ok {
		delivery = newDelivery(key, fingerprint, now, ttl)
	}

	delivery.Status = StatusCompleted
	delivery.ResponseStatus = resp.Status
	delivery.ContentType = resp.ContentType
	if len(resp.Body) > 0 {
		delivery.ResponseBody = append([]byte(nil), resp.Body...)
	} else {
		delivery.ResponseBody = nil
	}
	delivery.UpdatedAt = now
	delivery.ExpiresAt = now.Add(ttl)
	s.deliveries[id] = delivery
	return nil
}

// Release deletes the reservation so a later attempt can retry.
func (s *MemoryStore) Release(_ context.Context, key DeliveryKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deliveries, key.docID())
	return nil
}

func (s *MemoryStore) prune(now time.Time) {
	for id, delivery := range s.deliveries {
		if delivery.expired(now) {
			delete(s.deliveries, id)
		}
	}
}
