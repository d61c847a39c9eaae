package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection  = "giftwrap_deliveries"
	defaultMaxAttempts = 5
)

// FirestoreOption customises the FirestoreStore behaviour.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection holding delivery records.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// WithMaxAttempts configures the transaction retry attempts.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(store *FirestoreStore) {
		if attempts > 0 {
			store.maxAttempts = attempts
		}
	}
}

// FirestoreStore implements Store backed by Google Cloud Firestore. Expired
// records are reclaimed in place when their delivery identifier comes around
// again; a collection TTL policy on expires_at handles the rest.
type FirestoreStore struct {
	client      *firestore.Client
	collection  string
	maxAttempts int
}

// NewFirestoreStore constructs a Firestore-backed delivery store.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{
		client:      client,
		collection:  defaultCollection,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Reserve transactionally claims the delivery for the given fingerprint and
// returns any stored response.
func (s *FirestoreStore) Reserve(ctx context.Context, key DeliveryKey, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(key.docID())

	var result Reservation
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				doc := deliveryDocFrom(newDelivery(key, fingerprint, now, ttl))
				if err := tx.Set(ref, doc); err != nil {
					return err
				}
				result = Reservation{State: ReservationStateNew, Delivery: doc.toDelivery()}
				return nil
			}
			return err
		}

		var doc deliveryDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}

		if doc.toDelivery().expired(now) {
			doc = deliveryDocFrom(newDelivery(key, fingerprint, now, ttl))
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
			result = Reservation{State: ReservationStateNew, Delivery: doc.toDelivery()}
			return nil
		}

		if doc.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		if doc.Status == string(StatusCompleted) {
			result = Reservation{State: ReservationStateCompleted, Delivery: doc.toDelivery()}
			return nil
		}
		result = Reservation{State: ReservationStatePending, Delivery: doc.toDelivery()}
		return nil
	}, firestore.MaxAttempts(s.attempts()))

	return result, err
}

// Complete persists the response to replay for later attempts of the delivery.
func (s *FirestoreStore) Complete(ctx context.Context, key DeliveryKey, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(key.docID())

	var bodyCopy []byte
	if len(resp.Body) > 0 {
		bodyCopy = append([]byte(nil), resp.Body...)
	}

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		var doc deliveryDoc
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			doc = deliveryDocFrom(newDelivery(key, fingerprint, now, ttl))
		} else {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
		}

		doc.Status = string(StatusCompleted)
		doc.ResponseStatus = resp.Status
		doc.ContentType = resp.ContentType
		doc.ResponseBody = bodyCopy
		doc.UpdatedAt = now
		doc.ExpiresAt = now.Add(ttl)
		return tx.Set(ref, doc)
	}, firestore.MaxAttempts(s.attempts()))
}

// Release removes the reservation so the host's retry can be processed.
func (s *FirestoreStore) Release(ctx context.Context, key DeliveryKey) error {
	ref := s.client.Collection(s.collection).Doc(key.docID())
	_, err := ref.Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (s *FirestoreStore) attempts() int {
	if s.maxAttempts <= 0 {
		return 1
	}
	return s.maxAttempts
}

type deliveryDoc struct {
	DeliveryID     string    `firestore:"delivery_id"`
	Scope          string    `firestore:"scope"`
	Event          string    `firestore:"event"`
	Fingerprint    string    `firestore:"fingerprint"`
	Status         string    `firestore:"status"`
	ResponseStatus int       `firestore:"response_status"`
	ContentType    string    `firestore:"content_type"`
	ResponseBody   []byte    `firestore:"response_body"`
	CreatedAt      time.Time `firestore:"created_at"`
	UpdatedAt      time.Time `firestore:"updated_at"`
	ExpiresAt      time.Time `firestore:"expires_at"`
}

func deliveryDocFrom(d Delivery) deliveryDoc {
	return deliveryDoc{
		DeliveryID:     d.ID,
		Scope:          d.Scope,
		Event:          d.Event,
		Fingerprint:    d.Fingerprint,
		Status:         string(d.Status),
		ResponseStatus: d.ResponseStatus,
		ContentType:    d.ContentType,
		ResponseBody:   d.ResponseBody,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		ExpiresAt:      d.ExpiresAt,
	}
}

func (d deliveryDoc) toDelivery() Delivery {
	return Delivery{
		ID:             d.DeliveryID,
		Scope:          d.Scope,
		Event:          d.Event,
		Fingerprint:    d.Fingerprint,
		Status:         Status(d.Status),
		ResponseStatus: d.ResponseStatus,
		ContentType:    d.ContentType,
		ResponseBody:   d.ResponseBody,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		ExpiresAt:      d.ExpiresAt,
	}
}
