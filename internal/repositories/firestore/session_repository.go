package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
	pfirestore "github.com/eva-commerce/giftwrap/internal/platform/firestore"
)

const sessionsCollection = "giftwrap_sessions"

// SessionRepository stores the per-session gift wrap preference.
type SessionRepository struct {
	provider *pfirestore.Provider
}

// NewSessionRepository constructs a Firestore-backed session repository.
func NewSessionRepository(provider *pfirestore.Provider) (*SessionRepository, error) {
	if provider == nil {
		return nil, errors.New("session repository: firestore provider is required")
	}
	return &SessionRepository{provider: provider}, nil
}

// Get returns the stored preference for the session.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	docRef, err := r.document(ctx, sessionID)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	snap, err := docRef.Get(ctx)
	if err != nil {
		return domain.SessionRecord{}, pfirestore.WrapError("session.get", err)
	}
	var doc sessionDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("session repository: decode document %s: %w", snap.Ref.ID, err)
	}
	return domain.SessionRecord{
		ID:        snap.Ref.ID,
		GiftWrap:  doc.GiftWrap,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, nil
}

// Put upserts the stored preference for the session.
func (r *SessionRepository) Put(ctx context.Context, record domain.SessionRecord) error {
	docRef, err := r.document(ctx, record.ID)
	if err != nil {
		return err
	}
	doc := sessionDocument{
		GiftWrap:  record.GiftWrap,
		CreatedAt: record.CreatedAt.UTC(),
		UpdatedAt: record.UpdatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}
	if _, err := docRef.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("session.put", err)
	}
	return nil
}

func (r *SessionRepository) document(ctx context.Context, sessionID string) (*firestore.DocumentRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("session repository not initialised")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("session repository: session id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(sessionsCollection).Doc(sessionID), nil
}

type sessionDocument struct {
	GiftWrap  bool      `firestore:"giftWrap"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}
