// Package firestore provides the Firestore-backed persistence layer.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
	pfirestore "github.com/eva-commerce/giftwrap/internal/platform/firestore"
)

const (
	settingsCollection = "giftwrap_settings"
	settingsDocID      = "current"
)

// SettingsRepository stores the merchant configuration as a single document.
type SettingsRepository struct {
	provider *pfirestore.Provider
	now      func() time.Time
}

// NewSettingsRepository constructs a Firestore-backed settings repository.
func NewSettingsRepository(provider *pfirestore.Provider) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository: firestore provider is required")
	}
	return &SettingsRepository{provider: provider, now: time.Now}, nil
}

// Load returns the stored configuration values.
func (r *SettingsRepository) Load(ctx context.Context) (domain.SettingsRecord, error) {
	docRef, err := r.document(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := docRef.Get(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("settings.load", err)
	}
	var doc settingsDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("settings repository: decode document: %w", err)
	}
	record := make(domain.SettingsRecord, len(doc.Values))
	for key, value := range doc.Values {
		record[key] = value
	}
	return record, nil
}

// Store replaces the stored configuration values.
func (r *SettingsRepository) Store(ctx context.Context, record domain.SettingsRecord) error {
	docRef, err := r.document(ctx)
	if err != nil {
		return err
	}
	values := make(map[string]string, len(record))
	for key, value := range record {
		values[key] = value
	}
	doc := settingsDocument{Values: values, UpdatedAt: r.now().UTC()}
	if _, err := docRef.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("settings.store", err)
	}
	return nil
}

func (r *SettingsRepository) document(ctx context.Context) (*firestore.DocumentRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("settings repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(settingsCollection).Doc(settingsDocID), nil
}

type settingsDocument struct {
	Values    map[string]string `firestore:"values"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}
