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
	"github.com/eva-commerce/giftwrap/internal/platform/pagination"
	"github.com/eva-commerce/giftwrap/internal/repositories"
)

const orderSnapshotsCollection = "giftwrap_order_meta"

// OrderSnapshotRepository stores the write-once gift wrap marker per order.
type OrderSnapshotRepository struct {
	provider *pfirestore.Provider
}

// NewOrderSnapshotRepository constructs a Firestore-backed order snapshot repository.
func NewOrderSnapshotRepository(provider *pfirestore.Provider) (*OrderSnapshotRepository, error) {
	if provider == nil {
		return nil, errors.New("order snapshot repository: firestore provider is required")
	}
	return &OrderSnapshotRepository{provider: provider}, nil
}

// Create writes the snapshot for the order. Firestore rejects the write with
// AlreadyExists when a snapshot is present, which surfaces as a conflict.
func (r *OrderSnapshotRepository) Create(ctx context.Context, snapshot domain.OrderSnapshot) error {
	docRef, err := r.document(ctx, snapshot.OrderID)
	if err != nil {
		return err
	}
	doc := orderSnapshotDocument{
		Value:     snapshot.Value,
		CreatedAt: snapshot.CreatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("order_snapshot.create", err)
	}
	return nil
}

// Get returns the snapshot recorded for the order.
func (r *OrderSnapshotRepository) Get(ctx context.Context, orderID string) (domain.OrderSnapshot, error) {
	docRef, err := r.document(ctx, orderID)
	if err != nil {
		return domain.OrderSnapshot{}, err
	}
	snap, err := docRef.Get(ctx)
	if err != nil {
		return domain.OrderSnapshot{}, pfirestore.WrapError("order_snapshot.get", err)
	}
	var doc orderSnapshotDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("order snapshot repository: decode document %s: %w", snap.Ref.ID, err)
	}
	return domain.OrderSnapshot{
		OrderID:   snap.Ref.ID,
		Value:     doc.Value,
		CreatedAt: doc.CreatedAt.UTC(),
	}, nil
}

// List pages through snapshots ordered by creation time descending with the
// document ID as tiebreaker. The page size is overfetched by one to detect
// whether another page exists.
func (r *OrderSnapshotRepository) List(ctx context.Context, query repositories.SnapshotListQuery) (repositories.SnapshotPage, error) {
	if r == nil || r.provider == nil {
		return repositories.SnapshotPage{}, errors.New("order snapshot repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return repositories.SnapshotPage{}, err
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	direction := firestore.Desc
	if query.Ascending {
		direction = firestore.Asc
	}
	q := client.Collection(orderSnapshotsCollection).
		OrderBy("createdAt", direction).
		OrderBy(firestore.DocumentID, direction)
	if query.Value != "" {
		q = q.Where("value", "==", query.Value)
	}
	if !query.Cursor.IsZero() {
		q = q.StartAfter(query.Cursor.StartAfter...)
	}
	q = q.Limit(pageSize + 1)

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return repositories.SnapshotPage{}, pfirestore.WrapError("order_snapshot.list", err)
	}

	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}

	page := repositories.SnapshotPage{Snapshots: make([]domain.OrderSnapshot, 0, len(docs))}
	for _, snap := range docs {
		var doc orderSnapshotDocument
		if err := snap.DataTo(&doc); err != nil {
			return repositories.SnapshotPage{}, fmt.Errorf("order snapshot repository: decode document %s: %w", snap.Ref.ID, err)
		}
		page.Snapshots = append(page.Snapshots, domain.OrderSnapshot{
			OrderID:   snap.Ref.ID,
			Value:     doc.Value,
			CreatedAt: doc.CreatedAt.UTC(),
		})
	}

	if hasMore && len(page.Snapshots) > 0 {
		last := page.Snapshots[len(page.Snapshots)-1]
		page.NextCursor = pagination.Cursor{StartAfter: []any{last.CreatedAt, last.OrderID}}
	}

	return page, nil
}

func (r *OrderSnapshotRepository) document(ctx context.Context, orderID string) (*firestore.DocumentRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("order snapshot repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("order snapshot repository: order id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(orderSnapshotsCollection).Doc(orderID), nil
}

type orderSnapshotDocument struct {
	Value     string    `firestore:"value"`
	CreatedAt time.Time `firestore:"createdAt"`
}
