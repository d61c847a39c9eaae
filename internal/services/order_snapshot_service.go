package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
	"github.com/eva-commerce/giftwrap/internal/platform/pagination"
	"github.com/eva-commerce/giftwrap/internal/repositories"
)

// ErrOrderSnapshotInvalidInput indicates the caller supplied invalid input.
var ErrOrderSnapshotInvalidInput = errors.New("order snapshot service: invalid input")

// ErrOrderSnapshotNotFound indicates no snapshot exists for the order.
var ErrOrderSnapshotNotFound = errors.New("order snapshot service: not found")

// ErrOrderSnapshotUnavailable indicates the snapshot store cannot be reached.
var ErrOrderSnapshotUnavailable = errors.New("order snapshot service: unavailable")

var errOrderSnapshotRepositoryRequired = errors.New("order snapshot service: repository is required")

// OrderSnapshotServiceDeps wires the snapshot store.
type OrderSnapshotServiceDeps struct {
	Repository repositories.OrderSnapshotRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type orderSnapshotService struct {
	repo   repositories.OrderSnapshotRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

var _ OrderSnapshotService = (*orderSnapshotService)(nil)

// NewOrderSnapshotService constructs an OrderSnapshotService enforcing dependency validation.
func NewOrderSnapshotService(deps OrderSnapshotServiceDeps) (OrderSnapshotService, error) {
	if deps.Repository == nil {
		return nil, errOrderSnapshotRepositoryRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderSnapshotService{
		repo:   deps.Repository,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Record persists the marker for the order. The marker is write-once: when a
// snapshot already exists the stored value is returned and the new value is
// dropped, so a replayed order event can never flip a placed order.
func (s *orderSnapshotService) Record(ctx context.Context, orderID string, wrapped bool) (domain.OrderSnapshot, error) {
	if s == nil || s.repo == nil {
		return domain.OrderSnapshot{}, ErrOrderSnapshotUnavailable
	}

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.OrderSnapshot{}, ErrOrderSnapshotInvalidInput
	}

	snapshot := domain.OrderSnapshot{
		OrderID:   orderID,
		Value:     domain.SnapshotValue(wrapped),
		CreatedAt: s.now(),
	}

	err := s.repo.Create(ctx, snapshot)
	if err == nil {
		return snapshot, nil
	}
	if isRepoConflict(err) {
		existing, getErr := s.repo.Get(ctx, orderID)
		if getErr == nil {
			s.logger(ctx, "giftwrap.snapshot.duplicate_write", map[string]any{
				"order_id": orderID,
				"kept":     existing.Value,
				"dropped":  snapshot.Value,
			})
			return existing, nil
		}
		err = getErr
	}
	if isRepoUnavailable(err) {
		return domain.OrderSnapshot{}, ErrOrderSnapshotUnavailable
	}
	return domain.OrderSnapshot{}, err
}

// List pages through recorded snapshots, newest first.
func (s *orderSnapshotService) List(ctx context.Context, input ListSnapshotsInput) (SnapshotList, error) {
	if s == nil || s.repo == nil {
		return SnapshotList{}, ErrOrderSnapshotUnavailable
	}

	cursor, err := pagination.DecodeToken(input.PageToken)
	if err != nil {
		return SnapshotList{}, ErrOrderSnapshotInvalidInput
	}

	query := repositories.SnapshotListQuery{
		PageSize:  input.PageSize,
		Cursor:    cursor,
		Ascending: input.Ascending,
	}
	if input.Wrapped != nil {
		query.Value = domain.SnapshotValue(*input.Wrapped)
	}

	page, err := s.repo.List(ctx, query)
	if err != nil {
		if isRepoUnavailable(err) {
			return SnapshotList{}, ErrOrderSnapshotUnavailable
		}
		return SnapshotList{}, err
	}

	token, err := pagination.EncodeToken(page.NextCursor)
	if err != nil {
		return SnapshotList{}, err
	}

	return SnapshotList{Snapshots: page.Snapshots, NextPageToken: token}, nil
}

// Lookup returns the snapshot recorded for the order.
func (s *orderSnapshotService) Lookup(ctx context.Context, orderID string) (domain.OrderSnapshot, error) {
	if s == nil || s.repo == nil {
		return domain.OrderSnapshot{}, ErrOrderSnapshotUnavailable
	}

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.OrderSnapshot{}, ErrOrderSnapshotInvalidInput
	}

	snapshot, err := s.repo.Get(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.OrderSnapshot{}, ErrOrderSnapshotNotFound
		}
		if isRepoUnavailable(err) {
			return domain.OrderSnapshot{}, ErrOrderSnapshotUnavailable
		}
		return domain.OrderSnapshot{}, err
	}
	return snapshot, nil
}
