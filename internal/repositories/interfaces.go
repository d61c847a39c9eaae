package repositories

import (
	"context"
	"time"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
	"github.com/eva-commerce/giftwrap/internal/platform/pagination"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// SettingsRepository persists the merchant configuration record.
type SettingsRepository interface {
	// Load returns the stored settings values. A missing record reports
	// not found so the caller can fall back to defaults.
	Load(ctx context.Context) (domain.SettingsRecord, error)
	// Store replaces the stored settings values.
	Store(ctx context.Context, record domain.SettingsRecord) error
}

// SessionRepository persists the per-session gift wrap preference.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (domain.SessionRecord, error)
	Put(ctx context.Context, record domain.SessionRecord) error
}

// OrderSnapshotRepository persists the immutable per-order gift wrap marker.
type OrderSnapshotRepository interface {
	// Create writes the snapshot for the order. A second write for the
	// same order reports a conflict so the first value stays untouched.
	Create(ctx context.Context, snapshot domain.OrderSnapshot) error
	Get(ctx context.Context, orderID string) (domain.OrderSnapshot, error)
	// List returns snapshots ordered by creation time, newest first.
	List(ctx context.Context, query SnapshotListQuery) (SnapshotPage, error)
}

// SnapshotListQuery bounds a snapshot listing request.
type SnapshotListQuery struct {
	PageSize int
	Cursor   pagination.Cursor
	// Value filters on the stored marker ("yes" or "no") when non-empty.
	Value string
	// Ascending flips the default newest-first ordering.
	Ascending bool
}

// SnapshotPage is one page of snapshots plus the cursor for the next one.
type SnapshotPage struct {
	Snapshots  []domain.OrderSnapshot
	NextCursor pagination.Cursor
}

// HealthRepository evaluates dependency probes for the readiness endpoint.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}

// DependencyCheck describes a dependency probe executed during readiness checks.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}
