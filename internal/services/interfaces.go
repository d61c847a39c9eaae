// Package services contains the gift wrap business logic behind the HTTP
// surface. Services translate persistence failures into sentinel errors and
// never leak repository error types to handlers.
package services

import (
	"context"
	"time"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
)

// EventPreferenceChanged is the Pub/Sub event name emitted when a session
// preference changes value.
const EventPreferenceChanged = "giftwrap.preference_changed"

// PreferenceChangedEvent is the message published after a preference write.
type PreferenceChangedEvent struct {
	SessionID string    `json:"sessionId"`
	GiftWrap  bool      `json:"giftWrap"`
	Source    string    `json:"source"`
	ChangedAt time.Time `json:"changedAt"`
}

// EventPublisher emits preference change notifications to interested consumers.
type EventPublisher interface {
	PublishPreferenceChanged(ctx context.Context, event PreferenceChangedEvent) (string, error)
}

// SettingsPatch carries a partial settings update. Nil fields stay untouched.
type SettingsPatch struct {
	Enabled      *bool
	SectionTitle *string
	Label        *string
	FeeAmount    *string
	CustomStyle  *string
}

// Presentation is everything the storefront widget needs to render the option.
type Presentation struct {
	Enabled      bool
	SectionTitle string
	Label        string
	FieldLabel   string
	FeeAmount    domain.Money
	FeeDisplay   string
	Stylesheet   string
}

// CheckoutFieldDescriptor describes the additional checkout field registered
// with the host platform.
type CheckoutFieldDescriptor struct {
	ID           string
	Type         string
	Label        string
	SectionTitle string
	Default      bool
	Required     bool
	OrderMetaKey string
}

// SettingsService owns merchant configuration reads and writes.
type SettingsService interface {
	// Get returns the effective settings. Stored values that fail coercion
	// fall back to their defaults so presentation never breaks.
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, patch SettingsPatch) (domain.Settings, error)
	Presentation(ctx context.Context) (Presentation, error)
	CheckoutField(ctx context.Context) (CheckoutFieldDescriptor, error)
}

// PreferenceService owns the per-session preference state.
type PreferenceService interface {
	// Read returns the stored preference, false when nothing is stored.
	Read(ctx context.Context, sessionID string) (bool, error)
	Write(ctx context.Context, sessionID string, value bool) error
	// EnsureSession returns sessionID unchanged when non-empty, otherwise
	// mints a fresh identifier.
	EnsureSession(sessionID string) string
}

// Resolution reports the outcome of reconciling the preference signals of a
// single host event or toggle call.
type Resolution struct {
	SessionID string
	GiftWrap  bool
	Changed   bool
	Source    string
	FeeLines  []domain.FeeLine
}

// CartUpdateInput carries the preference signals extracted from a cart
// update event.
type CartUpdateInput struct {
	SessionID string
	Signals   domain.UpdateSignals
	Context   domain.CalcContext
}

// OrderCreateInput carries the signals present when the host finalises an order.
type OrderCreateInput struct {
	SessionID string
	OrderID   string
	Signals   domain.UpdateSignals
}

// OrderResult extends Resolution with the durable snapshot value written to
// the order.
type OrderResult struct {
	Resolution
	SnapshotValue string
}

// ReconcileService reconciles the preference signals arriving over the
// different write paths against the stored session state.
type ReconcileService interface {
	ApplyToggle(ctx context.Context, sessionID string, value bool) (Resolution, error)
	ApplyCartUpdate(ctx context.Context, input CartUpdateInput) (Resolution, error)
	ApplyOrderCreate(ctx context.Context, input OrderCreateInput) (OrderResult, error)
}

// FeeRequest describes one totals calculation pass.
type FeeRequest struct {
	SessionID    string
	Context      domain.CalcContext
	ExistingFees []string
}

// FeeService decides whether the gift wrap fee line joins a totals pass.
type FeeService interface {
	Apply(ctx context.Context, req FeeRequest) ([]domain.FeeLine, error)
}

// OrderSnapshotService owns the immutable per-order gift wrap marker.
type OrderSnapshotService interface {
	// Record persists the marker for the order. Repeated calls keep the
	// first recorded value.
	Record(ctx context.Context, orderID string, wrapped bool) (domain.OrderSnapshot, error)
	Lookup(ctx context.Context, orderID string) (domain.OrderSnapshot, error)
	// List pages through recorded snapshots, newest first.
	List(ctx context.Context, input ListSnapshotsInput) (SnapshotList, error)
}

// ListSnapshotsInput bounds a snapshot listing request.
type ListSnapshotsInput struct {
	PageSize  int
	PageToken string
	// Wrapped filters on the recorded preference when set.
	Wrapped *bool
	// Ascending flips the default newest-first ordering.
	Ascending bool
}

// SnapshotList is one page of snapshots with the token for the next page.
type SnapshotList struct {
	Snapshots     []domain.OrderSnapshot
	NextPageToken string
}

// SystemService exposes health and build metadata for the operational endpoints.
type SystemService interface {
	Health(ctx context.Context) (domain.HealthReport, error)
	Build() BuildInfo
}
