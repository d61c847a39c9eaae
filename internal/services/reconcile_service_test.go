package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
)

// memoryPreference is an in-memory PreferenceService used to observe the
// engine's read-then-write behaviour across calls.
type memoryPreference struct {
	mu       sync.Mutex
	values   map[string]bool
	writeErr error
	writes   int
}

func newMemoryPreference() *memoryPreference {
	return &memoryPreference{values: map[string]bool{}}
}

func (m *memoryPreference) Read(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[sessionID], nil
}

func (m *memoryPreference) Write(_ context.Context, sessionID string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.values[sessionID] = value
	return nil
}

func (m *memoryPreference) EnsureSession(sessionID string) string {
	if sessionID == "" {
		return "minted-session"
	}
	return sessionID
}

type stubFeeService struct {
	applyFn func(ctx context.Context, req FeeRequest) ([]domain.FeeLine, error)
}

func (s *stubFeeService) Apply(ctx context.Context, req FeeRequest) ([]domain.FeeLine, error) {
	if s.applyFn != nil {
		return s.applyFn(ctx, req)
	}
	return nil, nil
}

type memorySnapshots struct {
	mu      sync.Mutex
	records map[string]domain.OrderSnapshot
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{records: map[string]domain.OrderSnapshot{}}
}

func (m *memorySnapshots) Record(_ context.Context, orderID string, wrapped bool) (domain.OrderSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[orderID]; ok {
		return existing, nil
	}
	snapshot := domain.OrderSnapshot{OrderID: orderID, Value: domain.SnapshotValue(wrapped)}
	m.records[orderID] = snapshot
	return snapshot, nil
}

func (m *memorySnapshots) List(context.Context, ListSnapshotsInput) (SnapshotList, error) {
	return SnapshotList{}, nil
}

func (m *memorySnapshots) Lookup(_ context.Context, orderID string) (domain.OrderSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot, ok := m.records[orderID]
	if !ok {
		return domain.OrderSnapshot{}, ErrOrderSnapshotNotFound
	}
	return snapshot, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []PreferenceChangedEvent
	err    error
}

func (p *capturingPublisher) PublishPreferenceChanged(_ context.Context, event PreferenceChangedEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "msg-1", nil
}

type reconcileFixture struct {
	service    ReconcileService
	preference *memoryPreference
	snapshots  *memorySnapshots
	publisher  *capturingPublisher
	fees       *stubFeeService
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	fixture := &reconcileFixture{
		preference: newMemoryPreference(),
		snapshots:  newMemorySnapshots(),
		publisher:  &capturingPublisher{},
		fees:       &stubFeeService{},
	}
	svc, err := NewReconcileService(ReconcileServiceDeps{
		Preference: fixture.preference,
		Fees:       fixture.fees,
		Snapshots:  fixture.snapshots,
		Events:     fixture.publisher,
		Clock:      func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewReconcileService: %v", err)
	}
	fixture.service = svc
	return fixture
}

func TestApplyToggleLastWriteWins(t *testing.T) {
	fx := newReconcileFixture(t)
	ctx := context.Background()

	sequence := []bool{true, false, false, true}
	var last Resolution
	for _, value := range sequence {
		resolution, err := fx.service.ApplyToggle(ctx, "sess-1", value)
		if err != nil {
			t.Fatalf("ApplyToggle(%v): %v", value, err)
		}
		last = resolution
	}

	if !last.GiftWrap {
		t.Fatalf("expected final value true, got %+v", last)
	}
	stored, _ := fx.preference.Read(ctx, "sess-1")
	if !stored {
		t.Fatalf("expected stored value to equal last write")
	}
	if fx.preference.writes != len(sequence) {
		t.Fatalf("toggle must write unconditionally, got %d writes", fx.preference.writes)
	}
}

func TestApplyToggleMintsSession(t *testing.T) {
	fx := newReconcileFixture(t)

	resolution, err := fx.service.ApplyToggle(context.Background(), "", true)
	if err != nil {
		t.Fatalf("ApplyToggle: %v", err)
	}
	if resolution.SessionID != "minted-session" {
		t.Fatalf("expected minted session id, got %q", resolution.SessionID)
	}
}

func TestApplyToggleDegradesWhenStoreDown(t *testing.T) {
	fx := newReconcileFixture(t)
	fx.preference.writeErr = ErrPreferenceUnavailable

	resolution, err := fx.service.ApplyToggle(context.Background(), "sess-1", true)
	if err != nil {
		t.Fatalf("ApplyToggle must not surface store failures: %v", err)
	}
	if resolution.GiftWrap || resolution.Changed {
		t.Fatalf("expected degraded false resolution, got %+v", resolution)
	}
	if len(fx.publisher.events) != 0 {
		t.Fatalf("no event expected for a failed write")
	}
}

func TestApplyToggleFailedWriteReportsStoredValue(t *testing.T) {
	fx := newReconcileFixture(t)
	ctx := context.Background()
	fx.preference.values["sess-1"] = true
	fx.preference.writeErr = ErrPreferenceUnavailable

	resolution, err := fx.service.ApplyToggle(ctx, "sess-1", false)
	if err != nil {
		t.Fatalf("ApplyToggle: %v", err)
	}
	if !resolution.GiftWrap {
		t.Fatalf("a failed toggle off must keep reporting the stored true, got %+v", resolution)
	}
	if resolution.Changed {
		t.Fatalf("nothing persisted, nothing changed: %+v", resolution)
	}
	if stored, _ := fx.preference.Read(ctx, "sess-1"); !stored {
		t.Fatalf("stored value must be untouched")
	}
}

func TestApplyCartUpdateFieldBeatsExtension(t *testing.T) {
	fx := newReconcileFixture(t)
	ctx := context.Background()
	fx.preference.values["sess-1"] = true

	resolution, err := fx.service.ApplyCartUpdate(ctx, CartUpdateInput{
		SessionID: "sess-1",
		Signals: domain.UpdateSignals{
			Field:     domain.PresentSignal(false),
			Extension: domain.PresentSignal(true),
		},
	})
	if err != nil {
		t.Fatalf("ApplyCartUpdate: %v", err)
	}
	if resolution.GiftWrap {
		t.Fatalf("explicit field false must beat extension true, got %+v", resolution)
	}
	stored, _ := fx.preference.Read(ctx, "sess-1")
	if stored {
		t.Fatalf("expected stored value overwritten with false")
	}
}

func TestApplyCartUpdateExtensionFallback(t *testing.T) {
	fx := newReconcileFixture(t)

	resolution, err := fx.service.ApplyCartUpdate(context.Background(), CartUpdateInput{
		SessionID: "sess-1",
		Signals:   domain.UpdateSignals{Extension: domain.PresentSignal(true)},
	})
	if err != nil {
		t.Fatalf("ApplyCartUpdate: %v", err)
	}
	if !resolution.GiftWrap || !resolution.Changed {
		t.Fatalf("expected extension value applied, got %+v", resolution)
	}
}

func TestApplyCartUpdateNoSignalsKeepsStoredValue(t *testing.T) {
	fx := newReconcileFixture(t)
	ctx := context.Background()
	fx.preference.values["sess-1"] = true

	resolution, err := fx.service.ApplyCartUpdate(ctx, CartUpdateInput{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("ApplyCartUpdate: %v", err)
	}
	if !resolution.GiftWrap || resolution.Changed {
		t.Fatalf("expected stored value kept without a write, got %+v", resolution)
	}
	if fx.preference.writes != 0 {
		t.Fatalf("no write expected when no signal present, got %d", fx.preference.writes)
	}
}

func TestApplyCartUpdateRecalculatesFees(t *testing.T) {
	fx := newReconcileFixture(t)
	var gotReq FeeRequest
	fx.fees.applyFn = func(_ context.Context, req FeeRequest) ([]domain.FeeLine, error) {
		gotReq = req
		return []domain.FeeLine{{Name: domain.FeeName}}, nil
	}

	resolution, err := fx.service.ApplyCartUpdate(context.Background(), CartUpdateInput{
		SessionID: "sess-1",
		Signals:   domain.UpdateSignals{Field: domain.PresentSignal(true)},
		Context:   domain.CalcContextBackground,
	})
	if err != nil {
		t.Fatalf("ApplyCartUpdate: %v", err)
	}
	if len(resolution.FeeLines) != 1 {
		t.Fatalf("expected recalculated fee lines, got %+v", resolution.FeeLines)
	}
	if gotReq.Context != domain.CalcContextBackground {
		t.Fatalf("expected calculation context forwarded, got %q", gotReq.Context)
	}
}

func TestApplyOrderCreatePrecedenceAndSnapshot(t *testing.T) {
	fx := newReconcileFixture(t)
	ctx := context.Background()
	fx.preference.values["sess-1"] = false

	result, err := fx.service.ApplyOrderCreate(ctx, OrderCreateInput{
		SessionID: "sess-1",
		OrderID:   "ord-1",
		Signals:   domain.UpdateSignals{Extension: domain.PresentSignal(true)},
	})
	if err != nil {
		t.Fatalf("ApplyOrderCreate: %v", err)
	}
	if !result.GiftWrap {
		t.Fatalf("expected extension value chosen, got %+v", result)
	}
	if result.SnapshotValue != domain.OrderMetaYes {
		t.Fatalf("expected yes snapshot, got %q", result.SnapshotValue)
	}

	stored, _ := fx.preference.Read(ctx, "sess-1")
	if !stored {
		t.Fatalf("expected session converged to chosen value")
	}
}

func TestApplyOrderCreateFallsBackToSessionValue(t *testing.T) {
	fx := newReconcileFixture(t)
	fx.preference.values["sess-1"] = true

	result, err := fx.service.ApplyOrderCreate(context.Background(), OrderCreateInput{
		SessionID: "sess-1",
		OrderID:   "ord-2",
	})
	if err != nil {
		t.Fatalf("ApplyOrderCreate: %v", err)
	}
	if !result.GiftWrap || result.Changed {
		t.Fatalf("expected session fallback without change, got %+v", result)
	}
	if result.SnapshotValue != domain.OrderMetaYes {
		t.Fatalf("expected yes snapshot, got %q", result.SnapshotValue)
	}
	if fx.preference.writes != 0 {
		t.Fatalf("no write expected when session value stands")
	}
}

func TestApplyOrderCreateSnapshotIsWriteOnce(t *testing.T) {
	fx := newReconcileFixture(t)
	ctx := context.Background()

	first, err := fx.service.ApplyOrderCreate(ctx, OrderCreateInput{
		SessionID: "sess-1",
		OrderID:   "ord-1",
		Signals:   domain.UpdateSignals{Field: domain.PresentSignal(true)},
	})
	if err != nil {
		t.Fatalf("first ApplyOrderCreate: %v", err)
	}
	if first.SnapshotValue != domain.OrderMetaYes {
		t.Fatalf("expected yes snapshot, got %q", first.SnapshotValue)
	}

	second, err := fx.service.ApplyOrderCreate(ctx, OrderCreateInput{
		SessionID: "sess-1",
		OrderID:   "ord-1",
		Signals:   domain.UpdateSignals{Field: domain.PresentSignal(false)},
	})
	if err != nil {
		t.Fatalf("second ApplyOrderCreate: %v", err)
	}
	if second.SnapshotValue != domain.OrderMetaYes {
		t.Fatalf("replayed order event must keep first snapshot, got %q", second.SnapshotValue)
	}
}

func TestApplyOrderCreateRequiresOrderID(t *testing.T) {
	fx := newReconcileFixture(t)

	if _, err := fx.service.ApplyOrderCreate(context.Background(), OrderCreateInput{SessionID: "sess-1"}); !errors.Is(err, ErrReconcileInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestPreferenceChangeEventsPublishedOnlyOnChange(t *testing.T) {
	fx := newReconcileFixture(t)
	ctx := context.Background()

	if _, err := fx.service.ApplyToggle(ctx, "sess-1", true); err != nil {
		t.Fatalf("ApplyToggle: %v", err)
	}
	if _, err := fx.service.ApplyToggle(ctx, "sess-1", true); err != nil {
		t.Fatalf("ApplyToggle repeat: %v", err)
	}
	if _, err := fx.service.ApplyCartUpdate(ctx, CartUpdateInput{SessionID: "sess-1"}); err != nil {
		t.Fatalf("ApplyCartUpdate: %v", err)
	}

	if len(fx.publisher.events) != 1 {
		t.Fatalf("expected a single change event, got %d", len(fx.publisher.events))
	}
	event := fx.publisher.events[0]
	if event.Source != SourceToggle || !event.GiftWrap {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestPublisherFailureDoesNotSurface(t *testing.T) {
	fx := newReconcileFixture(t)
	fx.publisher.err = errors.New("broker down")

	if _, err := fx.service.ApplyToggle(context.Background(), "sess-1", true); err != nil {
		t.Fatalf("publish failures must stay internal: %v", err)
	}
}
