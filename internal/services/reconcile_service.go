package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
)

// ErrReconcileInvalidInput indicates the caller supplied invalid input.
var ErrReconcileInvalidInput = errors.New("reconcile service: invalid input")

var (
	errReconcilePreferenceRequired = errors.New("reconcile service: preference service is required")
	errReconcileFeesRequired       = errors.New("reconcile service: fee service is required")
	errReconcileSnapshotsRequired  = errors.New("reconcile service: order snapshot service is required")
)

// Reconciliation sources reported on Resolution and published events.
const (
	SourceToggle      = "toggle"
	SourceCartUpdate  = "cart_update"
	SourceOrderCreate = "order_create"
)

// ReconcileServiceDeps wires the stores and side channels of the reconciliation engine.
type ReconcileServiceDeps struct {
	Preference PreferenceService
	Fees       FeeService
	Snapshots  OrderSnapshotService
	Events     EventPublisher
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type reconcileService struct {
	preference PreferenceService
	fees       FeeService
	snapshots  OrderSnapshotService
	events     EventPublisher
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
}

var _ ReconcileService = (*reconcileService)(nil)

// NewReconcileService constructs a ReconcileService enforcing dependency validation.
func NewReconcileService(deps ReconcileServiceDeps) (ReconcileService, error) {
	if deps.Preference == nil {
		return nil, errReconcilePreferenceRequired
	}
	if deps.Fees == nil {
		return nil, errReconcileFeesRequired
	}
	if deps.Snapshots == nil {
		return nil, errReconcileSnapshotsRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reconcileService{
		preference: deps.Preference,
		fees:       deps.Fees,
		snapshots:  deps.Snapshots,
		events:     deps.Events,
		now:        func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// ApplyToggle writes the explicit toggle value unconditionally. The toggle is
// the sole signal on its path, so no precedence applies.
func (s *reconcileService) ApplyToggle(ctx context.Context, sessionID string, value bool) (Resolution, error) {
	sessionID = s.preference.EnsureSession(sessionID)

	stored, err := s.preference.Read(ctx, sessionID)
	if err != nil {
		stored = false
	}

	resolution := Resolution{
		SessionID: sessionID,
		GiftWrap:  value,
		Changed:   stored != value,
		Source:    SourceToggle,
	}

	if err := s.preference.Write(ctx, sessionID, value); err != nil {
		// Best effort persistence: the shopper keeps a working checkout
		// even when the session store is down. Report the last stored
		// value, not the one that failed to persist.
		s.logger(ctx, "giftwrap.reconcile.write_failed", map[string]any{
			"session_id": sessionID,
			"source":     SourceToggle,
			"error":      err.Error(),
		})
		resolution.GiftWrap = stored
		resolution.Changed = false
		return resolution, nil
	}

	s.publishChange(ctx, resolution)
	resolution.FeeLines = s.recalculate(ctx, sessionID, domain.CalcContextStorefront)
	return resolution, nil
}

// ApplyCartUpdate reconciles the signals of a cart or checkout update. When
// neither signal was sent the stored value stands and nothing is written.
func (s *reconcileService) ApplyCartUpdate(ctx context.Context, input CartUpdateInput) (Resolution, error) {
	sessionID := s.preference.EnsureSession(input.SessionID)

	stored, err := s.preference.Read(ctx, sessionID)
	if err != nil {
		stored = false
	}

	value, chosen := input.Signals.Choose(stored)
	resolution := Resolution{
		SessionID: sessionID,
		GiftWrap:  value,
		Changed:   chosen && value != stored,
		Source:    SourceCartUpdate,
	}

	if chosen {
		if err := s.preference.Write(ctx, sessionID, value); err != nil {
			s.logger(ctx, "giftwrap.reconcile.write_failed", map[string]any{
				"session_id": sessionID,
				"source":     SourceCartUpdate,
				"error":      err.Error(),
			})
			resolution.GiftWrap = stored
			resolution.Changed = false
		} else if resolution.Changed {
			s.publishChange(ctx, resolution)
		}
	}

	calcContext := input.Context
	if calcContext == "" {
		calcContext = domain.CalcContextStorefront
	}
	resolution.FeeLines = s.recalculate(ctx, sessionID, calcContext)
	return resolution, nil
}

// ApplyOrderCreate reconciles the order creation signals, converges the
// session to the chosen value and snapshots it onto the order.
func (s *reconcileService) ApplyOrderCreate(ctx context.Context, input OrderCreateInput) (OrderResult, error) {
	if strings.TrimSpace(input.OrderID) == "" {
		return OrderResult{}, ErrReconcileInvalidInput
	}

	sessionID := s.preference.EnsureSession(input.SessionID)

	stored, err := s.preference.Read(ctx, sessionID)
	if err != nil {
		stored = false
	}

	value, chosen := input.Signals.Choose(stored)
	resolution := Resolution{
		SessionID: sessionID,
		GiftWrap:  value,
		Changed:   chosen && value != stored,
		Source:    SourceOrderCreate,
	}

	if chosen {
		if err := s.preference.Write(ctx, sessionID, value); err != nil {
			s.logger(ctx, "giftwrap.reconcile.write_failed", map[string]any{
				"session_id": sessionID,
				"source":     SourceOrderCreate,
				"error":      err.Error(),
			})
		} else if resolution.Changed {
			s.publishChange(ctx, resolution)
		}
	}

	snapshot, err := s.snapshots.Record(ctx, input.OrderID, value)
	if err != nil {
		// The order must never fail because of the gift wrap marker.
		s.logger(ctx, "giftwrap.reconcile.snapshot_failed", map[string]any{
			"order_id": input.OrderID,
			"error":    err.Error(),
		})
		snapshot = domain.OrderSnapshot{OrderID: input.OrderID, Value: domain.SnapshotValue(value)}
	}

	return OrderResult{Resolution: resolution, SnapshotValue: snapshot.Value}, nil
}

// recalculate reruns the fee pass so the caller observes the fee in the same
// request cycle as the write that caused it.
func (s *reconcileService) recalculate(ctx context.Context, sessionID string, calcContext domain.CalcContext) []domain.FeeLine {
	lines, err := s.fees.Apply(ctx, FeeRequest{SessionID: sessionID, Context: calcContext})
	if err != nil {
		s.logger(ctx, "giftwrap.reconcile.fee_recalc_failed", map[string]any{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil
	}
	return lines
}

func (s *reconcileService) publishChange(ctx context.Context, resolution Resolution) {
	if s.events == nil || !resolution.Changed {
		return
	}
	event := PreferenceChangedEvent{
		SessionID: resolution.SessionID,
		GiftWrap:  resolution.GiftWrap,
		Source:    resolution.Source,
		ChangedAt: s.now(),
	}
	if _, err := s.events.PublishPreferenceChanged(ctx, event); err != nil {
		s.logger(ctx, "giftwrap.reconcile.publish_failed", map[string]any{
			"session_id": resolution.SessionID,
			"error":      err.Error(),
		})
	}
}
