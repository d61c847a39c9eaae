package services

import (
	"context"
	"errors"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
)

var (
	errFeeSettingsRequired   = errors.New("fee service: settings service is required")
	errFeePreferenceRequired = errors.New("fee service: preference service is required")
)

// FeeServiceDeps wires the collaborators needed to decide on fee lines.
type FeeServiceDeps struct {
	Settings   SettingsService
	Preference PreferenceService
	Logger     func(context.Context, string, map[string]any)
}

type feeService struct {
	settings   SettingsService
	preference PreferenceService
	logger     func(context.Context, string, map[string]any)
}

var _ FeeService = (*feeService)(nil)

// NewFeeService constructs a FeeService enforcing dependency validation.
func NewFeeService(deps FeeServiceDeps) (FeeService, error) {
	if deps.Settings == nil {
		return nil, errFeeSettingsRequired
	}
	if deps.Preference == nil {
		return nil, errFeePreferenceRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &feeService{
		settings:   deps.Settings,
		preference: deps.Preference,
		logger:     logger,
	}, nil
}

// Apply returns the fee lines to add to the current totals pass. It returns
// an empty slice whenever the fee must not appear, and never fails the pass:
// a broken dependency degrades to "no fee" instead of blocking checkout.
func (s *feeService) Apply(ctx context.Context, req FeeRequest) ([]domain.FeeLine, error) {
	if s == nil {
		return nil, nil
	}

	// Administrative recalculations never carry the customer's fee. A
	// background recomputation triggered by a customer action still does.
	if req.Context == domain.CalcContextAdmin {
		return nil, nil
	}

	for _, name := range req.ExistingFees {
		if name == domain.FeeName {
			return nil, nil
		}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger(ctx, "giftwrap.fee.settings_unavailable", map[string]any{"error": err.Error()})
		return nil, nil
	}
	if !settings.Enabled {
		return nil, nil
	}

	wrapped, err := s.preference.Read(ctx, req.SessionID)
	if err != nil {
		s.logger(ctx, "giftwrap.fee.preference_unavailable", map[string]any{"error": err.Error()})
		return nil, nil
	}
	if !wrapped {
		return nil, nil
	}

	return []domain.FeeLine{{
		Name:    domain.FeeName,
		Label:   settings.Label,
		Amount:  settings.FeeAmount,
		Taxable: false,
	}}, nil
}
