package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
	"github.com/eva-commerce/giftwrap/internal/platform/textutil"
	"github.com/eva-commerce/giftwrap/internal/repositories"
)

// ErrSettingsInvalidInput indicates the caller supplied an invalid settings update.
var ErrSettingsInvalidInput = errors.New("settings service: invalid input")

// ErrSettingsUnavailable indicates the configuration store cannot be reached.
var ErrSettingsUnavailable = errors.New("settings service: unavailable")

var errSettingsRepositoryRequired = errors.New("settings service: repository is required")

const maxSettingsTextLength = 200

// SettingsServiceDeps wires the configuration store and presentation helpers.
type SettingsServiceDeps struct {
	Repository repositories.SettingsRepository
	Sanitizer  *textutil.StyleSanitizer
	Currency   string
	Locale     string
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type settingsService struct {
	repo      repositories.SettingsRepository
	sanitizer *textutil.StyleSanitizer
	currency  string
	locale    language.Tag
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

var _ SettingsService = (*settingsService)(nil)

// NewSettingsService constructs a SettingsService enforcing dependency validation.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Repository == nil {
		return nil, errSettingsRepositoryRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	locale, err := language.Parse(strings.TrimSpace(deps.Locale))
	if err != nil {
		locale = language.Italian
	}

	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = textutil.NewStyleSanitizer()
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &settingsService{
		repo:      deps.Repository,
		sanitizer: sanitizer,
		currency:  currency,
		locale:    locale,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

// Get returns the effective settings. Every stored value that fails coercion
// falls back to its default, so a damaged record degrades a single field
// instead of the whole extension.
func (s *settingsService) Get(ctx context.Context) (domain.Settings, error) {
	if s == nil || s.repo == nil {
		return domain.Settings{}, ErrSettingsUnavailable
	}

	record, err := s.repo.Load(ctx)
	if err != nil {
		if isRepoNotFound(err) {
			return s.defaults(), nil
		}
		if isRepoUnavailable(err) {
			return domain.Settings{}, ErrSettingsUnavailable
		}
		return domain.Settings{}, err
	}
	return s.coerce(ctx, record), nil
}

// Update applies a partial settings change on top of the stored record.
func (s *settingsService) Update(ctx context.Context, patch SettingsPatch) (domain.Settings, error) {
	if s == nil || s.repo == nil {
		return domain.Settings{}, ErrSettingsUnavailable
	}

	record, err := s.repo.Load(ctx)
	if err != nil {
		if !isRepoNotFound(err) {
			if isRepoUnavailable(err) {
				return domain.Settings{}, ErrSettingsUnavailable
			}
			return domain.Settings{}, err
		}
		record = domain.SettingsRecord{}
	}

	if patch.Enabled != nil {
		record[domain.SettingEnabled] = strconv.FormatBool(*patch.Enabled)
	}
	if patch.SectionTitle != nil {
		title := strings.TrimSpace(*patch.SectionTitle)
		if len(title) > maxSettingsTextLength {
			return domain.Settings{}, ErrSettingsInvalidInput
		}
		record[domain.SettingSectionTitle] = title
	}
	if patch.Label != nil {
		label := strings.TrimSpace(*patch.Label)
		if len(label) > maxSettingsTextLength {
			return domain.Settings{}, ErrSettingsInvalidInput
		}
		record[domain.SettingLabel] = label
	}
	if patch.FeeAmount != nil {
		fee, err := domain.ParseMoney(*patch.FeeAmount, s.currency)
		if err != nil {
			return domain.Settings{}, ErrSettingsInvalidInput
		}
		record[domain.SettingFeeAmount] = fee.Decimal()
	}
	if patch.CustomStyle != nil {
		record[domain.SettingCustomStyle] = s.sanitizer.Sanitize(*patch.CustomStyle)
	}

	// Manually edited records can carry padded keys; clean before persisting.
	record = domain.SettingsRecord(textutil.NormalizeRecord(record))
	if record == nil {
		record = domain.SettingsRecord{}
	}

	if err := s.repo.Store(ctx, record); err != nil {
		if isRepoUnavailable(err) {
			return domain.Settings{}, ErrSettingsUnavailable
		}
		return domain.Settings{}, err
	}

	settings := s.coerce(ctx, record)
	s.logger(ctx, "giftwrap.settings.updated", map[string]any{
		"enabled": settings.Enabled,
		"fee":     settings.FeeAmount.Decimal(),
	})
	return settings, nil
}

// Presentation assembles the storefront rendering payload.
func (s *settingsService) Presentation(ctx context.Context) (Presentation, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return Presentation{}, err
	}

	feeDisplay := settings.FeeAmount.Display(s.locale)
	return Presentation{
		Enabled:      settings.Enabled,
		SectionTitle: settings.SectionTitle,
		Label:        settings.Label,
		FieldLabel:   s.fieldLabel(settings, feeDisplay),
		FeeAmount:    settings.FeeAmount,
		FeeDisplay:   feeDisplay,
		Stylesheet:   s.sanitizer.Stylesheet(settings.CustomStyle),
	}, nil
}

// CheckoutField returns the additional checkout field registered with the host.
func (s *settingsService) CheckoutField(ctx context.Context) (CheckoutFieldDescriptor, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return CheckoutFieldDescriptor{}, err
	}

	feeDisplay := settings.FeeAmount.Display(s.locale)
	return CheckoutFieldDescriptor{
		ID:           domain.CheckoutFieldID,
		Type:         "checkbox",
		Label:        s.fieldLabel(settings, feeDisplay),
		SectionTitle: settings.SectionTitle,
		Default:      false,
		Required:     false,
		OrderMetaKey: domain.OrderMetaKey,
	}, nil
}

// fieldLabel appends the fee to the label so the shopper sees the cost next
// to the checkbox. A zero fee leaves the label untouched.
func (s *settingsService) fieldLabel(settings domain.Settings, feeDisplay string) string {
	if settings.FeeAmount.Amount <= 0 || feeDisplay == "" {
		return settings.Label
	}
	return settings.Label + " (+ " + feeDisplay + ")"
}

func (s *settingsService) defaults() domain.Settings {
	settings := domain.DefaultSettings()
	settings.FeeAmount.Currency = s.currency
	return settings
}

func (s *settingsService) coerce(ctx context.Context, record domain.SettingsRecord) domain.Settings {
	settings := s.defaults()

	if raw, ok := record[domain.SettingEnabled]; ok {
		if enabled, err := parseSettingBool(raw); err == nil {
			settings.Enabled = enabled
		} else {
			s.logger(ctx, "giftwrap.settings.coerce_failed", map[string]any{
				"key": domain.SettingEnabled, "value": raw,
			})
		}
	}
	if raw, ok := record[domain.SettingSectionTitle]; ok {
		if title := strings.TrimSpace(raw); title != "" {
			settings.SectionTitle = title
		}
	}
	if raw, ok := record[domain.SettingLabel]; ok {
		if label := strings.TrimSpace(raw); label != "" {
			settings.Label = label
		}
	}
	if raw, ok := record[domain.SettingFeeAmount]; ok {
		if fee, err := domain.ParseMoney(raw, s.currency); err == nil {
			settings.FeeAmount = fee
		} else {
			s.logger(ctx, "giftwrap.settings.coerce_failed", map[string]any{
				"key": domain.SettingFeeAmount, "value": raw,
			})
		}
	}
	if raw, ok := record[domain.SettingCustomStyle]; ok {
		settings.CustomStyle = raw
	}
	return settings
}

func parseSettingBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, errors.New("not a boolean")
}
