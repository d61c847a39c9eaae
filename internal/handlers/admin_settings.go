package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
	"github.com/eva-commerce/giftwrap/internal/platform/httpx"
	"github.com/eva-commerce/giftwrap/internal/services"
)

const maxSettingsBodySize = 32 * 1024

// AdminSettingsHandlers exposes the merchant configuration endpoints.
type AdminSettingsHandlers struct {
	settings services.SettingsService
}

// NewAdminSettingsHandlers constructs the admin settings handlers.
func NewAdminSettingsHandlers(settings services.SettingsService) *AdminSettingsHandlers {
	return &AdminSettingsHandlers{settings: settings}
}

// Routes wires the /admin settings endpoints onto the provided router.
func (h *AdminSettingsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/settings", h.getSettings)
	r.Put("/settings", h.putSettings)
}

func (h *AdminSettingsHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	settings, err := h.settings.Get(ctx)
	if err != nil {
		h.writeSettingsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, settingsPayload(settings))
}

func (h *AdminSettingsHandlers) putSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxSettingsBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return
	}

	patch, err := parseSettingsPatch(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	settings, err := h.settings.Update(ctx, patch)
	if err != nil {
		h.writeSettingsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, settingsPayload(settings))
}

func (h *AdminSettingsHandlers) writeSettingsError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSettingsInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_settings", "settings update contains invalid values", http.StatusBadRequest))
	case errors.Is(err, services.ErrSettingsUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("settings_unavailable", "settings store is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected failure", http.StatusInternalServerError))
	}
}

func settingsPayload(settings domain.Settings) map[string]any {
	return map[string]any{
		"enabled":       settings.Enabled,
		"section_title": settings.SectionTitle,
		"label":         settings.Label,
		"fee_amount":    settings.FeeAmount.Decimal(),
		"currency":      settings.FeeAmount.Currency,
		"custom_style":  settings.CustomStyle,
	}
}

// parseSettingsPatch keeps the distinction between an omitted field and a
// field explicitly set, so a PUT can clear the custom style with "".
func parseSettingsPatch(body []byte) (services.SettingsPatch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return services.SettingsPatch{}, errors.New("request body must be a JSON object")
	}

	var patch services.SettingsPatch
	if raw, ok := fields["enabled"]; ok {
		var enabled bool
		if err := json.Unmarshal(raw, &enabled); err != nil {
			return services.SettingsPatch{}, errors.New("enabled must be a boolean")
		}
		patch.Enabled = &enabled
	}
	if raw, ok := fields["section_title"]; ok {
		var title string
		if err := json.Unmarshal(raw, &title); err != nil {
			return services.SettingsPatch{}, errors.New("section_title must be a string")
		}
		patch.SectionTitle = &title
	}
	if raw, ok := fields["label"]; ok {
		var label string
		if err := json.Unmarshal(raw, &label); err != nil {
			return services.SettingsPatch{}, errors.New("label must be a string")
		}
		patch.Label = &label
	}
	if raw, ok := fields["fee_amount"]; ok {
		var fee string
		if err := json.Unmarshal(raw, &fee); err != nil {
			// Tolerate a bare number for the fee.
			var numeric float64
			if err := json.Unmarshal(raw, &numeric); err != nil {
				return services.SettingsPatch{}, errors.New("fee_amount must be a decimal string or number")
			}
			fee = string(raw)
		}
		patch.FeeAmount = &fee
	}
	if raw, ok := fields["custom_style"]; ok {
		var style string
		if err := json.Unmarshal(raw, &style); err != nil {
			return services.SettingsPatch{}, errors.New("custom_style must be a string")
		}
		patch.CustomStyle = &style
	}
	return patch, nil
}
