package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eva-commerce/giftwrap/internal/platform/httpx"
	"github.com/eva-commerce/giftwrap/internal/platform/requestctx"
	"github.com/eva-commerce/giftwrap/internal/platform/session"
	"github.com/eva-commerce/giftwrap/internal/services"
)

const maxToggleBodySize = 4 * 1024

// GiftWrapHandlers exposes the storefront-facing gift wrap endpoints.
type GiftWrapHandlers struct {
	reconcile  services.ReconcileService
	preference services.PreferenceService
	settings   services.SettingsService
	sessions   session.Config
	now        func() time.Time
}

// GiftWrapHandlersDeps bundles the services behind the storefront endpoints.
type GiftWrapHandlersDeps struct {
	Reconcile  services.ReconcileService
	Preference services.PreferenceService
	Settings   services.SettingsService
	Sessions   session.Config
	Clock      func() time.Time
}

// NewGiftWrapHandlers constructs the storefront handlers.
func NewGiftWrapHandlers(deps GiftWrapHandlersDeps) *GiftWrapHandlers {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &GiftWrapHandlers{
		reconcile:  deps.Reconcile,
		preference: deps.Preference,
		settings:   deps.Settings,
		sessions:   deps.Sessions,
		now:        clock,
	}
}

// Routes wires the /gift-wrap endpoints onto the provided router.
func (h *GiftWrapHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/toggle", h.toggle)
	r.Get("/status", h.status)
	r.Get("/presentation", h.presentation)
	r.Get("/checkout-field", h.checkoutField)
}

// toggle handles the explicit preference write. The enabled flag is the one
// place where input validity is enforced instead of coerced.
func (h *GiftWrapHandlers) toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reconcile == nil {
		httpx.WriteError(ctx, w, httpx.NewError("gift_wrap_unavailable", "gift wrap service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxToggleBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "enabled boolean is required", http.StatusBadRequest))
		return
	}

	enabled, err := parseToggleRequest(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	incoming := requestctx.SessionID(ctx)
	resolution, err := h.reconcile.ApplyToggle(ctx, incoming, enabled)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("gift_wrap_unavailable", "gift wrap service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if resolution.SessionID != incoming {
		session.Issue(w, h.sessions, resolution.SessionID, h.now())
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"gift_wrap": resolution.GiftWrap,
	})
}

// status restores the widget state on page load. A request without any
// session reads as false instead of failing.
func (h *GiftWrapHandlers) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.preference == nil {
		httpx.WriteError(ctx, w, httpx.NewError("gift_wrap_unavailable", "gift wrap service is unavailable", http.StatusServiceUnavailable))
		return
	}

	value, err := h.preference.Read(ctx, requestctx.SessionID(ctx))
	if err != nil {
		value = false
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"enabled": value})
}

func (h *GiftWrapHandlers) presentation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("gift_wrap_unavailable", "gift wrap service is unavailable", http.StatusServiceUnavailable))
		return
	}

	presentation, err := h.settings.Presentation(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("gift_wrap_unavailable", "gift wrap settings are unavailable", http.StatusServiceUnavailable))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"enabled":       presentation.Enabled,
		"section_title": presentation.SectionTitle,
		"label":         presentation.Label,
		"field_label":   presentation.FieldLabel,
		"fee": map[string]any{
			"amount":   presentation.FeeAmount.Decimal(),
			"currency": presentation.FeeAmount.Currency,
			"display":  presentation.FeeDisplay,
		},
		"stylesheet": presentation.Stylesheet,
	})
}

// checkoutField describes the additional checkout field for the host. The
// default value mirrors the caller's current reconciled preference.
func (h *GiftWrapHandlers) checkoutField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("gift_wrap_unavailable", "gift wrap service is unavailable", http.StatusServiceUnavailable))
		return
	}

	field, err := h.settings.CheckoutField(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("gift_wrap_unavailable", "gift wrap settings are unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.preference != nil {
		if value, err := h.preference.Read(ctx, requestctx.SessionID(ctx)); err == nil {
			field.Default = value
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"id":             field.ID,
		"type":           field.Type,
		"label":          field.Label,
		"section_title":  field.SectionTitle,
		"default":        field.Default,
		"required":       field.Required,
		"order_meta_key": field.OrderMetaKey,
	})
}

// parseToggleRequest accepts only a JSON object with a boolean enabled field.
func parseToggleRequest(body []byte) (bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false, errors.New("request body must be a JSON object")
	}
	raw, ok := fields["enabled"]
	if !ok {
		return false, errors.New("enabled boolean is required")
	}
	var enabled bool
	if err := json.Unmarshal(raw, &enabled); err != nil {
		return false, errors.New("enabled must be a boolean")
	}
	return enabled, nil
}
