package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
	"github.com/eva-commerce/giftwrap/internal/hosthooks"
	"github.com/eva-commerce/giftwrap/internal/platform/httpx"
	"github.com/eva-commerce/giftwrap/internal/platform/requestctx"
	"github.com/eva-commerce/giftwrap/internal/services"
)

const maxHookBodySize = 256 * 1024

// HookHandlers receives the host platform's lifecycle deliveries. Internal
// failures degrade to a neutral response so the host's checkout flow is
// never blocked by the gift wrap extension.
type HookHandlers struct {
	registry *hosthooks.Registry
	logger   func(context.Context, string, map[string]any)
}

// HookHandlersDeps bundles the services behind the hook endpoints.
type HookHandlersDeps struct {
	Reconcile services.ReconcileService
	Fees      services.FeeService
	Logger    func(context.Context, string, map[string]any)
}

// NewHookHandlers constructs the hook handlers and registers the supported
// events on a fresh registry.
func NewHookHandlers(deps HookHandlersDeps) (*HookHandlers, error) {
	if deps.Reconcile == nil {
		return nil, errors.New("hook handlers: reconcile service is required")
	}
	if deps.Fees == nil {
		return nil, errors.New("hook handlers: fee service is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	registry := hosthooks.NewRegistry(logger)
	registry.Register(hosthooks.EventCartUpdated, cartUpdatedHandler(deps.Reconcile))
	registry.Register(hosthooks.EventOrderCreated, orderCreatedHandler(deps.Reconcile))
	registry.Register(hosthooks.EventCalculateFees, calculateFeesHandler(deps.Fees))

	return &HookHandlers{registry: registry, logger: logger}, nil
}

// Routes wires the /hooks endpoints onto the provided router.
func (h *HookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/cart-updated", h.deliver(hosthooks.EventCartUpdated))
	r.Post("/order-created", h.deliver(hosthooks.EventOrderCreated))
	r.Post("/calculate-fees", h.deliver(hosthooks.EventCalculateFees))
}

func (h *HookHandlers) deliver(event string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := readLimitedBody(r, maxHookBodySize)
		if err != nil {
			if errors.Is(err, errBodyTooLarge) {
				httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
				return
			}
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
			return
		}

		result, err := h.registry.Dispatch(ctx, event, body)
		if err != nil {
			if errors.Is(err, hosthooks.ErrUnknownEvent) {
				httpx.WriteError(ctx, w, httpx.NewError("unknown_event", "no handler for event "+event, http.StatusNotFound))
				return
			}
			if isDecodeError(err) {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
				return
			}
			// Gift wrap is additive; a broken delivery must not fail the
			// host's request.
			h.logger(ctx, "giftwrap.hooks.degraded", map[string]any{
				"event": event,
				"error": err.Error(),
			})
			writeJSONResponse(w, http.StatusOK, map[string]any{"success": false})
			return
		}

		writeJSONResponse(w, http.StatusOK, result)
	}
}

func cartUpdatedHandler(reconcile services.ReconcileService) hosthooks.Handler {
	return func(ctx context.Context, payload hosthooks.Payload) (any, error) {
		resolution, err := reconcile.ApplyCartUpdate(ctx, services.CartUpdateInput{
			SessionID: sessionFrom(ctx, payload),
			Signals:   payload.Signals,
			Context:   payload.Context,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success":    true,
			"session_id": resolution.SessionID,
			"gift_wrap":  resolution.GiftWrap,
			"changed":    resolution.Changed,
			"fees":       feePayload(resolution.FeeLines),
		}, nil
	}
}

func orderCreatedHandler(reconcile services.ReconcileService) hosthooks.Handler {
	return func(ctx context.Context, payload hosthooks.Payload) (any, error) {
		result, err := reconcile.ApplyOrderCreate(ctx, services.OrderCreateInput{
			SessionID: sessionFrom(ctx, payload),
			OrderID:   payload.OrderID,
			Signals:   payload.Signals,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success":    true,
			"session_id": result.SessionID,
			"gift_wrap":  result.GiftWrap,
			"order_meta": map[string]string{
				domain.OrderMetaKey: result.SnapshotValue,
			},
		}, nil
	}
}

func calculateFeesHandler(fees services.FeeService) hosthooks.Handler {
	return func(ctx context.Context, payload hosthooks.Payload) (any, error) {
		lines, err := fees.Apply(ctx, services.FeeRequest{
			SessionID:    sessionFrom(ctx, payload),
			Context:      payload.Context,
			ExistingFees: payload.Fees,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"fees": feePayload(lines)}, nil
	}
}

// sessionFrom prefers the session carried in the delivery body and falls
// back to the transport-level session header.
func sessionFrom(ctx context.Context, payload hosthooks.Payload) string {
	if payload.SessionID != "" {
		return payload.SessionID
	}
	return requestctx.SessionID(ctx)
}

func feePayload(lines []domain.FeeLine) []map[string]any {
	payload := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		payload = append(payload, map[string]any{
			"name":     line.Name,
			"label":    line.Label,
			"amount":   line.Amount.Decimal(),
			"currency": line.Amount.Currency,
			"taxable":  line.Taxable,
		})
	}
	return payload
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
