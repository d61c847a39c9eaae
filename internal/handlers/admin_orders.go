package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/eva-commerce/giftwrap/internal/domain"
	"github.com/eva-commerce/giftwrap/internal/platform/httpx"
	"github.com/eva-commerce/giftwrap/internal/platform/pagination"
	"github.com/eva-commerce/giftwrap/internal/services"
)

const ordersDefaultPageSize = 25

// AdminOrderHandlers exposes the recorded per-order gift wrap markers to merchants.
type AdminOrderHandlers struct {
	snapshots services.OrderSnapshotService
}

// NewAdminOrderHandlers constructs the admin order snapshot handlers.
func NewAdminOrderHandlers(snapshots services.OrderSnapshotService) *AdminOrderHandlers {
	return &AdminOrderHandlers{snapshots: snapshots}
}

// Routes wires the /admin order snapshot endpoints onto the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.snapshots == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order snapshot service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize:     ordersDefaultPageSize,
		DefaultOrder:        pagination.Order{Field: "createdAt", Desc: true},
		AllowedOrderFields:  []string{"createdAt"},
		AllowedFilterFields: []string{"value"},
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	input := services.ListSnapshotsInput{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
		Ascending: !params.Order.Desc,
	}
	for _, filter := range params.Filters {
		if filter.Field != "value" {
			continue
		}
		switch filter.Value {
		case domain.OrderMetaYes:
			wrapped := true
			input.Wrapped = &wrapped
		case domain.OrderMetaNo:
			wrapped := false
			input.Wrapped = &wrapped
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "value filter must be yes or no", http.StatusBadRequest))
			return
		}
	}

	list, err := h.snapshots.List(ctx, input)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	orders := make([]map[string]any, 0, len(list.Snapshots))
	for _, snapshot := range list.Snapshots {
		orders = append(orders, orderPayload(snapshot))
	}
	payload := map[string]any{"orders": orders}
	if list.NextPageToken != "" {
		payload["next_page_token"] = list.NextPageToken
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.snapshots == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order snapshot service is unavailable", http.StatusServiceUnavailable))
		return
	}

	snapshot, err := h.snapshots.Lookup(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderPayload(snapshot))
}

func (h *AdminOrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderSnapshotInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid order request", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderSnapshotNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "no gift wrap marker recorded for order", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderSnapshotUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order snapshot store is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected failure", http.StatusInternalServerError))
	}
}

func orderPayload(snapshot domain.OrderSnapshot) map[string]any {
	return map[string]any{
		"order_id":   snapshot.OrderID,
		"gift_wrap":  snapshot.Wrapped(),
		"order_meta": map[string]string{domain.OrderMetaKey: snapshot.Value},
		"created_at": snapshot.CreatedAt,
	}
}
