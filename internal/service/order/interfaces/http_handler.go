package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/service/order/application"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to write response")
	}
}

func extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// IntakeHandler serves order placement.
type IntakeHandler struct {
	service *application.IntakeService
}

func NewIntakeHandler(service *application.IntakeService) *IntakeHandler {
	return &IntakeHandler{service: service}
}

func (h *IntakeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.placeOrder)
	mux.HandleFunc("GET /orders/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "UP"})
	})
}

func (h *IntakeHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	var req application.PlaceOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	resp, err := h.service.PlaceOrder(ctx, &req)
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil:
		logger.Ctx(ctx).Error().Err(err).Msg("failed to place order")
		writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: "order could not be accepted, try again"})
	default:
		writeJSON(ctx, w, http.StatusAccepted, resp)
	}
}

// ProjectorHandler serves the confirmed-order read model.
type ProjectorHandler struct {
	service *application.ProjectorService
	feed    http.Handler
}

// NewProjectorHandler wires the read endpoints. feed may be nil.
func NewProjectorHandler(service *application.ProjectorService, feed http.Handler) *ProjectorHandler {
	return &ProjectorHandler{service: service, feed: feed}
}

func (h *ProjectorHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	if h.feed != nil {
		mux.Handle("GET /orders/stream", h.feed)
	}
}

func (h *ProjectorHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	orders, err := h.service.ListOrders(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to list orders")
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to list orders"})
		return
	}
	writeJSON(ctx, w, http.StatusOK, orders)
}

func (h *ProjectorHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	order, err := h.service.GetOrder(ctx, r.PathValue("id"))
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case err != nil:
		logger.Ctx(ctx).Error().Err(err).Msg("failed to get order")
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to get order"})
	default:
		writeJSON(ctx, w, http.StatusOK, order)
	}
}

// SagaHandler exposes the coordinator's join state for one order.
type SagaHandler struct {
	store port.CorrelationStore
}

func NewSagaHandler(store port.CorrelationStore) *SagaHandler {
	return &SagaHandler{store: store}
}

func (h *SagaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /sagas/{id}", h.getSaga)
}

func (h *SagaHandler) getSaga(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	rec, ok, err := h.store.Get(ctx, r.PathValue("id"))
	switch {
	case err != nil:
		logger.Ctx(ctx).Error().Err(err).Msg("failed to read saga")
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to read saga"})
	case !ok:
		writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "saga not found"})
	default:
		writeJSON(ctx, w, http.StatusOK, application.ToSagaView(rec))
	}
}
