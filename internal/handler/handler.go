// Package handler содержит HTTP-обработчики API сервиса учёта заказов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/inventory-system/internal/middleware"
	"github.com/mmeshcher/inventory-system/internal/model"
	"github.com/mmeshcher/inventory-system/internal/observability"
	"github.com/mmeshcher/inventory-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateOrder(ctx context.Context, caller model.Caller, in model.CreateOrderInput) (*model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error)
	DeleteOrder(ctx context.Context, caller model.Caller, id uuid.UUID) error
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	ListOrders(ctx context.Context, status string) ([]model.Order, error)
	GetDashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// Handler реализует HTTP-обработчики API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        *observability.Metrics
	rateLimit      int
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// rateLimit задаёт число запросов к /api в минуту с одного IP, 0 отключает ограничение.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, metrics *observability.Metrics, rateLimit int) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        metrics,
		rateLimit:      rateLimit,
	}
}

type orderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type createOrderRequest struct {
	CustomerID string             `json:"customer_id" validate:"required,uuid"`
	Items      []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes      *string            `json:"notes" validate:"omitempty,max=1000"`
}

func (req createOrderRequest) toInput() (model.CreateOrderInput, error) {
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return model.CreateOrderInput{}, &model.ValidationError{Fields: map[string]string{"customer_id": "uuid"}}
	}

	in := model.CreateOrderInput{
		CustomerID: customerID,
		Items:      make([]model.LineRequest, 0, len(req.Items)),
		Notes:      req.Notes,
	}
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return model.CreateOrderInput{}, &model.ValidationError{Fields: map[string]string{"product_id": "uuid"}}
		}
		in.Items = append(in.Items, model.LineRequest{ProductID: productID, Quantity: item.Quantity})
	}
	return in, nil
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateOrder оформляет заказ от имени текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.Struct(req); err != nil {
		h.handleError(w, err, "create order")
		return
	}

	in, err := req.toInput()
	if err != nil {
		h.handleError(w, err, "create order")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), caller, in)
	if err != nil {
		h.handleError(w, err, "create order")
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// ListOrders возвращает заказы, при необходимости отфильтрованные по статусу.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.handleError(w, err, "list orders")
		return
	}

	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder возвращает заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "get order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// GetOrderByNumber возвращает заказ по номеру. Номер с неверной контрольной цифрой отклоняется.
func (h *Handler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if !validation.IsValidOrderNumber(number) {
		writeError(w, http.StatusUnprocessableEntity, "invalid order number")
		return
	}

	order, err := h.service.GetOrderByNumber(r.Context(), number)
	if err != nil {
		h.handleError(w, err, "get order by number")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdateOrderStatus меняет статус заказа.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.Struct(req); err != nil {
		h.handleError(w, err, "update order status")
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.handleError(w, err, "update order status")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// DeleteOrder удаляет заказ. Доступно только администратору.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(r.Context(), caller, id); err != nil {
		h.handleError(w, err, "delete order")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

// DashboardStats возвращает сводные показатели.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		h.handleError(w, err, "dashboard stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Health сообщает, что сервис принимает запросы.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

// handleError переводит доменные ошибки в HTTP-ответы. Неизвестные ошибки
// логируются, а клиент получает только общий текст.
func (h *Handler) handleError(w http.ResponseWriter, err error, op string) {
	var (
		stockErr      *model.InsufficientStockError
		validationErr *model.ValidationError
		statusErr     *model.InvalidStatusError
	)

	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     stockErr.Error(),
			"product":   stockErr.ProductName,
			"available": stockErr.Available,
		})
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation failed")
	case errors.As(err, &statusErr):
		writeError(w, http.StatusBadRequest, statusErr.Error())
	case errors.Is(err, model.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid status")
	case errors.Is(err, model.ErrCustomerOrProductNotFound):
		writeError(w, http.StatusNotFound, "customer or product not found")
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, model.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn(op+" timed out", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, http.StatusText(http.StatusGatewayTimeout))
	case errors.Is(err, context.Canceled):
		h.logger.Debug(op+" canceled by client", zap.Error(err))
		writeError(w, statusClientClosedRequest, "request canceled")
	default:
		h.logger.Error(op+" error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// statusClientClosedRequest используется, когда клиент закрыл соединение до ответа.
const statusClientClosedRequest = 499

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
