// Package httpapi exposes the pre-order service as a JSON HTTP API under
// /api/v1.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"preordercore/internal/adapters/export"
	"preordercore/internal/core"
	"preordercore/pkg/domain"
)

// Handler routes API requests to the service and the export worker.
type Handler struct {
	Service *core.Service
	Exports *export.Worker
}

// NewHandler constructs the API handler.
func NewHandler(service *core.Service, exports *export.Worker) *Handler {
	return &Handler{Service: service, Exports: exports}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/users" && r.Method == http.MethodPost:
		h.handleRegister(w, r)
	case path == "/api/v1/login" && r.Method == http.MethodPost:
		h.handleLogin(w, r)
	case path == "/api/v1/periods":
		h.handlePeriods(w, r)
	case path == "/api/v1/periods/active" && r.Method == http.MethodPut:
		h.handleSetActivePeriod(w, r)
	case path == "/api/v1/products":
		h.handleProducts(w, r)
	case strings.HasPrefix(path, "/api/v1/products/") && r.Method == http.MethodDelete:
		h.handleDeleteProduct(w, r, strings.TrimPrefix(path, "/api/v1/products/"))
	case path == "/api/v1/orders":
		h.handleOrders(w, r)
	case path == "/api/v1/orders/send" && r.Method == http.MethodPost:
		h.handleSendOrders(w, r)
	case strings.HasPrefix(path, "/api/v1/orders/"):
		h.handleOrder(w, r, strings.TrimPrefix(path, "/api/v1/orders/"))
	case path == "/api/v1/reports/orders" && r.Method == http.MethodGet:
		h.handleReport(w, r)
	case path == "/api/v1/notifications":
		h.handleNotifications(w, r)
	case path == "/api/v1/exports" && r.Method == http.MethodPost:
		h.handleExportCreate(w, r)
	case strings.HasPrefix(path, "/api/v1/exports/") && r.Method == http.MethodGet:
		h.handleExportGet(w, r, strings.TrimPrefix(path, "/api/v1/exports/"))
	default:
		http.NotFound(w, r)
	}
}

type registerRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid registration payload")
		return
	}
	user, _, err := h.Service.RegisterUser(r.Context(), core.User{Name: req.Name, Address: req.Address, Phone: req.Phone})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

type loginRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid login payload")
		return
	}
	user, err := h.Service.Authenticate(r.Context(), req.Name, req.Phone)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type periodRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handlePeriods(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		store := h.Service.Store()
		writeJSON(w, http.StatusOK, map[string]any{
			"periods": store.ListPeriods(),
			"active":  store.ActivePeriod(),
		})
	case http.MethodPost:
		var req periodRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid period payload")
			return
		}
		if _, err := h.Service.AddPeriod(r.Context(), req.Name); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"period": strings.TrimSpace(req.Name)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleSetActivePeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid period payload")
		return
	}
	if _, err := h.Service.SetActivePeriod(r.Context(), req.Name); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": req.Name})
}

type productRequest struct {
	Name   string  `json:"name"`
	Sizes  string  `json:"sizes"`
	Colors string  `json:"colors"`
	Price  float64 `json:"price"`
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"products": h.Service.Store().ListProducts()})
	case http.MethodPost:
		var req productRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid product payload")
			return
		}
		product, _, err := h.Service.CreateProduct(r.Context(), core.ProductDraft{
			Name:   req.Name,
			Sizes:  req.Sizes,
			Colors: req.Colors,
			Price:  req.Price,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if _, err := h.Service.DeleteProduct(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

type orderRequest struct {
	UserID          string `json:"userId"`
	ProductID       string `json:"productId"`
	Size            string `json:"size"`
	Color           string `json:"color"`
	Quantity        int    `json:"quantity"`
	DropshipAddress string `json:"dropshipAddress"`
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := r.URL.Query().Get("userId")
		period := r.URL.Query().Get("period")
		orders := make([]core.Order, 0)
		for _, order := range h.Service.Store().ListOrders() {
			if userID != "" && order.UserID != userID {
				continue
			}
			if period != "" && order.Period != period {
				continue
			}
			orders = append(orders, order)
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
	case http.MethodPost:
		var req orderRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid order payload")
			return
		}
		order, _, err := h.Service.PlaceOrder(r.Context(), core.OrderRequest{
			UserID:          req.UserID,
			ProductID:       req.ProductID,
			Size:            req.Size,
			Color:           req.Color,
			Quantity:        req.Quantity,
			DropshipAddress: req.DropshipAddress,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"order": order})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type orderUpdateRequest struct {
	Size            *string `json:"size"`
	Color           *string `json:"color"`
	Quantity        *int    `json:"quantity"`
	DropshipAddress *string `json:"dropshipAddress"`
}

type lockRequest struct {
	Locked *bool `json:"locked"`
}

func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	id := segments[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 2 && segments[1] == "lock" {
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleOrderLock(w, r, id)
		return
	}
	if len(segments) != 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req orderUpdateRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid order payload")
			return
		}
		order, _, err := h.Service.UpdateOrder(r.Context(), id, core.OrderUpdate{
			Size:            req.Size,
			Color:           req.Color,
			Quantity:        req.Quantity,
			DropshipAddress: req.DropshipAddress,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": order})
	case http.MethodDelete:
		if _, err := h.Service.DeleteOrder(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleOrderLock(w http.ResponseWriter, r *http.Request, id string) {
	var req lockRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid lock payload")
		return
	}
	var locked bool
	var err error
	if req.Locked != nil {
		locked = *req.Locked
		_, err = h.Service.SetOrderLock(r.Context(), id, locked)
	} else {
		locked, _, err = h.Service.ToggleOrderLock(r.Context(), id)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "locked": locked})
}

type sendRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) handleSendOrders(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid send payload")
		return
	}
	count, _, err := h.Service.SendDraftOrders(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": count})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.Service.Report(r.Context(), core.OrderFilter{
		UserID:    q.Get("userId"),
		ProductID: q.Get("productId"),
		Period:    q.Get("period"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"notifications": h.Service.Notifications(r.Context())})
	case http.MethodDelete:
		if _, err := h.Service.ClearNotifications(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type exportRequest struct {
	UserID      string   `json:"userId"`
	ProductID   string   `json:"productId"`
	Period      string   `json:"period"`
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requestedBy"`
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		writeError(w, http.StatusServiceUnavailable, "export worker not configured")
		return
	}
	var req exportRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid export payload")
		return
	}
	formats := make([]export.Format, 0, len(req.Formats))
	for _, f := range req.Formats {
		formats = append(formats, export.Format(strings.ToLower(strings.TrimSpace(f))))
	}
	record, err := h.Exports.Enqueue(r.Context(), export.Input{
		Filter: core.OrderFilter{
			UserID:    req.UserID,
			ProductID: req.ProductID,
			Period:    req.Period,
		},
		Formats:     formats,
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleExportGet(w http.ResponseWriter, r *http.Request, id string) {
	if h.Exports == nil {
		writeError(w, http.StatusServiceUnavailable, "export worker not configured")
		return
	}
	if id == "" {
		http.NotFound(w, r)
		return
	}
	record, ok := h.Exports.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

// decode parses the JSON request body. An empty body decodes into the zero
// request.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && err.Error() != "EOF" {
		return err
	}
	return nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	var notFound core.ErrNotFound
	var conflict domain.ConflictError
	var violation domain.RuleViolationError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &violation):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      err.Error(),
			"violations": violation.Result.Violations,
		})
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
