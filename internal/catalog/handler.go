// internal/catalog/handler.go
package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

type Handler struct {
	service       Service
	createLimiter *rate.Limiter
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCreateLimit caps item creation at perMinute requests, with bursts of
// the same size. A non-positive value disables the limit.
func WithCreateLimit(perMinute int) HandlerOption {
	return func(h *Handler) {
		if perMinute <= 0 {
			h.createLimiter = nil
			return
		}
		h.createLimiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)
	}
}

func NewHandler(service Service, opts ...HandlerOption) *Handler {
	h := &Handler{service: service}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the catalog endpoints on a new router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/items", h.handleCreateItem)
	r.Get("/items", h.handleListItems)
	r.Route("/items/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetItem)
		r.Post("/loan", h.handleTransition(OpLoan))
		r.Post("/return", h.handleTransition(OpReturn))
		r.Post("/reserve", h.handleTransition(OpReserve))
		r.Put("/status", h.handleSetStatus)
		r.Get("/history", h.handleHistory)
	})
	return r
}

// statusFor maps catalog failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidData):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotAvailable):
		return http.StatusConflict
	case errors.Is(err, ErrHistoryUnavailable):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseID(r *http.Request) (uint32, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	if h.createLimiter != nil && !h.createLimiter.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var req struct {
		Title string `json:"title"`
		Owner string `json:"owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateItem(r.Context(), req.Title, req.Owner)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]uint32{"id": id})
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	var (
		items []Item
		err   error
	)
	switch filter := r.URL.Query().Get("status"); filter {
	case "":
		items, err = h.service.ListAll(r.Context())
	case string(StatusAvailable):
		items, err = h.service.ListAvailable(r.Context())
	default:
		http.Error(w, "unsupported status filter", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid item ID", http.StatusBadRequest)
		return
	}

	item, ok, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if !ok {
		http.Error(w, ErrNotFound.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleTransition(op Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			http.Error(w, "invalid item ID", http.StatusBadRequest)
			return
		}

		switch op {
		case OpLoan:
			err = h.service.Loan(r.Context(), id)
		case OpReturn:
			err = h.service.ReturnItem(r.Context(), id)
		case OpReserve:
			err = h.service.Reserve(r.Context(), id)
		}
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid item ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SetStatus(r.Context(), id, Status(req.Status)); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid item ID", http.StatusBadRequest)
		return
	}

	events, err := h.service.History(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, events)
}
