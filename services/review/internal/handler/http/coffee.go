package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jbytow/coffeetica/pkg/httputil"
	"github.com/jbytow/coffeetica/services/review/internal/service"
)

// CoffeeHandler serves coffee details with their rating aggregate.
type CoffeeHandler struct {
	service *service.CoffeeService
	logger  *slog.Logger
}

// NewCoffeeHandler creates a new coffee HTTP handler.
func NewCoffeeHandler(svc *service.CoffeeService, logger *slog.Logger) *CoffeeHandler {
	return &CoffeeHandler{service: svc, logger: logger}
}

// GetCoffee handles GET /api/coffees/{id}
// @Summary Coffee details with average rating and latest reviews
// @Tags coffees
// @Produce json
// @Param id path int true "Coffee ID"
// @Success 200 {object} domain.CoffeeDetails
// @Failure 404 {object} httputil.ErrorEnvelope
// @Router /api/coffees/{id} [get]
func (h *CoffeeHandler) GetCoffee(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "coffee id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	details, err := h.service.GetDetails(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, details)
}
