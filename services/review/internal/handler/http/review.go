package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/jbytow/coffeetica/pkg/errors"
	"github.com/jbytow/coffeetica/pkg/httputil"
	"github.com/jbytow/coffeetica/pkg/middleware"
	"github.com/jbytow/coffeetica/pkg/pagination"
	"github.com/jbytow/coffeetica/pkg/validator"
	"github.com/jbytow/coffeetica/services/review/internal/domain"
	"github.com/jbytow/coffeetica/services/review/internal/service"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	limits  pagination.Limits
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, limits pagination.Limits, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		limits:  limits,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ReviewRequest is the JSON body for creating or updating a review.
type ReviewRequest struct {
	CoffeeID           int64   `json:"coffeeId" validate:"required,gt=0"`
	Rating             float64 `json:"rating" validate:"required,halfstar"`
	Content            string  `json:"content" validate:"required"`
	BrewingMethod      string  `json:"brewingMethod" validate:"required,max=50"`
	BrewingDescription *string `json:"brewingDescription" validate:"omitempty,max=200"`
}

// Normalize trims the free-text fields so blank input fails "required".
func (req *ReviewRequest) Normalize() {
	req.Content = strings.TrimSpace(req.Content)
	req.BrewingMethod = strings.TrimSpace(req.BrewingMethod)
	if req.BrewingDescription != nil {
		d := strings.TrimSpace(*req.BrewingDescription)
		req.BrewingDescription = &d
	}
}

func (req *ReviewRequest) input() domain.ReviewInput {
	in := domain.ReviewInput{
		CoffeeID:      req.CoffeeID,
		Rating:        req.Rating,
		Content:       req.Content,
		BrewingMethod: req.BrewingMethod,
	}
	if req.BrewingDescription != nil {
		in.BrewingDescription = *req.BrewingDescription
	}
	return in
}

// --- Handlers ---

// GetMine handles GET /api/reviews/user?coffeeId={id}
// @Summary Get the caller's review of a coffee
// @Tags reviews
// @Produce json
// @Param coffeeId query int true "Coffee ID"
// @Success 200 {object} domain.Review
// @Success 204 "No review yet"
// @Failure 401 {object} httputil.ErrorEnvelope
// @Router /api/reviews/user [get]
func (h *ReviewHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	coffeeID, ok := httputil.ParseID(w, "coffeeId", r.URL.Query().Get("coffeeId"))
	if !ok {
		return
	}

	review, err := h.service.GetMine(r.Context(), middleware.UserIDFromContext(r.Context()), coffeeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			httputil.WriteNoContent(w)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, review)
}

// GetReview handles GET /api/reviews/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "review id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	review, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, review)
}

// ListReviews handles GET /api/reviews
// @Summary List a coffee's or a user's reviews
// @Tags reviews
// @Produce json
// @Param coffeeId query int false "Coffee ID"
// @Param userId query int false "User ID"
// @Param page query int false "Zero-based page" default(0)
// @Param size query int false "Page size" default(10)
// @Param sortBy query string false "createdAt or rating" default(createdAt)
// @Param direction query string false "asc or desc" default(desc)
// @Success 200 {object} pagination.Page[domain.Review]
// @Failure 400 {object} httputil.ErrorEnvelope
// @Router /api/reviews [get]
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter domain.ReviewFilter
	if raw := q.Get("coffeeId"); raw != "" {
		id, ok := httputil.ParseID(w, "coffeeId", raw)
		if !ok {
			return
		}
		filter.CoffeeID = id
	}
	if raw := q.Get("userId"); raw != "" {
		id, ok := httputil.ParseID(w, "userId", raw)
		if !ok {
			return
		}
		filter.UserID = id
	}
	filter.Sort, filter.Direction = domain.ParseSort(q.Get("sortBy"), q.Get("direction"))
	filter.Page = pagination.FromRequest(r, h.limits)

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, page)
}

// CreateReview handles POST /api/reviews
// @Summary Review a coffee
// @Tags reviews
// @Accept json
// @Produce json
// @Param request body ReviewRequest true "Review to submit"
// @Success 201 {object} domain.Review
// @Failure 400 {object} httputil.ErrorEnvelope
// @Failure 404 {object} httputil.ErrorEnvelope
// @Failure 409 {object} httputil.ErrorEnvelope
// @Router /api/reviews [post]
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := decodeReview(w, r)
	if !ok {
		return
	}

	review, err := h.service.Create(r.Context(), actor, req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, review)
}

// UpdateReview handles PUT /api/reviews/{id}
// @Summary Edit a review
// @Tags reviews
// @Accept json
// @Produce json
// @Param id path int true "Review ID"
// @Param request body ReviewRequest true "Replacement fields"
// @Success 200 {object} domain.Review
// @Failure 400 {object} httputil.ErrorEnvelope
// @Failure 403 {object} httputil.ErrorEnvelope
// @Failure 404 {object} httputil.ErrorEnvelope
// @Router /api/reviews/{id} [put]
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "review id", chi.URLParam(r, "id"))
	if !ok {
		return
	}
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, ok := decodeReview(w, r)
	if !ok {
		return
	}

	review, err := h.service.Update(r.Context(), actor, id, req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, review)
}

// DeleteReview handles DELETE /api/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "review id", chi.URLParam(r, "id"))
	if !ok {
		return
	}
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteNoContent(w)
}

func decodeReview(w http.ResponseWriter, r *http.Request) (*ReviewRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes)

	var req ReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return nil, false
	}
	return &req, true
}

func actorFrom(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), nil)
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: claims.UserID, Username: claims.Username, Roles: claims.Roles}, true
}
