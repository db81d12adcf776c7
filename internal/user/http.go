package user

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/boxdancer/EVENTUM-education-platform/internal/httputil"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service   Service
	validator *Validator
	logger    *slog.Logger
}

func NewHandler(service Service, validator *Validator, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes serves POST /user/ and POST /user.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.Post("/", h.CreateUser)
	})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateUserRequest
	if err := h.validator.DecodeRequest(r.Body, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "creating user", "email", req.Email)
	created, err := h.service.CreateUser(ctx, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, created)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError

	switch {
	case errors.As(err, &verr):
		h.logger.InfoContext(r.Context(), "rejected user request", "detail", verr.Detail)
		httputil.RespondWithError(w, http.StatusUnprocessableEntity, verr.Detail)
	case errors.Is(err, ErrEmailExists):
		httputil.RespondWithError(w, http.StatusConflict, ErrEmailExists.Error())
	default:
		h.logger.ErrorContext(r.Context(), "failed to create user", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
