package cart

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/Nexoracode/khadamat/internal/api"
	"github.com/Nexoracode/khadamat/internal/api/auth"
	"github.com/Nexoracode/khadamat/internal/types"
)

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
	}
}

func userFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return userID, true
}

func (h *HandlerImpl) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, h.service.GetCart(r.Context(), userID))
}

func (h *HandlerImpl) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CartHandler").Start(r.Context(), "AddItem")
	defer span.End()

	userID, ok := userFromRequest(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Unauthorized")
		return
	}

	var req types.AddCartItemRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.ValidateStruct(req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.service.AddItem(ctx, userID, req.ProductID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to add item")
		if errors.Is(err, ErrProductNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Product not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to add cart item", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to add item")
		return
	}
	span.SetStatus(codes.Ok, "Item added")
	api.WriteJSONResponse(w, r, http.StatusOK, c)
}

func (h *HandlerImpl) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	var req types.UpdateCartItemRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.ValidateStruct(req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	c := h.service.UpdateQuantity(r.Context(), userID, chi.URLParam(r, "productId"), req.Delta)
	api.WriteJSONResponse(w, r, http.StatusOK, c)
}
