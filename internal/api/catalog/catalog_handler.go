package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

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

// writeServiceError maps catalog errors onto HTTP statuses.
func (h *HandlerImpl) writeServiceError(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	switch {
	case errors.Is(err, ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "Not found")
	case errors.Is(err, api.ErrValidation):
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "Catalog request failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// ListSpecialists serves the public directory. Phones are only shown to
// logged-in callers.
func (h *HandlerImpl) ListSpecialists(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "ListSpecialists")
	defer span.End()

	specialists, err := h.service.ListSpecialists(ctx, r.URL.Query().Get("expertise"))
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	if !auth.IsLoggedIn(ctx) {
		specialists = RedactContact(specialists)
	}
	span.SetStatus(codes.Ok, "Specialists listed")
	api.WriteJSONResponse(w, r, http.StatusOK, specialists)
}

func (h *HandlerImpl) TopSpecialists(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "TopSpecialists")
	defer span.End()

	n := DefaultTopSpecialists
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.ErrorResponse(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		n = parsed
	}

	specialists, err := h.service.TopSpecialists(ctx, n)
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	if !auth.IsLoggedIn(ctx) {
		specialists = RedactContact(specialists)
	}
	span.SetStatus(codes.Ok, "Top specialists listed")
	api.WriteJSONResponse(w, r, http.StatusOK, specialists)
}

// SpecialistContact reveals a specialist's phone. Mounted behind Authenticate.
func (h *HandlerImpl) SpecialistContact(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "SpecialistContact")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("specialist.id", id))

	sp, err := h.service.GetSpecialist(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "Contact revealed")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"id": sp.ID, "name": sp.Name, "phone": sp.Phone})
}

func (h *HandlerImpl) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "ListProducts")
	defer span.End()

	products, err := h.service.ListProducts(ctx, r.URL.Query().Get("category"))
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "Products listed")
	api.WriteJSONResponse(w, r, http.StatusOK, products)
}

func (h *HandlerImpl) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "GetProduct")
	defer span.End()

	p, err := h.service.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "Product found")
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

func (h *HandlerImpl) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "Dashboard")
	defer span.End()

	stats, err := h.service.Dashboard(ctx)
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "Dashboard served")
	api.WriteJSONResponse(w, r, http.StatusOK, stats)
}

// AdminListSpecialists lists every specialist including contact details.
func (h *HandlerImpl) AdminListSpecialists(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "AdminListSpecialists")
	defer span.End()

	specialists, err := h.service.ListSpecialists(ctx, r.URL.Query().Get("expertise"))
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "Specialists listed")
	api.WriteJSONResponse(w, r, http.StatusOK, specialists)
}

func (h *HandlerImpl) CreateSpecialist(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "CreateSpecialist")
	defer span.End()

	var req types.CreateSpecialistRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.CreateSpecialist(ctx, req)
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "Specialist created")
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

func (h *HandlerImpl) DeleteSpecialist(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "DeleteSpecialist")
	defer span.End()

	if err := h.service.DeleteSpecialist(ctx, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "Specialist deleted")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *HandlerImpl) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "CreateProduct")
	defer span.End()

	var req types.CreateProductRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.CreateProduct(ctx, req)
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "Product created")
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

func (h *HandlerImpl) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "DeleteProduct")
	defer span.End()

	if err := h.service.DeleteProduct(ctx, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "Product deleted")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "ListUsers")
	defer span.End()

	users, err := h.service.ListUsers(ctx, r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "Users listed")
	api.WriteJSONResponse(w, r, http.StatusOK, users)
}

func (h *HandlerImpl) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "CreateUser")
	defer span.End()

	var req types.CreateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.CreateUser(ctx, req)
	if err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "User created")
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

func (h *HandlerImpl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CatalogHandler").Start(r.Context(), "DeleteUser")
	defer span.End()

	if err := h.service.DeleteUser(ctx, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, span, err)
		return
	}
	span.SetStatus(codes.Ok, "User deleted")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
