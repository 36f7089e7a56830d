package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/Nexoracode/khadamat/internal/api"
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

func (h *HandlerImpl) RequestOTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "RequestOTP")
	defer span.End()
	l := h.logger.With(slog.String("handler", "RequestOTP"))

	var req types.RequestOTPRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.RequestOTP(ctx, req.Phone); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to request OTP")
		if errors.Is(err, ErrInvalidPhone) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "لطفاً شماره موبایل معتبر وارد کنید")
			return
		}
		l.ErrorContext(ctx, "Failed to request OTP", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to send verification code")
		return
	}

	span.SetStatus(codes.Ok, "OTP requested")
	api.WriteJSONResponse(w, r, http.StatusAccepted, map[string]string{"message": "کد تایید ارسال شد"})
}

func (h *HandlerImpl) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "VerifyOTP")
	defer span.End()
	l := h.logger.With(slog.String("handler", "VerifyOTP"))

	var req types.VerifyOTPRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.VerifyOTP(ctx, req)
	switch {
	case errors.Is(err, ErrInvalidPhone):
		api.ErrorResponse(w, r, http.StatusBadRequest, "لطفاً شماره موبایل معتبر وارد کنید")
		return
	case errors.Is(err, ErrInvalidOTP):
		api.ErrorResponse(w, r, http.StatusUnauthorized, "کد تایید نامعتبر است")
		return
	case err != nil:
		l.ErrorContext(ctx, "Failed to verify OTP", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to verify OTP")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to log in")
		return
	}

	span.SetStatus(codes.Ok, "Logged in")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
