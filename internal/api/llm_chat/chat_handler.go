package llmChat

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Nexoracode/khadamat/internal/api"
	"github.com/Nexoracode/khadamat/internal/api/speech"
	"github.com/Nexoracode/khadamat/internal/types"
)

// maxMessageBytes bounds a chat submission including its base64 clip.
const maxMessageBytes = 16 << 20

type HandlerImpl struct {
	logger         *slog.Logger
	service        Service
	allowedOrigins []string
}

func NewHandlerImpl(service Service, allowedOrigins []string, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:         logger,
		service:        service,
		allowedOrigins: allowedOrigins,
	}
}

func (h *HandlerImpl) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid session ID format")
		return nil, false
	}
	session, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusNotFound, "Chat session not found")
		return nil, false
	}
	return session, true
}

func (h *HandlerImpl) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "CreateSession")
	defer span.End()

	session := h.service.CreateSession(ctx)
	span.SetStatus(codes.Ok, "Session created")
	api.WriteJSONResponse(w, r, http.StatusCreated, session.Snapshot())
}

func (h *HandlerImpl) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, session.Snapshot())
}

func (h *HandlerImpl) EndSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	h.service.EndSession(r.Context(), session.ID())
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// decodeAudio turns the browser payload into a capture, rejecting anything
// that does not sniff as audio.
func decodeAudio(p *types.AudioPayload) (*types.AudioCapture, error) {
	if p == nil {
		return nil, nil
	}
	if err := api.ValidateStruct(p); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, errors.New("audio data is not valid base64")
	}
	detected := mimetype.Detect(data)
	if !isAudio(detected) {
		return nil, errors.New("unsupported audio format: " + detected.String())
	}
	mimeType := p.MIMEType
	if !strings.HasPrefix(mimeType, "audio/") {
		mimeType = detected.String()
	}
	return &types.AudioCapture{Data: data, MIMEType: mimeType}, nil
}

// isAudio accepts audio types plus the webm and mp4 containers that
// MediaRecorder produces for voice notes.
func isAudio(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") || m.Is("video/webm") || m.Is("video/mp4") {
			return true
		}
	}
	return false
}

func (h *HandlerImpl) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "SendMessage")
	defer span.End()
	l := h.logger.With(slog.String("handler", "SendMessage"))

	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Session not found")
		return
	}
	span.SetAttributes(attribute.String("session.id", session.ID().String()))

	var req types.SendMessageRequest
	if err := api.DecodeJSONBodyLimit(w, r, &req, maxMessageBytes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	capture, err := decodeAudio(req.Audio)
	if err != nil {
		l.WarnContext(ctx, "Rejected audio payload", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid audio")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.Location != nil {
		if err := api.ValidateStruct(req.Location); err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	_, err = session.SubmitAt(ctx, req.Text, capture, req.Location)
	switch {
	case errors.Is(err, ErrEmptyUtterance):
		span.SetStatus(codes.Error, "Empty message")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Message text or audio is required")
		return
	case errors.Is(err, ErrTurnInProgress):
		span.SetStatus(codes.Error, "Turn in progress")
		api.ErrorResponse(w, r, http.StatusConflict, "Please wait for the current reply")
		return
	case err != nil:
		l.ErrorContext(ctx, "Turn failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Turn failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to process message")
		return
	}

	span.SetStatus(codes.Ok, "Turn completed")
	api.WriteJSONResponse(w, r, http.StatusOK, session.Snapshot())
}

func (h *HandlerImpl) SetLocation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var loc types.GeoPoint
	if err := api.DecodeJSONBody(w, r, &loc); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.ValidateStruct(loc); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session.SetLocation(loc)
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *HandlerImpl) ClearLocation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	session.ClearLocation()
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// GetAudio streams a stored clip. WAV answers also report their duration.
func (h *HandlerImpl) GetAudio(w http.ResponseWriter, r *http.Request) {
	clip, ok := h.service.GetAudio(r.Context(), chi.URLParam(r, "ref"))
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, "Audio not found or expired")
		return
	}

	w.Header().Set("Content-Type", clip.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(clip.Data)))
	w.Header().Set("Cache-Control", "private, max-age=1800")
	if hdr, err := speech.ParseWAVHeader(clip.Data); err == nil {
		w.Header().Set("X-Audio-Duration-Ms", strconv.FormatInt(hdr.Duration().Milliseconds(), 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(clip.Data); err != nil {
		h.logger.DebugContext(r.Context(), "Failed to write audio", slog.Any("error", err))
	}
}
