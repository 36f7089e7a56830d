package llmChat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Nexoracode/khadamat/config"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	CreateSession(ctx context.Context) *Session
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	EndSession(ctx context.Context, id uuid.UUID)
	GetAudio(ctx context.Context, ref string) (AudioClip, bool)
}

// ServiceImpl owns the live sessions. A session idle for longer than the
// configured TTL is dropped together with its transcript.
type ServiceImpl struct {
	logger   *slog.Logger
	deps     *turnDeps
	sessions *cache.Cache
	ttl      time.Duration
}

func NewServiceImpl(gateway Conversationalist, resolver RecommendationResolver, synthesizer SpeechSynthesizer,
	audio *AudioStore, cfg config.ChatConfig, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		deps: &turnDeps{
			logger:      logger,
			gateway:     gateway,
			resolver:    resolver,
			synthesizer: synthesizer,
			audio:       audio,
			turnTimeout: cfg.TurnTimeout,
			now:         time.Now,
		},
		sessions: cache.New(cfg.SessionTTL, cfg.SessionTTL/2+time.Second),
		ttl:      cfg.SessionTTL,
	}
}

func (s *ServiceImpl) CreateSession(ctx context.Context) *Session {
	_, span := otel.Tracer("ChatService").Start(ctx, "CreateSession")
	defer span.End()

	session := newSession(s.deps)
	s.sessions.SetDefault(session.ID().String(), session)

	s.logger.InfoContext(ctx, "Chat session started", slog.String("sessionID", session.ID().String()))
	span.SetAttributes(attribute.String("session.id", session.ID().String()))
	span.SetStatus(codes.Ok, "Session created")
	return session
}

// GetSession returns a live session and extends its lifetime.
func (s *ServiceImpl) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	_, span := otel.Tracer("ChatService").Start(ctx, "GetSession", trace.WithAttributes(
		attribute.String("session.id", id.String()),
	))
	defer span.End()

	v, ok := s.sessions.Get(id.String())
	if !ok {
		span.SetStatus(codes.Error, "Session not found")
		return nil, ErrSessionNotFound
	}
	session := v.(*Session)
	s.sessions.SetDefault(id.String(), session)
	span.SetStatus(codes.Ok, "Session found")
	return session, nil
}

func (s *ServiceImpl) EndSession(ctx context.Context, id uuid.UUID) {
	s.sessions.Delete(id.String())
	s.logger.InfoContext(ctx, "Chat session ended", slog.String("sessionID", id.String()))
}

func (s *ServiceImpl) GetAudio(_ context.Context, ref string) (AudioClip, bool) {
	return s.deps.audio.Get(ref)
}
