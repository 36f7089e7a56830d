package llmChat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Nexoracode/khadamat/app/observability/metrics"
	generativeAI "github.com/Nexoracode/khadamat/internal/api/generative_ai"
	"github.com/Nexoracode/khadamat/internal/types"
)

const Greeting = "سلام! خوش آمدید. من دستیار هوشمند شما در خدمات همراه هستم. چه مشکلی در منزلتان پیش آمده؟"

const wavMIMEType = "audio/wav"

var (
	ErrEmptyUtterance  = errors.New("message has neither text nor audio")
	ErrTurnInProgress  = errors.New("a reply is still being prepared for this session")
	ErrSessionNotFound = errors.New("chat session not found")
)

// Conversationalist produces the structured reply for a turn.
type Conversationalist interface {
	Converse(ctx context.Context, utterance string, history []types.ConversationMessage, audio *types.AudioInput) types.AIReply
}

// RecommendationResolver maps the reply's pointer onto the catalog.
type RecommendationResolver interface {
	Resolve(ctx context.Context, ref types.RecommendationReference, origin *types.GeoPoint) *types.Recommendation
}

// SpeechSynthesizer voices a solution. Nil means no audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) []byte
}

// turnDeps are shared by every session of a Service.
type turnDeps struct {
	logger      *slog.Logger
	gateway     Conversationalist
	resolver    RecommendationResolver
	synthesizer SpeechSynthesizer
	audio       *AudioStore
	turnTimeout time.Duration
	now         func() time.Time
}

// Session is one conversation. The log is append-only and at most one turn
// is in flight at a time.
type Session struct {
	id   uuid.UUID
	deps *turnDeps

	mu          sync.Mutex
	messages    []types.ConversationMessage
	location    *types.GeoPoint
	pending     bool
	subscribers map[chan types.SessionEvent]struct{}
}

func newSession(deps *turnDeps) *Session {
	s := &Session{
		id:          uuid.New(),
		deps:        deps,
		subscribers: make(map[chan types.SessionEvent]struct{}),
	}
	s.messages = append(s.messages, types.ConversationMessage{
		ID:        uuid.New(),
		Role:      types.RoleModel,
		Text:      Greeting,
		CreatedAt: deps.now(),
	})
	return s
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// History returns a copy of the log in creation order.
func (s *Session) History() []types.ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) Location() *types.GeoPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

// SetLocation records the user's position for later turns.
func (s *Session) SetLocation(p types.GeoPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = &p
}

// ClearLocation forgets the position, e.g. after the browser denied access.
func (s *Session) ClearLocation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = nil
}

// Snapshot describes the session for API responses.
func (s *Session) Snapshot() types.ChatSessionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() types.ChatSessionResponse {
	resp := types.ChatSessionResponse{
		ID:       s.id,
		Pending:  s.pending,
		Messages: slices.Clone(s.messages),
	}
	if s.location != nil {
		loc := *s.location
		resp.Location = &loc
	}
	return resp
}

// Subscribe returns a feed of transcript events. Slow readers miss events
// rather than block turns. Call cancel to stop receiving.
func (s *Session) Subscribe() (<-chan types.SessionEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeLocked()
}

// Watch returns the current state together with a feed of every event that
// happens after it. Nothing is missed or delivered twice between the two.
func (s *Session) Watch() (types.ChatSessionResponse, <-chan types.SessionEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.snapshotLocked()
	events, cancel := s.subscribeLocked()
	return snapshot, events, cancel
}

// subscribeLocked must be called with s.mu held.
func (s *Session) subscribeLocked() (<-chan types.SessionEvent, func()) {
	ch := make(chan types.SessionEvent, 16)
	s.subscribers[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// publish must be called with s.mu held.
func (s *Session) publish(ev types.SessionEvent) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func locationContext(p *types.GeoPoint) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("کاربر در لوکیشن %s, %s قرار دارد.",
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
		strconv.FormatFloat(p.Lng, 'f', -1, 64))
}

// Submit runs one full turn and returns the model message it appended. The
// user message is visible in History as soon as the turn starts.
func (s *Session) Submit(ctx context.Context, utterance string, audio *types.AudioCapture) (types.ConversationMessage, error) {
	return s.SubmitAt(ctx, utterance, audio, nil)
}

// SubmitAt is Submit with a fresh position. The position is stored only when
// the turn is accepted.
func (s *Session) SubmitAt(ctx context.Context, utterance string, audio *types.AudioCapture, loc *types.GeoPoint) (types.ConversationMessage, error) {
	hasAudio := audio != nil && len(audio.Data) > 0
	if strings.TrimSpace(utterance) == "" && !hasAudio {
		return types.ConversationMessage{}, ErrEmptyUtterance
	}

	ctx, span := otel.Tracer("ConversationSession").Start(ctx, "Submit", trace.WithAttributes(
		attribute.String("session.id", s.id.String()),
		attribute.Bool("input.voice", hasAudio),
	))
	defer span.End()

	l := s.deps.logger.With(slog.String("method", "Submit"), slog.String("sessionID", s.id.String()))
	m := metrics.Get()
	start := time.Now()

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		l.WarnContext(ctx, "Rejecting submission while a turn is pending")
		m.RejectedSubmissionsTotal.Add(ctx, 1)
		span.SetStatus(codes.Error, "Turn in progress")
		return types.ConversationMessage{}, ErrTurnInProgress
	}
	if loc != nil {
		p := *loc
		s.location = &p
	}

	userMsg := types.ConversationMessage{
		ID:           uuid.New(),
		Role:         types.RoleUser,
		Text:         utterance,
		IsVoiceInput: hasAudio,
		CreatedAt:    s.deps.now(),
	}
	var audioInput *types.AudioInput
	if hasAudio {
		ref := s.deps.audio.Put(audio.Data, audio.MIMEType)
		userMsg.AudioRef = &ref
		audioInput = &types.AudioInput{Data: audio.Data, MIMEType: audio.MIMEType}
	}

	history := slices.Clone(s.messages)
	var origin *types.GeoPoint
	if s.location != nil {
		loc := *s.location
		origin = &loc
	}
	s.messages = append(s.messages, userMsg)
	s.pending = true
	s.publish(types.SessionEvent{Type: types.EventMessage, Message: &userMsg})
	s.publish(types.SessionEvent{Type: types.EventPending})
	s.mu.Unlock()

	modelMsg := s.runTurn(ctx, l, utterance+" "+locationContext(origin), history, audioInput, origin)

	s.mu.Lock()
	s.messages = append(s.messages, modelMsg)
	s.pending = false
	s.publish(types.SessionEvent{Type: types.EventMessage, Message: &modelMsg})
	s.publish(types.SessionEvent{Type: types.EventIdle})
	s.mu.Unlock()

	m.ChatTurnsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("voice", hasAudio)))
	m.ChatTurnDurationSeconds.Record(ctx, time.Since(start).Seconds())
	l.InfoContext(ctx, "Turn completed",
		slog.Bool("recommendation", modelMsg.Recommendation != nil),
		slog.Bool("audio", modelMsg.AudioRef != nil),
		slog.Duration("took", time.Since(start)))
	span.SetStatus(codes.Ok, "Turn completed")
	return modelMsg, nil
}

// runTurn never fails: every collaborator degrades to "nothing" on error and
// a panic yields the fallback text. The turn outlives a cancelled request but
// not the turn deadline.
func (s *Session) runTurn(ctx context.Context, l *slog.Logger, input string, history []types.ConversationMessage, audio *types.AudioInput, origin *types.GeoPoint) (msg types.ConversationMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			l.ErrorContext(ctx, "Turn panicked, answering with fallback", slog.Any("panic", rec))
			trace.SpanFromContext(ctx).RecordError(fmt.Errorf("turn panic: %v", rec))
			msg = types.ConversationMessage{
				ID:        uuid.New(),
				Role:      types.RoleModel,
				Text:      generativeAI.FallbackText,
				CreatedAt: s.deps.now(),
			}
		}
	}()

	turnCtx := context.WithoutCancel(ctx)
	if s.deps.turnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(turnCtx, s.deps.turnTimeout)
		defer cancel()
	}

	reply := s.deps.gateway.Converse(turnCtx, input, history, audio)
	rec := s.deps.resolver.Resolve(turnCtx, reply.Reference(), origin)

	msg = types.ConversationMessage{
		ID:             uuid.New(),
		Role:           types.RoleModel,
		Text:           reply.Text,
		Recommendation: rec,
	}
	if reply.Solution != "" {
		if wav := s.deps.synthesizer.Synthesize(turnCtx, reply.Solution); wav != nil {
			ref := s.deps.audio.Put(wav, wavMIMEType)
			msg.AudioRef = &ref
		} else {
			l.DebugContext(ctx, "Solution left without audio")
		}
	}
	msg.CreatedAt = s.deps.now()
	return msg
}
