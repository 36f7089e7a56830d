package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/Nexoracode/khadamat/app/observability/metrics"
	"github.com/Nexoracode/khadamat/config"
	generativeAI "github.com/Nexoracode/khadamat/internal/api/generative_ai"
)

const voicePromptPrefix = "بخوان با صدای گرم و مهربان: "

// Synthesizer reads solutions aloud through the Gemini TTS model.
type Synthesizer struct {
	logger     *slog.Logger
	generator  generativeAI.ContentGenerator
	model      string
	voice      string
	sampleRate uint32
	timeout    time.Duration
}

func NewSynthesizer(generator generativeAI.ContentGenerator, cfg config.AIConfig, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		logger:     logger,
		generator:  generator,
		model:      cfg.TTSModel,
		voice:      cfg.Voice,
		sampleRate: uint32(cfg.SampleRate),
		timeout:    cfg.RequestTimeout,
	}
}

// Synthesize returns a playable WAV clip of text, or nil when no audio could
// be produced.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (wav []byte) {
	ctx, span := otel.Tracer("SpeechSynthesizer").Start(ctx, "Synthesize")
	defer span.End()

	l := s.logger.With(slog.String("method", "Synthesize"))

	none := func(reason string, err error) []byte {
		l.WarnContext(ctx, "No audio produced", slog.String("reason", reason), slog.Any("error", err))
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, reason)
		metrics.Get().SpeechFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			wav = none("panic", fmt.Errorf("tts client panic: %v", rec))
		}
	}()

	if strings.TrimSpace(text) == "" {
		return nil
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: voicePromptPrefix + text}},
	}}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.voice},
			},
		},
	}

	resp, err := s.generator.GenerateContent(ctx, s.model, contents, cfg)
	if err != nil {
		return none("request_failed", err)
	}

	pcm, ok := firstInlineData(resp)
	if !ok {
		return none("missing_audio", nil)
	}
	pcm = decodeIfBase64(pcm)

	wav = EncodeWAV(pcm, s.sampleRate)
	span.SetAttributes(attribute.Int("audio.pcm_bytes", len(pcm)))
	span.SetStatus(codes.Ok, "Audio synthesized")
	return wav
}

func firstInlineData(resp *genai.GenerateContentResponse) ([]byte, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, true
		}
	}
	return nil, false
}

// decodeIfBase64 handles transports that leave the inline payload as base64
// text. genai normally decodes Blob.Data already, so the payload is decoded
// again only when it is padded base64 text through and through: every byte in
// the standard alphabet, '=' only in the last two positions, length a
// multiple of 4. Anything else is treated as PCM.
func decodeIfBase64(data []byte) []byte {
	if len(data) == 0 || len(data)%4 != 0 || !isBase64Text(data) {
		return data
	}
	decoded, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil || len(decoded) == 0 {
		return data
	}
	return decoded
}

func isBase64Text(data []byte) bool {
	for i, c := range data {
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9', c == '+', c == '/':
		case c == '=' && i >= len(data)-2:
		default:
			return false
		}
	}
	return true
}
