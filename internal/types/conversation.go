package types

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleModel MessageRole = "model"
)

type RecommendationKind string

const (
	RecommendationSpecialist RecommendationKind = "specialist"
	RecommendationProduct    RecommendationKind = "product"
	RecommendationNone       RecommendationKind = "none"
)

// ConversationMessage is one entry of a session's append-only log.
type ConversationMessage struct {
	ID             uuid.UUID       `json:"id"`
	Role           MessageRole     `json:"role"`
	Text           string          `json:"text"`
	AudioRef       *string         `json:"audio_ref,omitempty"` // opaque handle served by the audio endpoint
	IsVoiceInput   bool            `json:"is_voice_input,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Recommendation is a resolved catalog entity attached to a model message.
// Exactly one of Specialist or Product is set, matching Kind.
type Recommendation struct {
	Kind       RecommendationKind `json:"type"`
	Specialist *Specialist        `json:"specialist,omitempty"`
	Product    *Product           `json:"product,omitempty"`
}

// RecommendationReference is the unresolved pointer the AI returns.
type RecommendationReference struct {
	Kind RecommendationKind
	ID   string
}

// AIReply is the structured answer of the generation service.
type AIReply struct {
	Text               string             `json:"text" validate:"required"`
	Solution           string             `json:"solution"`
	RecommendationType RecommendationKind `json:"recommendationType" validate:"required,oneof=specialist product none"`
	RecommendationID   string             `json:"recommendationId,omitempty"`
}

// Reference extracts the recommendation pointer from the reply.
func (r AIReply) Reference() RecommendationReference {
	return RecommendationReference{Kind: r.RecommendationType, ID: r.RecommendationID}
}

// AudioInput is an inline audio clip forwarded to the generation service.
type AudioInput struct {
	Data     []byte
	MIMEType string
}

// AudioCapture is a finished microphone recording submitted with a turn.
type AudioCapture struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// SendMessageRequest is the body of a chat submission.
type SendMessageRequest struct {
	Text     string        `json:"text"`
	Audio    *AudioPayload `json:"audio,omitempty"`
	Location *GeoPoint     `json:"location,omitempty"`
}

// AudioPayload carries a base64 encoded clip as produced by the browser recorder.
type AudioPayload struct {
	Data     string `json:"data" validate:"required,base64"`
	MIMEType string `json:"mimeType" validate:"required"`
}

// ChatSessionResponse describes a session to the client.
type ChatSessionResponse struct {
	ID       uuid.UUID             `json:"id"`
	Pending  bool                  `json:"pending"`
	Location *GeoPoint             `json:"location,omitempty"`
	Messages []ConversationMessage `json:"messages"`
}

type SessionEventType string

const (
	EventMessage SessionEventType = "message"
	EventPending SessionEventType = "pending"
	EventIdle    SessionEventType = "idle"
)

// SessionEvent is pushed to transcript subscribers.
type SessionEvent struct {
	Type    SessionEventType     `json:"type"`
	Message *ConversationMessage `json:"message,omitempty"`
}
