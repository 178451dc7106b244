package protocol

import "time"

// TurnCompleted is broadcast after a turn finishes, degraded or not, so
// presentation layers can render the exchange live.
type TurnCompleted struct {
	ConversationID string    `json:"conversation_id"`
	UserText       string    `json:"user_text"`
	AssistantText  string    `json:"assistant_text"`
	AudioRef       string    `json:"audio_ref,omitempty"`
	Degraded       bool      `json:"degraded"`
	Timestamp      time.Time `json:"timestamp"`
}

// TurnFailed is broadcast when a turn aborts with a fatal error.
type TurnFailed struct {
	ConversationID string    `json:"conversation_id"`
	Kind           string    `json:"kind"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

const (
	SubjectTurnCompleted = "fusion.turn.completed"
	SubjectTurnFailed    = "fusion.turn.failed"
)
