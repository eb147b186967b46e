package voiceagent

import "strings"

// ConversationStatus is the local view of a hosted conversation's lifecycle.
type ConversationStatus string

const (
	ConversationInitiated  ConversationStatus = "initiated"
	ConversationInProgress ConversationStatus = "in_progress"
	ConversationProcessing ConversationStatus = "processing"
	ConversationDone       ConversationStatus = "done"
	ConversationFailed     ConversationStatus = "failed"
)

// IsTerminal reports whether the conversation can no longer change status.
func (s ConversationStatus) IsTerminal() bool {
	return s == ConversationDone || s == ConversationFailed
}

// MapConversationStatus normalizes a raw provider status token. Unrecognized
// tokens map to the least-resolved non-terminal status so a provider adding a
// new intermediate state never flips a live call to a terminal one.
func MapConversationStatus(token string) ConversationStatus {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "initiated":
		return ConversationInitiated
	case "in-progress", "in_progress":
		return ConversationInProgress
	case "processing":
		return ConversationProcessing
	case "done":
		return ConversationDone
	case "failed":
		return ConversationFailed
	default:
		return ConversationInitiated
	}
}

// Turn is one utterance in a conversation transcript, in spoken order.
type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Conversation is the normalized result of a status query. The transport
// response is flattened here once; callers never see the provider's shape.
type Conversation struct {
	ID              string             `json:"id"`
	Status          ConversationStatus `json:"status"`
	DurationSeconds int                `json:"duration_seconds"`
	Transcript      []Turn             `json:"transcript,omitempty"`
	Summary         string             `json:"summary,omitempty"`
}

// ReadableTranscript renders turns one per line, "Agent" for the agent role
// and "User" for everything else.
func ReadableTranscript(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := "User"
		if strings.EqualFold(t.Role, "agent") {
			speaker = "Agent"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(t.Message)
	}
	return b.String()
}
