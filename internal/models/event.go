package models

// StreamEvent is one line of the newline-delimited JSON stream emitted by the
// streaming endpoints. A stream is any number of status/token events followed
// by exactly one result event. Token payloads carry the cumulative text so
// far, not deltas.

type EventType string

const (
	EventStatus EventType = "status"
	EventToken  EventType = "token"
	EventResult EventType = "result"
)

type StreamEvent struct {
	Type        EventType `json:"type"`
	Status      string    `json:"status,omitempty"`
	Token       string    `json:"token,omitempty"`
	Message     *Message  `json:"message,omitempty"`
	ThreadID    string    `json:"thread_id,omitempty"`
	ShouldSpeak bool      `json:"should_speak,omitempty"`
}

func StatusEvent(status string) *StreamEvent {
	return &StreamEvent{Type: EventStatus, Status: status}
}

func TokenEvent(token, threadID string) *StreamEvent {
	return &StreamEvent{Type: EventToken, Token: token, ThreadID: threadID}
}

func ResultEvent(content, threadID string) *StreamEvent {
	return &StreamEvent{
		Type:     EventResult,
		Message:  &Message{Role: RoleAssistant, Content: content},
		ThreadID: threadID,
	}
}
