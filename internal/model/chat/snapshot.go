package chat

// Snapshot is a point-in-time copy of the conversation state handed to renderers.
type Snapshot struct {
	Entries   []Entry `json:"entries"`
	Pending   bool    `json:"pending"`
	SessionID string  `json:"sessionId,omitempty"`
}

// Empty reports whether the transcript has no entries yet.
func (s Snapshot) Empty() bool {
	return len(s.Entries) == 0
}
