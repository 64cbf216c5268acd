package chat

// Session is the dialogue identity issued by the response service.
type Session struct {
	ID string `json:"sessionId,omitempty"`
}

// Known reports whether the service has assigned an identifier yet.
func (s Session) Known() bool {
	return s.ID != ""
}
