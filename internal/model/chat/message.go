package chat

import "time"

// Author tags who produced a transcript entry.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Entry is a single turn in the transcript. Entries are never mutated once appended.
type Entry struct {
	ID        string    `json:"id"`
	Author    Author    `json:"role"`
	Body      string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}
