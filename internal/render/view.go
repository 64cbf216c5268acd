package render

import (
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/digital-twin/client/internal/model/chat"
)

const timeLayout = "15:04:05"

// EntryView is one transcript entry prepared for a browser.
type EntryView struct {
	ID        string      `json:"id"`
	Role      chat.Author `json:"role"`
	Content   string      `json:"content"`
	HTML      string      `json:"html"`
	Timestamp string      `json:"timestamp"`
	Time      string      `json:"time"`
}

// View is the conversation state as a renderer consumes it.
type View struct {
	Entries   []EntryView `json:"messages"`
	Pending   bool        `json:"isLoading"`
	Empty     bool        `json:"empty"`
	HasAvatar bool        `json:"hasAvatar"`
}

// NewView builds the renderer view of a snapshot.
func NewView(snap chat.Snapshot, hasAvatar bool) View {
	entries := make([]EntryView, 0, len(snap.Entries))
	for _, entry := range snap.Entries {
		html, err := HTML(entry.Body)
		if err != nil {
			log.Warn().Err(err).Str("entry_id", entry.ID).Msg("falling back to plain text")
			html = ""
		}
		entries = append(entries, EntryView{
			ID:        entry.ID,
			Role:      entry.Author,
			Content:   entry.Body,
			HTML:      html,
			Timestamp: entry.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			Time:      entry.CreatedAt.Local().Format(timeLayout),
		})
	}

	return View{
		Entries:   entries,
		Pending:   snap.Pending,
		Empty:     snap.Empty(),
		HasAvatar: hasAvatar,
	}
}
