package domain

import (
	"regexp"
	"time"
)

type MessageID string

// ReplyRef is the denormalized excerpt of the message being replied to.
type ReplyRef struct {
	MessageID  MessageID `json:"message_id"`
	SenderName string    `json:"sender_name"`
	Excerpt    string    `json:"excerpt"`
}

// Message carries a sender snapshot taken at send time; later profile edits
// do not flow back into already stored messages.
type Message struct {
	ID           MessageID
	RoomID       RoomID
	Text         string
	SenderID     UserID
	SenderName   string
	SenderAvatar string
	SenderEffect string
	Reply        *ReplyRef
	Edited       bool
	Reactions    map[string][]UserID
	CreatedAt    time.Time
	Seq          int64 // store insertion order, breaks creation-time ties
}

// HasReactor is a linear scan; reactor sets are small.
func (m *Message) HasReactor(kind string, u UserID) bool {
	for _, r := range m.Reactions[kind] {
		if r == u {
			return true
		}
	}
	return false
}

// MaxExcerptLen bounds the reply excerpt, in runes.
const MaxExcerptLen = 120

// Excerpt shortens text for a reply reference.
func Excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxExcerptLen {
		return text
	}
	return string(runes[:MaxExcerptLen]) + "…"
}

var imageRefPattern = regexp.MustCompile(`https?://\S+\.(?:png|jpe?g|gif|webp)(?:\?\S*)?`)

// ExtractImageRefs pulls inline image references out of message text for the
// media panel. The core extracts, it never renders.
func ExtractImageRefs(text string) []string {
	return imageRefPattern.FindAllString(text, -1)
}
