// Package archive defines the normalized chat message record shared by the
// live ingestion path and the migration backfill, plus the document identity
// scheme that makes every write idempotent.
package archive

import "fmt"

// Kind classifies a message by its payload. The set is closed; anything the
// transport delivers that does not map to a known kind becomes KindOther.
type Kind string

const (
	KindText      Kind = "text"
	KindPhoto     Kind = "photo"
	KindVideo     Kind = "video"
	KindDocument  Kind = "document"
	KindSticker   Kind = "sticker"
	KindVoice     Kind = "voice"
	KindAnimation Kind = "animation"
	KindOther     Kind = "other"
)

// Kinds lists every valid kind, in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindText, KindPhoto, KindVideo, KindDocument,
		KindSticker, KindVoice, KindAnimation, KindOther,
	}
}

// ParseKind maps a kind name to its Kind. Unknown names map to KindOther.
func ParseKind(s string) Kind {
	for _, k := range Kinds() {
		if s == string(k) {
			return k
		}
	}
	return KindOther
}

// KindFromMedia maps a transport-level media type to a Kind. The mapping is
// total: unrecognized media types map to KindOther.
func KindFromMedia(media string) Kind {
	switch media {
	case "photo":
		return KindPhoto
	case "video":
		return KindVideo
	case "document":
		return KindDocument
	case "sticker":
		return KindSticker
	case "voice":
		return KindVoice
	case "animation":
		return KindAnimation
	default:
		return KindOther
	}
}

// Message is a normalized chat message. Records are immutable once built and
// consumed exactly once by the write path. ChatID and MessageID together
// identify a logical message; DocID derives the stored document id from them.
type Message struct {
	MessageID        int64  `json:"message_id"`
	ChatID           int64  `json:"chat_id"`
	UserID           *int64 `json:"user_id,omitempty"`
	Username         string `json:"username,omitempty"`
	DisplayName      string `json:"display_name,omitempty"`
	Text             string `json:"text"`
	Date             int64  `json:"date"` // seconds since the Unix epoch
	ReplyToMessageID *int64 `json:"reply_to_message_id,omitempty"`
	Kind             Kind   `json:"message_type"`
	ChatTitle        string `json:"chat_title,omitempty"`
}

// DocID returns the deterministic document id for a (chat, message) pair.
// Both write paths key bulk upserts by this id, so re-indexing the same
// logical message converges to a single stored document.
func DocID(chatID, messageID int64) string {
	return fmt.Sprintf("%d_%d", chatID, messageID)
}

// DocID returns the document id for this message.
func (m *Message) DocID() string {
	return DocID(m.ChatID, m.MessageID)
}
