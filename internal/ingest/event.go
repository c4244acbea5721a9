package ingest

import (
	"chatgrep/internal/archive"
)

// MessageEvent is the inbound message shape published on the bus by the chat
// transport glue. It mirrors what the transport knows about a message; the
// archive only keeps the normalized subset.
type MessageEvent struct {
	MessageID        int64     `json:"message_id"`
	Chat             ChatRef   `json:"chat"`
	From             *UserRef  `json:"from,omitempty"`
	Text             string    `json:"text,omitempty"`
	Caption          string    `json:"caption,omitempty"`
	Date             int64     `json:"date"`
	Media            *MediaRef `json:"media,omitempty"`
	ReplyToMessageID *int64    `json:"reply_to_message_id,omitempty"`
}

// ChatRef identifies the conversation an event belongs to.
type ChatRef struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// UserRef identifies the author of a message.
type UserRef struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// MediaRef describes a non-text payload attached to a message.
type MediaRef struct {
	Type string `json:"type"`
}

// Normalize converts the event into an archive record. The second return is
// false when the event should not be archived: only group and supergroup
// chats are recorded, and a message with neither text nor caption carries
// nothing to search.
func (e *MessageEvent) Normalize() (archive.Message, bool) {
	if e.Chat.Type != "group" && e.Chat.Type != "supergroup" {
		return archive.Message{}, false
	}

	text := e.Text
	if text == "" {
		text = e.Caption
	}
	if text == "" {
		return archive.Message{}, false
	}

	msg := archive.Message{
		MessageID:        e.MessageID,
		ChatID:           e.Chat.ID,
		Text:             text,
		Date:             e.Date,
		Kind:             e.kind(),
		ReplyToMessageID: e.ReplyToMessageID,
		ChatTitle:        e.Chat.Title,
	}
	if e.From != nil {
		id := e.From.ID
		msg.UserID = &id
		msg.Username = e.From.Username
		msg.DisplayName = displayName(e.From)
	}
	return msg, true
}

func (e *MessageEvent) kind() archive.Kind {
	if e.Text != "" {
		return archive.KindText
	}
	if e.Media != nil {
		return archive.KindFromMedia(e.Media.Type)
	}
	return archive.KindOther
}

func displayName(u *UserRef) string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
