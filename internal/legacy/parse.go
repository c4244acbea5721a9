package legacy

import (
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatgrep/internal/archive"
)

// ErrMissingField marks a record missing a concept every layout must carry.
var ErrMissingField = errors.New("missing field")

// millisecondThreshold separates second from millisecond epoch values. Epoch
// seconds stay below this until the year 2096; millisecond values crossed it
// in 1970.
const millisecondThreshold = 4_000_000_000

// fieldPath addresses a value inside a legacy document, possibly nested.
type fieldPath []string

// Each concept is extracted by trying its field sources in priority order;
// the first one present wins. The nested msg_ctx layout is the oldest and
// takes priority because some records carry both shapes with stale flat
// copies.
var (
	messageIDSources = []fieldPath{{"msg_ctx", "message_id"}, {"message_id"}}
	chatIDSources    = []fieldPath{{"group_id"}, {"chat_id"}}
	userIDSources    = []fieldPath{{"user_id"}}
	textSources      = []fieldPath{{"msg_ctx", "command"}, {"text"}, {"content"}}
	dateSources      = []fieldPath{{"timestamp"}, {"date"}}
	kindSources      = []fieldPath{{"msg_type"}, {"message_type"}, {"type"}}
)

// ParseRecord normalizes one legacy document into an archive record.
// Message id, chat id and timestamp are required; text defaults to empty and
// an absent kind defaults to text, matching the oldest layout's encoding.
func ParseRecord(doc bson.M) (archive.Message, error) {
	messageID, ok := firstInt64(doc, messageIDSources)
	if !ok {
		return archive.Message{}, fmt.Errorf("message id: %w", ErrMissingField)
	}
	chatID, ok := firstInt64(doc, chatIDSources)
	if !ok {
		return archive.Message{}, fmt.Errorf("chat id: %w", ErrMissingField)
	}
	date, ok := firstTimestamp(doc, dateSources)
	if !ok {
		return archive.Message{}, fmt.Errorf("timestamp: %w", ErrMissingField)
	}

	msg := archive.Message{
		MessageID: messageID,
		ChatID:    chatID,
		Date:      date,
		Kind:      archive.KindText,
	}
	if userID, ok := firstInt64(doc, userIDSources); ok {
		msg.UserID = &userID
	}
	if text, ok := firstString(doc, textSources); ok {
		msg.Text = text
	}
	if kind, ok := firstKind(doc, kindSources); ok {
		msg.Kind = kind
	}
	return msg, nil
}

// lookup walks a field path through nested documents.
func lookup(doc bson.M, path fieldPath) (any, bool) {
	current := doc
	for i, key := range path {
		value, ok := current[key]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return value, true
		}
		switch nested := value.(type) {
		case bson.M:
			current = nested
		case bson.D:
			current = nested.Map()
		default:
			return nil, false
		}
	}
	return nil, false
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func firstInt64(doc bson.M, sources []fieldPath) (int64, bool) {
	for _, path := range sources {
		if value, ok := lookup(doc, path); ok {
			if n, ok := asInt64(value); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func firstString(doc bson.M, sources []fieldPath) (string, bool) {
	for _, path := range sources {
		if value, ok := lookup(doc, path); ok {
			if s, ok := value.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

// firstTimestamp extracts an epoch-seconds timestamp. BSON datetimes convert
// directly; plain integers above millisecondThreshold are taken as
// milliseconds and rescaled, since the legacy writers mixed both units.
func firstTimestamp(doc bson.M, sources []fieldPath) (int64, bool) {
	for _, path := range sources {
		value, ok := lookup(doc, path)
		if !ok {
			continue
		}
		if dt, ok := value.(primitive.DateTime); ok {
			return dt.Time().Unix(), true
		}
		if n, ok := asInt64(value); ok {
			if n > millisecondThreshold {
				n /= 1000
			}
			return n, true
		}
	}
	return 0, false
}

var codeKinds = func() map[int64]archive.Kind {
	kinds := make(map[int64]archive.Kind, len(kindCodes))
	for kind, code := range kindCodes {
		kinds[int64(code)] = kind
	}
	return kinds
}()

// firstKind extracts the message kind. The oldest layout stores a numeric
// code, later ones a name; numeric strings are treated as codes.
func firstKind(doc bson.M, sources []fieldPath) (archive.Kind, bool) {
	for _, path := range sources {
		value, ok := lookup(doc, path)
		if !ok {
			continue
		}
		if n, ok := asInt64(value); ok {
			return kindFromCode(n), true
		}
		if s, ok := value.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return kindFromCode(n), true
			}
			return archive.ParseKind(s), true
		}
	}
	return "", false
}

func kindFromCode(code int64) archive.Kind {
	if kind, ok := codeKinds[code]; ok {
		return kind
	}
	return archive.KindOther
}
