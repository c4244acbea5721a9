// Package legacy reads historical messages out of the old MongoDB record
// store. The collection accumulated several historical document layouts, so
// both the queries and the parser tolerate multiple field shapes.
package legacy

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatgrep/internal/archive"
)

// Config holds legacy store connection settings.
type Config struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// DefaultConfig returns the legacy store defaults.
func DefaultConfig() Config {
	return Config{
		URI:        "mongodb://localhost:27017",
		Database:   "botlog",
		Collection: "messages",
	}
}

// Filter selects legacy records for one chat below an exclusive message id
// bound, optionally restricted to a single kind. It matches every historical
// field layout the collection is known to contain.
type Filter struct {
	ChatID          int64
	BeforeMessageID int64
	// Kind restricts matching to one message kind; empty means all kinds.
	Kind archive.Kind
}

// numeric msg_type codes used by the oldest record layout.
var kindCodes = map[archive.Kind]int32{
	archive.KindText:      0,
	archive.KindPhoto:     1,
	archive.KindVideo:     2,
	archive.KindDocument:  3,
	archive.KindSticker:   4,
	archive.KindVoice:     5,
	archive.KindAnimation: 6,
}

func (f Filter) query() bson.M {
	and := bson.A{
		bson.M{"$or": bson.A{
			bson.M{"group_id": f.ChatID},
			bson.M{"chat_id": f.ChatID},
		}},
		bson.M{"$or": bson.A{
			bson.M{"msg_ctx.message_id": bson.M{"$lt": f.BeforeMessageID}},
			bson.M{"message_id": bson.M{"$lt": f.BeforeMessageID}},
		}},
	}
	if f.Kind != "" {
		values := bson.A{string(f.Kind)}
		if code, ok := kindCodes[f.Kind]; ok {
			values = append(values, code)
		}
		and = append(and, bson.M{"msg_type": bson.M{"$in": values}})
	}
	return bson.M{"$and": and}
}

// Cursor streams matching legacy records. *mongo.Cursor satisfies it; tests
// substitute their own.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

// Store wraps the legacy MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens and pings the legacy store.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to legacy store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping legacy store: %w", err)
	}
	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Count returns how many legacy records match the filter.
func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, f.query())
	if err != nil {
		return 0, fmt.Errorf("failed to count legacy records: %w", err)
	}
	return n, nil
}

// Stream opens an ascending cursor over matching records, oldest message id
// first. With ascending order an interrupted run leaves the gap nearest the
// watermark unfilled, and a re-run converges on it without a resume point.
func (s *Store) Stream(ctx context.Context, f Filter) (Cursor, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "msg_ctx.message_id", Value: 1},
		{Key: "message_id", Value: 1},
	})
	cursor, err := s.coll.Find(ctx, f.query(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy cursor: %w", err)
	}
	return cursor, nil
}

// Close disconnects from the legacy store.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
