// Package store defines the document store contract consumed by the
// ingestion pipeline, the migration runner and the search layer. The
// Elasticsearch implementation lives in the es subpackage.
package store

import (
	"context"

	"chatgrep/internal/archive"
)

// BulkResult reconciles a bulk write. Accepted counts records the store took
// (including overwrites of an existing document id, which the identity scheme
// makes a no-op); Failed counts per-item errors reported by the store.
type BulkResult struct {
	Accepted int
	Failed   int
}

// GroupWatermark is the minimum message id already stored for a chat. It is
// the backfill boundary: migration only writes message ids strictly below it.
type GroupWatermark struct {
	ChatID       int64
	MinMessageID int64
}

// SearchQuery describes one page of a keyword/faceted search. Zero values
// mean "no filter" for ChatID, UserID, Kind, DateFrom and DateTo.
type SearchQuery struct {
	Keyword  string
	ChatID   int64
	UserID   int64
	Kind     archive.Kind
	DateFrom int64
	DateTo   int64
	From     int
	Size     int
}

// SearchResult is one page of hits plus the total match count.
type SearchResult struct {
	Total    int64
	Messages []archive.Message
}

// BulkWriter performs idempotent bulk upserts keyed by archive.DocID.
// Implementations never retry: a transport failure fails the whole batch and
// the caller accounts for every record in it.
type BulkWriter interface {
	BulkIndex(ctx context.Context, msgs []archive.Message) (BulkResult, error)
}

// WatermarkReader resolves the per-chat migration boundary. A missing index
// yields an empty slice, not an error.
type WatermarkReader interface {
	GroupWatermarks(ctx context.Context) ([]GroupWatermark, error)
}

// Searcher executes keyword/faceted queries against the archive.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) (SearchResult, error)
}
