package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"chatgrep/internal/archive"
	"chatgrep/internal/store"
)

// Search runs a keyword/faceted query, newest messages first. Zero-valued
// filters in q are omitted from the query.
func (c *Client) Search(ctx context.Context, q store.SearchQuery) (store.SearchResult, error) {
	body, err := json.Marshal(searchBody(q))
	if err != nil {
		return store.SearchResult{}, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return store.SearchResult{}, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return store.SearchResult{}, fmt.Errorf("search returned status %d: %s",
			res.StatusCode, responseBody(res.Body))
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return store.SearchResult{}, fmt.Errorf("failed to read search response: %w", err)
	}
	return parseSearchResult(raw)
}

func searchBody(q store.SearchQuery) map[string]any {
	var must []any
	if q.Keyword != "" {
		must = append(must, map[string]any{
			"match": map[string]any{"text": q.Keyword},
		})
	}

	var filter []any
	if q.ChatID != 0 {
		filter = append(filter, map[string]any{
			"term": map[string]any{"chat_id": q.ChatID},
		})
	}
	if q.UserID != 0 {
		filter = append(filter, map[string]any{
			"term": map[string]any{"user_id": q.UserID},
		})
	}
	if q.Kind != "" {
		filter = append(filter, map[string]any{
			"term": map[string]any{"message_type": q.Kind},
		})
	}
	if q.DateFrom != 0 || q.DateTo != 0 {
		dateRange := map[string]any{}
		if q.DateFrom != 0 {
			dateRange["gte"] = q.DateFrom
		}
		if q.DateTo != 0 {
			dateRange["lte"] = q.DateTo
		}
		filter = append(filter, map[string]any{
			"range": map[string]any{"date": dateRange},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"sort":  []any{map[string]any{"date": "desc"}},
		"from":  q.From,
		"size":  q.Size,
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source archive.Message `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func parseSearchResult(raw []byte) (store.SearchResult, error) {
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return store.SearchResult{}, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := store.SearchResult{
		Total:    resp.Hits.Total.Value,
		Messages: make([]archive.Message, 0, len(resp.Hits.Hits)),
	}
	for _, hit := range resp.Hits.Hits {
		result.Messages = append(result.Messages, hit.Source)
	}
	return result, nil
}
