package es

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"chatgrep/internal/store"
)

// maxWatermarkGroups bounds the terms aggregation. Archives track group
// chats, not users, so the practical cardinality is far below this.
const maxWatermarkGroups = 10000

// GroupWatermarks queries the archive for every chat id present and the
// minimum message id stored for each. A missing index returns an empty
// result, not an error: migration is then a no-op. Any other non-success
// response is an error, so the caller aborts before writing anything.
func (c *Client) GroupWatermarks(ctx context.Context) ([]store.GroupWatermark, error) {
	body := fmt.Sprintf(`{
  "size": 0,
  "aggs": {
    "groups": {
      "terms": { "field": "chat_id", "size": %d },
      "aggs": {
        "earliest": { "min": { "field": "message_id" } }
      }
    }
  }
}`, maxWatermarkGroups)

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(strings.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("watermark query failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		slog.Info("Archive index does not exist, no watermarks", "index", c.index)
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("watermark query returned status %d: %s",
			res.StatusCode, responseBody(res.Body))
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read watermark response: %w", err)
	}
	return parseWatermarks(raw)
}

type watermarkResponse struct {
	Aggregations struct {
		Groups struct {
			Buckets []struct {
				Key      int64 `json:"key"`
				Earliest struct {
					// ES returns min values as floats.
					Value *float64 `json:"value"`
				} `json:"earliest"`
			} `json:"buckets"`
		} `json:"groups"`
	} `json:"aggregations"`
}

func parseWatermarks(raw []byte) ([]store.GroupWatermark, error) {
	var resp watermarkResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode watermark response: %w", err)
	}

	watermarks := make([]store.GroupWatermark, 0, len(resp.Aggregations.Groups.Buckets))
	for _, bucket := range resp.Aggregations.Groups.Buckets {
		if bucket.Earliest.Value == nil {
			slog.Warn("Watermark bucket without a min value, skipping", "chat_id", bucket.Key)
			continue
		}
		watermarks = append(watermarks, store.GroupWatermark{
			ChatID:       bucket.Key,
			MinMessageID: int64(*bucket.Earliest.Value),
		})
	}
	return watermarks, nil
}
