package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"chatgrep/internal/archive"
	"chatgrep/internal/store"
)

// BulkIndex writes a batch of messages in one bulk request, keyed by document
// id so repeated writes of the same logical message upsert instead of
// duplicating. An empty batch returns immediately without a network call.
//
// A transport or top-level failure fails the whole batch; the caller accounts
// for every record in it. On success the per-item responses are reconciled:
// accepted = len(msgs) - per-item failures. The writer never retries.
func (c *Client) BulkIndex(ctx context.Context, msgs []archive.Message) (store.BulkResult, error) {
	if len(msgs) == 0 {
		return store.BulkResult{}, nil
	}

	body, err := bulkBody(msgs)
	if err != nil {
		return store.BulkResult{}, err
	}

	res, err := c.es.Bulk(
		bytes.NewReader(body),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
	)
	if err != nil {
		return store.BulkResult{}, fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return store.BulkResult{}, fmt.Errorf("bulk request returned status %d: %s",
			res.StatusCode, responseBody(res.Body))
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return store.BulkResult{}, fmt.Errorf("failed to read bulk response: %w", err)
	}

	failed, err := countBulkFailures(raw)
	if err != nil {
		return store.BulkResult{}, err
	}
	if failed > 0 {
		slog.Warn("Bulk index had item errors", "failed", failed, "total", len(msgs))
	}

	return store.BulkResult{Accepted: len(msgs) - failed, Failed: failed}, nil
}

// bulkBody builds the NDJSON bulk payload: one action line and one document
// line per message.
func bulkBody(msgs []archive.Message) ([]byte, error) {
	var buf bytes.Buffer
	for i := range msgs {
		msg := &msgs[i]
		action := map[string]map[string]string{
			"index": {"_id": msg.DocID()},
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bulk action: %w", err)
		}
		docLine, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message %s: %w", msg.DocID(), err)
		}
		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error"`
	} `json:"items"`
}

// countBulkFailures counts items whose action reported an error in an
// otherwise successful bulk response.
func countBulkFailures(raw []byte) (int, error) {
	var resp bulkResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if !resp.Errors {
		return 0, nil
	}

	failed := 0
	for _, item := range resp.Items {
		for _, result := range item {
			if len(result.Error) > 0 && string(result.Error) != "null" {
				failed++
			}
		}
	}
	return failed, nil
}
