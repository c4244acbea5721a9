// Package es implements the document store on Elasticsearch using the
// official low-level client.
package es

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"chatgrep/internal/store"
)

// Config holds Elasticsearch connection settings.
type Config struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
}

// Client wraps an Elasticsearch connection scoped to one archive index.
// It holds no other state between calls.
type Client struct {
	es    *elasticsearch.Client
	index string
}

var (
	_ store.BulkWriter      = (*Client)(nil)
	_ store.WatermarkReader = (*Client)(nil)
	_ store.Searcher        = (*Client)(nil)
)

// New creates a client for the configured cluster. It does not touch the
// index; call EnsureIndex for that.
func New(cfg Config) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Client{es: es, index: cfg.Index}, nil
}

// Index returns the archive index name the client writes to.
func (c *Client) Index() string {
	return c.index
}

// indexMapping is the archive index definition. The text field is analyzed;
// ids and the date stay numeric so aggregations and range filters work.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "message_id":   { "type": "long" },
      "chat_id":      { "type": "long" },
      "user_id":      { "type": "long" },
      "username":     { "type": "keyword" },
      "display_name": { "type": "keyword" },
      "text":         { "type": "text" },
      "date":         { "type": "date", "format": "epoch_second" },
      "reply_to_message_id": { "type": "long" },
      "message_type": { "type": "keyword" },
      "chat_title":   { "type": "keyword" }
    }
  }
}`

// EnsureIndex creates the archive index with its mapping if it does not
// exist yet.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists(
		[]string{c.index},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to check index %q: %w", c.index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("unexpected status %d checking index %q", res.StatusCode, c.index)
	}

	createRes, err := c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %q: %w", c.index, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index %q: %s", c.index, responseBody(createRes.Body))
	}

	slog.Info("Created archive index", "index", c.index)
	return nil
}

// responseBody reads an error response body for diagnostics, bounded so a
// misbehaving server cannot blow up memory.
func responseBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return fmt.Sprintf("<unreadable body: %v>", err)
	}
	return string(b)
}
