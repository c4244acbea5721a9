package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// SourceConfig holds the message bus subscription settings.
type SourceConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// DefaultSourceConfig returns the source defaults.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		URL:     nats.DefaultURL,
		Subject: "chat.messages",
	}
}

// Source subscribes to inbound message events on NATS and feeds the indexer.
// Ingestion is fire-and-forget from the transport's perspective: malformed
// or out-of-scope events are logged and dropped, never replied to.
type Source struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

// NewSource connects to the bus and subscribes to the message subject.
func NewSource(cfg SourceConfig, sink *Indexer) (*Source, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	sub, err := nc.Subscribe(cfg.Subject, func(m *nats.Msg) {
		handleEvent(m.Data, sink)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %q: %w", cfg.Subject, err)
	}

	slog.Info("Subscribed to message bus", "url", cfg.URL, "subject", cfg.Subject)
	return &Source{nc: nc, sub: sub}, nil
}

func handleEvent(data []byte, sink *Indexer) {
	var evt MessageEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		slog.Warn("Dropping undecodable message event", "error", err)
		return
	}

	msg, ok := evt.Normalize()
	if !ok {
		return
	}
	sink.Enqueue(msg)
}

// Close drains the connection so in-flight events still reach the indexer,
// then closes it.
func (s *Source) Close() error {
	if err := s.nc.Drain(); err != nil {
		s.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
