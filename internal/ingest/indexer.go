// Package ingest implements the live ingestion pipeline: a bounded queue in
// front of a single flush loop that batches messages into bulk writes, plus
// the message bus source that feeds it.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"chatgrep/internal/archive"
	"chatgrep/internal/store"
)

// queueFactor sizes the queue relative to the batch size. A slow store fills
// the queue and blocks producers instead of growing memory without bound.
const queueFactor = 4

// Config holds indexer tuning knobs.
type Config struct {
	// BatchSize is the flush threshold; the queue holds queueFactor times
	// this many messages.
	BatchSize int `yaml:"batch_size"`
	// FlushInterval bounds how long a partial batch can sit in the buffer.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DefaultConfig returns the indexer defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
	}
}

// UnmarshalYAML accepts Go duration strings ("2s", "500ms") for
// flush_interval.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		BatchSize     int    `yaml:"batch_size"`
		FlushInterval string `yaml:"flush_interval"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.BatchSize != 0 {
		c.BatchSize = raw.BatchSize
	}
	if raw.FlushInterval != "" {
		d, err := time.ParseDuration(raw.FlushInterval)
		if err != nil {
			return fmt.Errorf("invalid flush_interval: %w", err)
		}
		c.FlushInterval = d
	}
	return nil
}

// Indexer accumulates messages and flushes them to the store in batches,
// whichever of the size threshold or the flush interval is hit first. One
// background goroutine owns the buffer; any number of producers may call
// Enqueue concurrently.
//
// Write failures are logged and the affected records dropped. The live
// stream is best-effort by design; the migration path has its own, resumable
// accounting.
type Indexer struct {
	writer store.BulkWriter
	ch     chan archive.Message
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New starts the flush loop and returns the indexer.
func New(writer store.BulkWriter, cfg Config) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}

	ix := &Indexer{
		writer: writer,
		ch:     make(chan archive.Message, cfg.BatchSize*queueFactor),
		done:   make(chan struct{}),
	}
	go ix.flushLoop(cfg)
	return ix
}

// Enqueue queues a message for indexing. It blocks when the queue is full
// (backpressure on the producer). After Close the message is logged and
// dropped; a stopped pipeline is never a reason to crash the transport.
func (ix *Indexer) Enqueue(msg archive.Message) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		slog.Warn("Indexer closed, dropping message", "doc_id", msg.DocID())
		return
	}
	ix.ch <- msg
}

// Close stops intake, waits for the flush loop to drain whatever is buffered
// and write it out, then returns. Safe to call more than once.
func (ix *Indexer) Close() {
	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		<-ix.done
		return
	}
	ix.closed = true
	close(ix.ch)
	ix.mu.Unlock()

	<-ix.done
}

func (ix *Indexer) flushLoop(cfg Config) {
	defer close(ix.done)

	buffer := make([]archive.Message, 0, cfg.BatchSize)
	ticker := time.NewTicker(cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ix.ch:
			if !ok {
				// Queue closed: one final flush, then exit.
				if len(buffer) > 0 {
					ix.flush(&buffer)
				}
				slog.Info("Indexer queue closed, drained remaining buffer")
				return
			}
			buffer = append(buffer, msg)
			if len(buffer) >= cfg.BatchSize {
				ix.flush(&buffer)
			}
		case <-ticker.C:
			if len(buffer) > 0 {
				ix.flush(&buffer)
			}
		}
	}
}

// flush writes the buffer as one bulk request and truncates it, keeping its
// capacity, regardless of outcome.
func (ix *Indexer) flush(buffer *[]archive.Message) {
	count := len(*buffer)
	result, err := ix.writer.BulkIndex(context.Background(), *buffer)
	*buffer = (*buffer)[:0]

	switch {
	case err != nil:
		slog.Error("Bulk index failed, batch lost", "count", count, "error", err)
	case result.Failed > 0:
		slog.Error("Bulk index rejected items", "accepted", result.Accepted, "failed", result.Failed)
	default:
		slog.Debug("Flushed batch", "count", count)
	}
}
