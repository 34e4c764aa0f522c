package s3client

import (
	"context"
	"sync"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/codec"
	"github.com/joeydtaylor/scalogram/pkg/internal/types"
)

// Exporter buffers result records and writes them to S3 as parquet batches.
// A batch is flushed when it reaches maxRecords or when Run's ticker finds it older than maxAge.
type Exporter struct {
	client      *Client
	compression string
	maxRecords  int
	maxAge      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	pending  []codec.ResultRecord
	oldest   time.Time
	lastKeys []string
}

// NewExporter batches into client. compression is a parquet codec name ("snappy", "zstd", "gzip").
func NewExporter(client *Client, compression string, maxRecords int, maxAge time.Duration) *Exporter {
	if maxRecords <= 0 {
		maxRecords = 500
	}
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	return &Exporter{
		client:      client,
		compression: compression,
		maxRecords:  maxRecords,
		maxAge:      maxAge,
		now:         time.Now,
	}
}

// Add queues one classification result. The batch is written inline once it is full.
func (e *Exporter) Add(ctx context.Context, correlationID, source string, res types.PredictionResult) error {
	e.mu.Lock()
	if len(e.pending) == 0 {
		e.oldest = e.now()
	}
	e.pending = append(e.pending, codec.NewResultRecord(correlationID, source, res, e.now()))
	full := len(e.pending) >= e.maxRecords
	e.mu.Unlock()

	if full {
		_, err := e.Flush(ctx)
		return err
	}
	return nil
}

// Pending reports the number of buffered records.
func (e *Exporter) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Flush writes everything buffered and returns the object key ("" when nothing was pending).
// On failure the records are put back at the head of the buffer.
func (e *Exporter) Flush(ctx context.Context) (string, error) {
	e.mu.Lock()
	batch := e.pending
	oldest := e.oldest
	e.pending = nil
	e.mu.Unlock()

	if len(batch) == 0 {
		return "", nil
	}

	key, err := e.client.PutResults(ctx, batch, e.compression, e.now())
	if err != nil {
		e.mu.Lock()
		e.pending = append(batch, e.pending...)
		e.oldest = oldest
		e.mu.Unlock()
		e.client.NotifyLoggers(types.ErrorLevel, "Result export failed",
			"component", e.client.GetComponentMetadata(), "event", "Export", "result", "FAILURE",
			"records", len(batch), "error", err)
		return "", err
	}

	e.mu.Lock()
	e.lastKeys = append(e.lastKeys, key)
	e.mu.Unlock()
	e.client.NotifyLoggers(types.InfoLevel, "Results exported",
		"component", e.client.GetComponentMetadata(), "event", "Export", "result", "SUCCESS",
		"records", len(batch), "key", key)
	return key, nil
}

// Keys lists every object written so far.
func (e *Exporter) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lastKeys...)
}

// Run flushes aged batches every interval and drains the buffer when ctx ends.
func (e *Exporter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = e.maxAge
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_, _ = e.Flush(flushCtx)
			cancel()
			return
		case <-t.C:
			e.mu.Lock()
			due := len(e.pending) > 0 && e.now().Sub(e.oldest) >= e.maxAge
			e.mu.Unlock()
			if due {
				_, _ = e.Flush(ctx)
			}
		}
	}
}
