// Package archive batches forwarded GELF messages per tenant and writes each
// full batch to object storage as gzip-compressed JSON lines.
package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/akave-ai/nbstreamer/internal/model"
	"github.com/akave-ai/nbstreamer/internal/storage"
)

const contentType = "application/gzip"

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 500

type Options struct {
	BatchSize int
	Prefix    string
	Now       func() time.Time
}

// Status summarizes archive activity for the /archive endpoint.
type Status struct {
	Enabled      bool      `json:"enabled"`
	Pending      int       `json:"pending"`
	Uploaded     int       `json:"uploaded_batches"`
	Failed       int       `json:"failed_batches"`
	LastKey      string    `json:"last_key,omitempty"`
	LastUploadAt time.Time `json:"last_upload_at,omitempty"`
}

// Archiver accumulates encoded messages per tenant. A batch is written
// synchronously by the Add call that fills it, and by Flush.
type Archiver struct {
	store storage.ObjectStore
	opts  Options
	log   zerolog.Logger

	mu      sync.Mutex
	pending map[string][][]byte
	status  Status
}

func New(store storage.ObjectStore, opts Options, log zerolog.Logger) *Archiver {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Archiver{
		store:   store,
		opts:    opts,
		log:     log.With().Str("component", "archive").Logger(),
		pending: make(map[string][][]byte),
		status:  Status{Enabled: true},
	}
}

// Add queues msg for tenant and uploads the tenant's batch once it is full.
func (a *Archiver) Add(ctx context.Context, tenant string, msg *model.GELFMessage) error {
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal archived message: %w", err)
	}

	a.mu.Lock()
	a.pending[tenant] = append(a.pending[tenant], line)
	a.status.Pending++
	var batch [][]byte
	if len(a.pending[tenant]) >= a.opts.BatchSize {
		batch = a.pending[tenant]
		delete(a.pending, tenant)
		a.status.Pending -= len(batch)
	}
	a.mu.Unlock()

	if batch == nil {
		return nil
	}
	return a.upload(ctx, tenant, batch)
}

// Flush uploads every pending batch regardless of size.
func (a *Archiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	pending := a.pending
	a.pending = make(map[string][][]byte)
	a.status.Pending = 0
	a.mu.Unlock()

	var firstErr error
	for tenant, batch := range pending {
		if err := a.upload(ctx, tenant, batch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Status returns a copy of the current counters.
func (a *Archiver) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// List returns archived batch objects for tenant, or all tenants when it is empty.
func (a *Archiver) List(ctx context.Context, tenant string) ([]storage.ObjectInfo, error) {
	prefix := a.opts.Prefix
	if prefix == "" {
		prefix = "gelf/"
	}
	if tenant != "" {
		prefix = prefix + tenant + "/"
	}
	return a.store.ListObjects(ctx, prefix)
}

// Read downloads a batch and returns its messages as wire-form field maps.
func (a *Archiver) Read(ctx context.Context, key string) ([]map[string]any, error) {
	raw, err := a.store.GetObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return DecodeBatch(raw)
}

func (a *Archiver) upload(ctx context.Context, tenant string, batch [][]byte) error {
	data, err := EncodeBatch(batch)
	if err != nil {
		return err
	}
	key := storage.KeyForBatch(a.opts.Prefix, tenant, uuid.NewString(), a.opts.Now())
	if err := a.store.PutObject(ctx, key, data, contentType); err != nil {
		a.mu.Lock()
		a.status.Failed++
		a.mu.Unlock()
		a.log.Error().Err(err).Str("tenant", tenant).Str("key", key).Int("count", len(batch)).Msg("archive upload failed")
		return fmt.Errorf("upload %s: %w", key, err)
	}

	a.mu.Lock()
	a.status.Uploaded++
	a.status.LastKey = key
	a.status.LastUploadAt = a.opts.Now()
	a.mu.Unlock()
	a.log.Info().Str("tenant", tenant).Str("key", key).Int("count", len(batch)).Msg("archived batch")
	return nil
}

// EncodeBatch gzips newline-delimited JSON lines.
func EncodeBatch(lines [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	for _, l := range lines {
		if _, err := zw.Write(l); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		if _, err := zw.Write([]byte{'\n'}); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBatch reverses EncodeBatch.
func DecodeBatch(raw []byte) ([]map[string]any, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()

	var out []map[string]any
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return out, nil
}
