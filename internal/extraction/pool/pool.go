// Package pool runs certificate extraction jobs with bounded concurrency.
package pool

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"certiresume-backend/internal/certificates"
	"certiresume-backend/internal/extraction"
	"certiresume-backend/internal/shared/metrics"
	"certiresume-backend/internal/shared/storage/object"
	"certiresume-backend/internal/shared/telemetry"
)

// ErrShuttingDown is returned by Submit once Shutdown has started.
var ErrShuttingDown = errors.New("pool is shutting down")

// Pool drives entries through upload, extraction, and terminal status. At most
// one job per entry is ever in flight, and at most `concurrency` jobs run at
// once.
type Pool struct {
	registry *certificates.Registry
	engine   extraction.Engine
	store    object.ObjectStore
	sem      chan struct{}
	retryMax int
	backoff  time.Duration

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

type Options struct {
	Concurrency int
	RetryMax    int
	// Backoff is the base delay between retries of a transiently failing
	// engine; attempt n waits n*Backoff.
	Backoff time.Duration
}

func New(registry *certificates.Registry, engine extraction.Engine, store object.ObjectStore, opts Options) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	return &Pool{
		registry: registry,
		engine:   engine,
		store:    store,
		sem:      make(chan struct{}, opts.Concurrency),
		retryMax: opts.RetryMax,
		backoff:  opts.Backoff,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Submit queues an accepted entry for upload and extraction. The entry is
// queued synchronously; the rest of the pipeline runs on a pool goroutine.
func (p *Pool) Submit(ctx context.Context, entry certificates.Entry, data []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrShuttingDown
	}
	if _, ok := p.inflight[entry.ID]; ok {
		p.mu.Unlock()
		return certificates.ErrAlreadyInFlight
	}
	runCtx, cancel := context.WithCancel(context.Background())
	p.inflight[entry.ID] = cancel
	p.mu.Unlock()

	if _, err := p.registry.MarkQueued(ctx, entry.ID); err != nil {
		p.release(entry.ID)
		return err
	}

	p.wg.Add(1)
	go p.run(runCtx, entry, data)
	return nil
}

// Dispatch satisfies the dispatcher contract used by the HTTP layer.
func (p *Pool) Dispatch(ctx context.Context, entry certificates.Entry, data []byte) error {
	return p.Submit(ctx, entry, data)
}

// Cancel requests cancellation of an in-flight entry. The job goroutine
// finalizes the cancelled status; Cancel only signals it.
func (p *Pool) Cancel(ctx context.Context, entryID string) error {
	if _, err := p.registry.RequestCancel(ctx, entryID); err != nil {
		return err
	}
	p.mu.Lock()
	cancel, ok := p.inflight[entryID]
	p.mu.Unlock()
	if ok {
		cancel()
		return nil
	}
	// No local goroutine owns the entry (queue-backed deployments), so the
	// consumer finalizes cancellation when it next sees the entry.
	return nil
}

// Shutdown stops accepting new work and waits for running jobs to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run(ctx context.Context, entry certificates.Entry, data []byte) {
	defer p.wg.Done()
	defer p.release(entry.ID)

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		p.finalizeCancelled(entry.ID)
		return
	}

	if _, err := p.registry.StartUploading(ctx, entry.ID); err != nil {
		if ctx.Err() != nil {
			p.finalizeCancelled(entry.ID)
			return
		}
		p.settleTransitionError(entry.ID, err)
		return
	}

	storageKey := entry.ObjectKey()
	reader := newProgressReader(bytes.NewReader(data), int64(len(data)), func(pct int) {
		_, _ = p.registry.UpdateProgress(ctx, entry.ID, pct)
	})
	if _, err := p.store.SaveWithKey(ctx, storageKey, entry.MimeType, reader); err != nil {
		if ctx.Err() != nil {
			p.finalizeCancelled(entry.ID)
			return
		}
		p.fail(entry.ID, extraction.Unreadable(err))
		return
	}
	if err := p.registry.SetStorageKey(ctx, entry.ID, storageKey); err != nil {
		telemetry.Error("pool.storage_key", map[string]any{"entry_id": entry.ID, "error": err.Error()})
	}

	if _, err := p.registry.MarkProcessing(ctx, entry.ID); err != nil {
		if ctx.Err() != nil {
			p.finalizeCancelled(entry.ID)
			return
		}
		p.settleTransitionError(entry.ID, err)
		return
	}

	p.extractAndSettle(ctx, entry, data)
}

// ProcessStored runs extraction for an entry whose bytes were already
// uploaded, typically from a queue consumer.
func (p *Pool) ProcessStored(ctx context.Context, entryID string) error {
	entry, err := p.registry.Get(ctx, entryID)
	if err != nil {
		return err
	}
	switch entry.Status {
	case certificates.StatusCancelling:
		p.finalizeCancelled(entry.ID)
		return nil
	case certificates.StatusProcessing:
	default:
		telemetry.Warn("pool.skip", map[string]any{
			"entry_id": entry.ID,
			"status":   string(entry.Status),
		})
		return nil
	}

	rc, err := p.store.Open(ctx, entry.StorageKey)
	if err != nil {
		p.fail(entry.ID, extraction.Unreadable(err))
		return nil
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		p.fail(entry.ID, extraction.Unreadable(err))
		return nil
	}

	p.extractAndSettle(ctx, entry, data)
	return nil
}

func (p *Pool) extractAndSettle(ctx context.Context, entry certificates.Entry, data []byte) {
	metrics.IncExtractionStarted()
	start := time.Now()

	fields, err := p.extractWithRetry(ctx, entry, data)
	if err != nil {
		if ctx.Err() != nil {
			p.finalizeCancelled(entry.ID)
			return
		}
		p.fail(entry.ID, err)
		return
	}

	if _, err := p.registry.MarkCompleted(context.Background(), entry.ID, fields); err != nil {
		p.settleTransitionError(entry.ID, err)
		return
	}
	metrics.ObserveExtractionDurationMs(metrics.SinceMillis(start))
}

func (p *Pool) extractWithRetry(ctx context.Context, entry certificates.Entry, data []byte) (extraction.Fields, error) {
	var lastErr error
	for attempt := 1; attempt <= p.retryMax; attempt++ {
		fields, err := p.engine.Extract(ctx, data, entry.MimeType)
		if err == nil {
			return fields, nil
		}
		lastErr = err
		if !errors.Is(err, extraction.ErrEngineUnavailable) || ctx.Err() != nil {
			return extraction.Fields{}, err
		}
		if attempt == p.retryMax {
			break
		}
		metrics.IncExtractionRetries()
		telemetry.Warn("pool.retry", map[string]any{
			"entry_id": entry.ID,
			"attempt":  attempt,
			"error":    err.Error(),
		})
		select {
		case <-time.After(time.Duration(attempt) * p.backoff):
		case <-ctx.Done():
			return extraction.Fields{}, ctx.Err()
		}
	}
	return extraction.Fields{}, lastErr
}

// fail records a terminal failure, falling back to cancellation finalization
// when the entry moved to cancelling behind our back.
func (p *Pool) fail(entryID string, cause error) {
	reason := extraction.Reason(cause)
	if _, err := p.registry.MarkFailed(context.Background(), entryID, reason); err != nil {
		p.settleTransitionError(entryID, err)
		return
	}
	telemetry.Info("pool.failed", map[string]any{"entry_id": entryID, "reason": reason})
}

// settleTransitionError handles a guard miss on a terminal write. The only
// legitimate competitor is cancellation, which we then finalize.
func (p *Pool) settleTransitionError(entryID string, err error) {
	if errors.Is(err, certificates.ErrInvalidTransition) {
		p.finalizeCancelled(entryID)
		return
	}
	telemetry.Error("pool.settle", map[string]any{"entry_id": entryID, "error": err.Error()})
}

func (p *Pool) finalizeCancelled(entryID string) {
	ctx := context.Background()
	entry, err := p.registry.Get(ctx, entryID)
	if err != nil {
		telemetry.Error("pool.cancel", map[string]any{"entry_id": entryID, "error": err.Error()})
		return
	}
	if entry.Status != certificates.StatusCancelling {
		return
	}
	if _, err := p.registry.MarkCancelled(ctx, entryID); err != nil {
		telemetry.Error("pool.cancel", map[string]any{"entry_id": entryID, "error": err.Error()})
	}
}

func (p *Pool) release(entryID string) {
	p.mu.Lock()
	if cancel, ok := p.inflight[entryID]; ok {
		cancel()
		delete(p.inflight, entryID)
	}
	p.mu.Unlock()
}

// progressReader reports upload percentage as bytes flow through. It caps at
// 99 so only the processing transition pins progress to 100.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(pct int)
}

func newProgressReader(r io.Reader, total int64, report func(pct int)) *progressReader {
	return &progressReader{r: r, total: total, report: report}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.read += int64(n)
	if pr.total > 0 && pr.report != nil {
		pct := int(pr.read * 100 / pr.total)
		if pct > 99 {
			pct = 99
		}
		if pct > pr.last {
			pr.last = pct
			pr.report(pct)
		}
	}
	return n, err
}
