package translator

import (
	"context"
	"errors"
	"time"

	"github.com/contentops/cms-translator/internal/metrics"
	"github.com/contentops/cms-translator/pkg/log"
)

const (
	defaultBatchSize         = 50
	defaultMaxAttempts       = 2
	defaultPrimaryBaseDelay  = 1 * time.Second
	defaultFallbackBaseDelay = 1500 * time.Millisecond
)

// Batch splits fragment lists into bounded chunks and drives each chunk
// through the primary backend with retries, escalating to the fallback
// backend when the primary exhausts its budget or hits a safety block.
// A failed chunk fails the whole call; a partial result would silently
// misalign every fragment behind it.
type Batch struct {
	primary  Backend
	fallback Backend

	batchSize         int
	maxAttempts       int
	primaryBaseDelay  time.Duration
	fallbackBaseDelay time.Duration
}

type Option func(*Batch)

func WithBatchSize(n int) Option {
	return func(b *Batch) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(b *Batch) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

func WithBaseDelays(primary, fallback time.Duration) Option {
	return func(b *Batch) {
		b.primaryBaseDelay = primary
		b.fallbackBaseDelay = fallback
	}
}

func NewBatch(primary, fallback Backend, opts ...Option) *Batch {
	b := &Batch{
		primary:           primary,
		fallback:          fallback,
		batchSize:         defaultBatchSize,
		maxAttempts:       defaultMaxAttempts,
		primaryBaseDelay:  defaultPrimaryBaseDelay,
		fallbackBaseDelay: defaultFallbackBaseDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Translate implements Translator. Results concatenate in chunk order and
// map positionally to the input.
func (b *Batch) Translate(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(texts))
	for i := 0; i < len(texts); i += b.batchSize {
		end := min(i+b.batchSize, len(texts))
		chunk, err := b.translateChunk(ctx, texts[i:end], targetLanguage)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	metrics.FragmentsTranslated.Add(float64(len(texts)))
	return out, nil
}

func (b *Batch) translateChunk(ctx context.Context, chunk []string, targetLanguage string) ([]string, error) {
	got, primaryErr := b.runBackend(ctx, b.primary, chunk, targetLanguage, b.primaryBaseDelay)
	if primaryErr == nil {
		return got, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.Warn("primary backend %s gave up on %d fragments, escalating to %s: %v",
		b.primary.Name(), len(chunk), b.fallback.Name(), primaryErr)

	got, fallbackErr := b.runBackend(ctx, b.fallback, chunk, targetLanguage, b.fallbackBaseDelay)
	if fallbackErr == nil {
		return got, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, &ExhaustedError{PrimaryErr: primaryErr, FallbackErr: fallbackErr}
}

func (b *Batch) runBackend(ctx context.Context, be Backend, chunk []string, targetLanguage string, baseDelay time.Duration) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, baseDelay*(1<<attempt)); err != nil {
				return nil, err
			}
		}

		got, err := be.Translate(ctx, chunk, targetLanguage)
		if err == nil && len(got) != len(chunk) {
			err = retryable(be.Name(), "expected %d translations, got %d", len(chunk), len(got))
			metrics.BackendRequests.WithLabelValues(be.Name(), "mismatch").Inc()
		} else if err == nil {
			metrics.BackendRequests.WithLabelValues(be.Name(), "success").Inc()
			return got, nil
		} else {
			metrics.BackendRequests.WithLabelValues(be.Name(), "error").Inc()
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var berr *BackendError
		if errors.As(err, &berr) && !berr.Retryable {
			// Safety blocks and hard request errors cannot succeed on
			// this backend no matter how often we retry.
			return nil, err
		}
		log.Warn("backend %s attempt %d/%d failed: %v", be.Name(), attempt+1, b.maxAttempts, err)
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
