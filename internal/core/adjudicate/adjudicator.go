package adjudicate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const maxAttempts = 2

// Adjudicator bounds calls to a ReasoningService with a per-attempt timeout,
// a global concurrency cap and an optional request rate. It never returns an
// error: failures come back as an unavailable Judgment.
type Adjudicator struct {
	svc     ReasoningService
	timeout time.Duration
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	logger  zerolog.Logger
}

type Option func(*Adjudicator)

func WithTimeout(d time.Duration) Option {
	return func(a *Adjudicator) { a.timeout = d }
}

func WithMaxConcurrent(n int) Option {
	return func(a *Adjudicator) {
		if n > 0 {
			a.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRateLimit caps requests per second. Zero disables the limit.
func WithRateLimit(rps float64) Option {
	return func(a *Adjudicator) {
		if rps > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Adjudicator) { a.logger = l }
}

func New(svc ReasoningService, opts ...Option) *Adjudicator {
	a := &Adjudicator{
		svc:     svc,
		timeout: time.Duration(config.DefaultAITimeoutSeconds) * time.Second,
		sem:     semaphore.NewWeighted(config.DefaultAIMaxConcurrent),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromConfig applies the [adjudication] section.
func NewFromConfig(svc ReasoningService, cfg config.AdjudicationConfig, logger zerolog.Logger) *Adjudicator {
	return New(svc,
		WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
		WithMaxConcurrent(cfg.MaxConcurrent),
		WithRateLimit(cfg.RequestsPerSecond),
		WithLogger(logger),
	)
}

func unavailable(attempts int, err error) Judgment {
	return Judgment{
		Attempts: attempts,
		Err:      fmt.Errorf("%w: %w", model.ErrAdjudicationUnavailable, err),
	}
}

// Adjudicate asks the reasoning service for a verdict. Cancellation of ctx
// stops a call that is still waiting for a slot; a call already sent runs on
// a detached context until it completes or its timeout expires.
func (a *Adjudicator) Adjudicate(ctx context.Context, req Request) Judgment {
	if a == nil || a.svc == nil {
		return unavailable(0, errors.New("no reasoning service configured"))
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return unavailable(0, err)
	}
	defer a.sem.Release(1)

	detached := context.WithoutCancel(ctx)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return unavailable(attempt-1, err)
			}
		}

		j, err := a.attempt(detached, req)
		if err == nil {
			j.Attempts = attempt
			return j
		}
		lastErr = err

		a.logger.Debug().Err(err).Int("attempt", attempt).Msg("reasoning service call failed")
		if !retryable(err) || ctx.Err() != nil {
			return unavailable(attempt, err)
		}
	}
	return unavailable(maxAttempts, lastErr)
}

func (a *Adjudicator) attempt(ctx context.Context, req Request) (Judgment, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	j, err := a.svc.Judge(callCtx, req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return Judgment{}, err
	}
	if j.Label == "" {
		return Judgment{}, fmt.Errorf("%w: empty label", ErrMalformedResponse)
	}
	j.Available = true
	j.Err = nil
	return j, nil
}

// Timeouts spend the call budget and malformed replies will not improve, so
// only other transport failures are retried.
func retryable(err error) bool {
	return !errors.Is(err, ErrMalformedResponse) && !errors.Is(err, context.DeadlineExceeded)
}
