package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fableweaver/internal/ai"
	"fableweaver/internal/config"
	"fableweaver/internal/models"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how often a whole generation is attempted.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
}

// RetryPolicyFrom reads AI_CHAPTER_MAX_ATTEMPTS and AI_CHAPTER_RETRY_BASE.
func RetryPolicyFrom(cfg *config.Config) RetryPolicy {
	p := RetryPolicy{MaxAttempts: 3, Base: time.Second}
	if cfg == nil {
		return p
	}
	if cfg.ChapterMaxAttempts > 0 {
		p.MaxAttempts = cfg.ChapterMaxAttempts
	}
	if cfg.ChapterRetryBase > 0 {
		p.Base = cfg.ChapterRetryBase
	}
	return p
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = p.Base * 8
	return b
}

// retryGeneration runs fn until it succeeds, the attempts run out or ctx ends.
// An *models.AppError from fn is permanent and returned as is. Exhausted
// attempts become AI_UNAVAILABLE.
func retryGeneration[T any](ctx context.Context, p RetryPolicy, op ai.Operation, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	attempts := 0
	value, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := fn(ctx, attempts)
		if _, ok := models.AsAppError(err); ok {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(max(p.MaxAttempts, 1))),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "generation attempt failed",
				slog.String("operation", string(op)),
				slog.Int("attempt", attempts),
				slog.Duration("retry_in", next),
				slog.String("error", err.Error()))
		}),
	)
	if err == nil {
		return value, attempts, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return value, attempts, ctxErr
	}
	if _, ok := models.AsAppError(err); ok {
		return value, attempts, err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return value, attempts, models.NewAIUnavailableError("The story model timed out, try again later", err)
	}
	return value, attempts, models.NewAIUnavailableError("The story model is unavailable, try again later", err)
}
