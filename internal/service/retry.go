package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"cart-service/internal/repository"

	"go.uber.org/zap"
)

type RetryOptions struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 3,
		BaseBackoff: 20 * time.Millisecond,
		MaxBackoff:  500 * time.Millisecond,
	}
}

// txRunner выполняет fn в транзакции и повторяет её при конфликте
// сериализации. fn должна быть пригодна для повторного запуска.
type txRunner struct {
	repo *repository.Repository
	opts RetryOptions
	log  *zap.Logger
}

func newTxRunner(repo *repository.Repository, opts RetryOptions, log *zap.Logger) txRunner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return txRunner{repo: repo, opts: opts, log: log}
}

func (r txRunner) backoff(attempt int) time.Duration {
	d := r.opts.BaseBackoff << (attempt - 1)
	if r.opts.MaxBackoff > 0 && d > r.opts.MaxBackoff {
		d = r.opts.MaxBackoff
	}
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}

func (r txRunner) run(ctx context.Context, op string, fn func(tx *repository.Repository) error) error {
	for attempt := 1; ; attempt++ {
		err := r.repo.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
		if attempt >= r.opts.MaxAttempts {
			r.log.Warn("transaction conflict, giving up",
				zap.String("op", op),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return fmt.Errorf("%s: %w", op, ErrStorageConflict)
		}

		delay := r.backoff(attempt)
		r.log.Debug("transaction conflict, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
		)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// stockErr переводит ошибки склада репозитория в ошибки сервиса.
func stockErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNegativeStock), errors.Is(err, repository.ErrCheckViolation):
		return ErrInsufficientStock
	case errors.Is(err, repository.ErrNotFound):
		return ErrProductNotFound
	case errors.Is(err, repository.ErrStockOverflow):
		return ErrStockTooLarge
	}
	return err
}
