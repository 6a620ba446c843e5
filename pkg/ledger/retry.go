package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy 控制 OCC 衝突時的重試次數與退避間隔
type RetryPolicy struct {
	MaxRetries      uint64        `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// DefaultRetryPolicy 預設重試 4 次
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      4,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Do 執行 attempt，只有 ErrConflict 會重試；其他錯誤直接回傳。
// 重試用盡時回傳包著 ErrRetriesExhausted 與最後一次衝突的 *Error。
func (p RetryPolicy) Do(ctx context.Context, attempt func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	var conflicts int
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(&Error{Op: "begin", Err: err})
		}
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConflict) {
			conflicts++
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) {
		return &Error{Op: "commit", Err: fmt.Errorf("%w after %d conflicts: %w", ErrRetriesExhausted, conflicts, err)}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var lerr *Error
		if !errors.As(err, &lerr) {
			return &Error{Op: "retry", Err: err}
		}
	}
	return err
}
