package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var ErrConditionNotMet = errors.New("condition not met")

// Options 重试配置
type Options struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

// DefaultOptions 远程联邦调用的默认配置
func DefaultOptions() Options {
	return Options{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  5 * time.Minute,
		MaxRetries:      5,
	}
}

func (o Options) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(o.MaxElapsedTime),
		backoff.WithInitialInterval(o.InitialInterval),
		backoff.WithMaxInterval(o.MaxInterval),
	), o.MaxRetries)
	return backoff.WithContext(b, ctx)
}

// Permanent 标记为不可重试的错误
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do 执行 op 直到成功、返回 Permanent 错误或预算耗尽。
// notify 在每次等待前调用，可为 nil
func Do(ctx context.Context, opts Options, op func() error, notify func(err error, wait time.Duration)) error {
	if notify == nil {
		return backoff.Retry(op, opts.backOff(ctx))
	}
	return backoff.RetryNotify(op, opts.backOff(ctx), notify)
}

// Until 轮询 fetch 直到结果满足 cond。预算耗尽时返回最后一次的结果，
// 以及 ErrConditionNotMet 或最后一次的获取错误
func Until[T any](ctx context.Context, opts Options, fetch func(context.Context) (T, error), cond func(T) bool) (T, error) {
	var last T
	err := Do(ctx, opts, func() error {
		v, err := fetch(ctx)
		if err != nil {
			return err
		}
		last = v
		if !cond(v) {
			return ErrConditionNotMet
		}
		return nil
	}, nil)
	return last, err
}
