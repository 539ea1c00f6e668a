package worker

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// popTimeout 阻塞读取队列的超时，超时后重新检查 ctx
const popTimeout = 5 * time.Second

// Source 可阻塞读取的消息队列
type Source[T any] interface {
	Name() string
	Pop(ctx context.Context, timeout time.Duration) (*T, error)
}

// Run 启动 workers 个消费者，直到 ctx 取消。
// handle 的错误只记录日志，消息不会重新入队
func Run[T any](ctx context.Context, src Source[T], workers int, handle func(context.Context, *T) error, log *zap.Logger) {
	if workers <= 0 {
		workers = 1
	}
	log = log.With(zap.String("queue", src.Name()))

	p := pool.New().WithMaxGoroutines(workers)
	for i := 0; i < workers; i++ {
		workerID := i
		p.Go(func() {
			for {
				select {
				case <-ctx.Done():
					log.Debug("worker shutting down", zap.Int("worker", workerID))
					return
				default:
				}

				msg, err := src.Pop(ctx, popTimeout)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warn("failed to pop message", zap.Int("worker", workerID), zap.Error(err))
					continue
				}
				if msg == nil {
					continue // 超时，继续等待
				}

				if err := handle(ctx, msg); err != nil {
					log.Debug("message handled with error", zap.Int("worker", workerID), zap.Error(err))
				}
			}
		})
	}

	log.Info("workers started", zap.Int("workers", workers))
	p.Wait()
	log.Info("workers stopped")
}
