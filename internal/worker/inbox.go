package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/pkg/queue"
	"github.com/qs3c/fed_comment_server/internal/pkg/retry"
	"github.com/qs3c/fed_comment_server/internal/service"
)

// Applier 入站活动处理
type Applier interface {
	Apply(ctx context.Context, env *activity.Envelope) error
}

// InboxProcessor 消费入站队列。远程状态暂不可得（父对象、目标未到或实例不可达）时
// 退避重试，预算耗尽后丢弃
type InboxProcessor struct {
	ingest Applier
	opts   retry.Options
	log    *zap.Logger
}

func NewInboxProcessor(ingest Applier, opts retry.Options, log *zap.Logger) *InboxProcessor {
	return &InboxProcessor{
		ingest: ingest,
		opts:   opts,
		log:    log,
	}
}

// Process 处理一条入站消息，返回最终结果
func (p *InboxProcessor) Process(ctx context.Context, msg *queue.InboxMessage) error {
	env, err := activity.Decode(msg.Body)
	if err != nil {
		p.log.Warn("discarding malformed activity", zap.Error(err))
		return fmt.Errorf("%w: %v", service.ErrInvalidActivity, err)
	}

	attempts := 0
	err = retry.Do(ctx, p.opts, func() error {
		attempts++
		err := p.ingest.Apply(ctx, env)
		if err == nil || service.Retriable(err) {
			return err
		}
		return retry.Permanent(err)
	}, func(err error, wait time.Duration) {
		p.log.Debug("activity not yet applicable, retrying",
			zap.String("activity_id", env.ID), zap.Duration("wait", wait), zap.Error(err))
	})

	switch {
	case err == nil:
	case errors.Is(err, service.ErrDuplicateActivity):
		p.log.Debug("duplicate activity ignored", zap.String("activity_id", env.ID))
	default:
		p.log.Warn("activity discarded",
			zap.String("activity_id", env.ID),
			zap.String("type", string(env.Type)),
			zap.String("reason", service.ReasonCode(err)),
			zap.Int("attempts", attempts),
			zap.Error(err))
	}
	return err
}
