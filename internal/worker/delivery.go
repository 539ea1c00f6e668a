package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/metrics"
	"github.com/qs3c/fed_comment_server/internal/pkg/apclient"
	"github.com/qs3c/fed_comment_server/internal/pkg/queue"
	"github.com/qs3c/fed_comment_server/internal/pkg/retry"
)

// Deliverer 向远程 inbox 投递
type Deliverer interface {
	Deliver(ctx context.Context, inbox string, body []byte) error
}

// DeliveryProcessor 消费出站投递队列。4xx 拒绝不重试；重试预算耗尽后放弃并记录
type DeliveryProcessor struct {
	client Deliverer
	opts   retry.Options
	log    *zap.Logger
}

func NewDeliveryProcessor(client Deliverer, opts retry.Options, log *zap.Logger) *DeliveryProcessor {
	return &DeliveryProcessor{
		client: client,
		opts:   opts,
		log:    log,
	}
}

func (p *DeliveryProcessor) Process(ctx context.Context, msg *queue.DeliveryMessage) error {
	err := retry.Do(ctx, p.opts, func() error {
		err := p.client.Deliver(ctx, msg.Inbox, msg.Body)
		if errors.Is(err, apclient.ErrRejected) {
			return retry.Permanent(err)
		}
		return err
	}, func(err error, wait time.Duration) {
		metrics.DeliveriesProcessed.WithLabelValues("retried").Inc()
		p.log.Debug("delivery failed, retrying",
			zap.String("activity_id", msg.ActivityID),
			zap.String("inbox", msg.Inbox),
			zap.Duration("wait", wait),
			zap.Error(err))
	})

	switch {
	case err == nil:
		metrics.DeliveriesProcessed.WithLabelValues("delivered").Inc()
	case errors.Is(err, apclient.ErrRejected):
		metrics.DeliveriesProcessed.WithLabelValues("rejected").Inc()
		p.log.Warn("delivery rejected",
			zap.String("activity_id", msg.ActivityID), zap.String("inbox", msg.Inbox), zap.Error(err))
	default:
		metrics.DeliveriesProcessed.WithLabelValues("abandoned").Inc()
		p.log.Error("delivery abandoned",
			zap.String("activity_id", msg.ActivityID), zap.String("inbox", msg.Inbox), zap.Error(err))
	}
	return err
}
