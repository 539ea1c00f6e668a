package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/pkg/queue"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

// DeliveryQueue 出站投递队列，由 delivery worker 消费
type DeliveryQueue interface {
	Push(ctx context.Context, msg *queue.DeliveryMessage) error
}

// Dispatcher 把本地变更生成的活动按受众拆成投递任务入队，不等待投递结果
type Dispatcher struct {
	repos    *repository.Repos
	queue    DeliveryQueue
	instance Instance
	log      *zap.Logger
}

func NewDispatcher(repos *repository.Repos, queue DeliveryQueue, instance Instance, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repos:    repos,
		queue:    queue,
		instance: instance,
		log:      log,
	}
}

// Audience 计算受众 inbox：社区关注者、社区不在本实例时的社区 inbox、被提及者。
// 本实例永远不是投递目标
func (d *Dispatcher) Audience(ctx context.Context, community *model.Community, extra []*model.Person, excludeHosts ...string) ([]string, error) {
	followers, err := d.repos.WithContext(ctx).Communities.ListFollowers(community.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}

	var inboxes []string
	for _, p := range append(followers, extra...) {
		inboxes = append(inboxes, p.InboxURL)
	}
	if !community.Local {
		inboxes = append(inboxes, community.InboxURL)
	}

	excluded := append([]string{d.instance.Domain}, excludeHosts...)
	inboxes = lo.Filter(inboxes, func(inbox string, _ int) bool {
		host := activity.Host(inbox)
		return host != "" && !lo.Contains(excluded, host)
	})
	return lo.Uniq(inboxes), nil
}

// Send 把活动投递给社区受众
func (d *Dispatcher) Send(ctx context.Context, env *activity.Envelope, community *model.Community, extra []*model.Person) error {
	inboxes, err := d.Audience(ctx, community, extra)
	if err != nil {
		return err
	}
	return d.SendTo(ctx, env, inboxes)
}

// SendTo 把活动投递给指定 inbox
func (d *Dispatcher) SendTo(ctx context.Context, env *activity.Envelope, inboxes []string) error {
	if len(inboxes) == 0 {
		return nil
	}
	body, err := env.Marshal()
	if err != nil {
		return err
	}
	for _, inbox := range inboxes {
		msg := &queue.DeliveryMessage{
			ActivityID: env.ID,
			Inbox:      inbox,
			Body:       body,
		}
		if err := d.queue.Push(ctx, msg); err != nil {
			return fmt.Errorf("failed to enqueue delivery to %s: %w", inbox, err)
		}
	}
	d.log.Debug("activity dispatched",
		zap.String("activity_id", env.ID),
		zap.String("type", string(env.Type)),
		zap.Int("targets", len(inboxes)))
	return nil
}

// Announce 社区所在实例把接受的远程活动转发给其余关注者，跳过来源实例
func (d *Dispatcher) Announce(ctx context.Context, community *model.Community, inner *activity.Envelope) error {
	env, err := activity.New(activity.KindAnnounce, d.instance.NewActivityID(activity.KindAnnounce),
		community.ApID, inner, "", time.Now())
	if err != nil {
		return err
	}
	inboxes, err := d.Audience(ctx, community, nil, activity.Host(inner.Actor))
	if err != nil {
		return err
	}
	return d.SendTo(ctx, env, inboxes)
}
