package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelNotifications = "fed_notifications"
)

// 通知类型
const (
	TypeMention = "person_mention"
	TypeReply   = "comment_reply"
)

// NotificationMessage 新通知事件
type NotificationMessage struct {
	Type           string `json:"type"`
	RecipientID    int64  `json:"recipient_id"`
	CommentID      int64  `json:"comment_id"`
	CommentApID    string `json:"comment_ap_id"`
	CreatorApID    string `json:"creator_ap_id"`
	NotificationID int64  `json:"notification_id"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishNotification 发布通知事件
func (p *Publisher) PublishNotification(ctx context.Context, msg *NotificationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification message: %w", err)
	}

	return p.client.Publish(ctx, ChannelNotifications, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅通知事件，直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*NotificationMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelNotifications)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var n NotificationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				continue // 忽略解析错误
			}

			handler(&n)
		}
	}
}
