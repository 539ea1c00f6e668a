package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Queue Redis 列表实现的 FIFO 队列，T 为消息类型
type Queue[T any] struct {
	client    *redis.Client
	queueName string
}

// InboxMessage 入站活动，由 ingest worker 消费
type InboxMessage struct {
	Body       json.RawMessage `json:"body"`
	ReceivedAt time.Time       `json:"received_at"`
}

// DeliveryMessage 一次出站投递（一个活动 x 一个目标 inbox）
type DeliveryMessage struct {
	ActivityID string          `json:"activity_id"`
	Inbox      string          `json:"inbox"`
	Body       json.RawMessage `json:"body"`
}

func NewQueue[T any](client *redis.Client, queueName string) *Queue[T] {
	return &Queue[T]{
		client:    client,
		queueName: queueName,
	}
}

// Name 队列名
func (q *Queue[T]) Name() string {
	return q.queueName
}

// Push 将消息加入队列
func (q *Queue[T]) Push(ctx context.Context, msg *T) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Pop 从队列获取消息（阻塞）
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (*T, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 超时，无消息
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var msg T
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return &msg, nil
}

// Length 获取队列长度
func (q *Queue[T]) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}
