// Package notify 通过 Redis Pub/Sub 向在线用户推送简历事件，由 WebSocket 连接转发给前端。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventResumeSaved 在简历更新成功落库后发布。
const EventResumeSaved = "resume.saved"

// IsKnownEvent 报告 eventType 是否是前端能够处理的事件。
func IsKnownEvent(eventType string) bool {
	return eventType == EventResumeSaved
}

// Message 是推送给前端的统一消息格式，字段名与前端解析保持一致。
type Message struct {
	Type          string    `json:"type"`
	ResumeID      string    `json:"resume_id"`
	Revision      int       `json:"revision"`
	ImageUpdated  bool      `json:"image_updated"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Channel 返回用户专属的通知频道名。
func Channel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// Publisher 将消息发布到 Redis。client 为空时所有发布都是空操作。
type Publisher struct {
	client *redis.Client
}

// NewPublisher 构造 Publisher。
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish 将 msg 发布到 userID 的频道。
func (p *Publisher) Publish(ctx context.Context, userID uint, msg Message) error {
	if p == nil || p.client == nil {
		return nil
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notify message: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(userID), data).Err(); err != nil {
		return fmt.Errorf("publish notify message: %w", err)
	}
	return nil
}

// Subscriber 订阅用户频道并把负载解码为 Message。
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 构造 Subscriber。
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 确认订阅后返回消息通道；ctx 结束时退订并关闭通道。
// 无法解码的负载直接丢弃。
func (s *Subscriber) Subscribe(ctx context.Context, userID uint) (<-chan Message, error) {
	pubsub := s.client.Subscribe(ctx, Channel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel(userID), err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer pubsub.Close()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				msg, ok := decodeMessage(raw.Payload)
				if !ok {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decodeMessage(payload string) (Message, bool) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.Type == "" {
		return Message{}, false
	}
	return msg, true
}
