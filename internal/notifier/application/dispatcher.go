// Package application 通知中继：消费上游集成事件并分发到各渠道
package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/loancollateral/internal/notifier/domain"
	"github.com/wyfcoding/loancollateral/pkg/logger"
	"github.com/wyfcoding/loancollateral/pkg/mq"
	"golang.org/x/sync/errgroup"
)

// Dispatcher 把上游事件翻译成通知并投递。投递失败的消息进入死信队列，
// 不阻塞后续消费。
type Dispatcher struct {
	senders map[domain.Channel]domain.Sender
	dlq     *mq.DeadLetterQueue
}

func NewDispatcher(senders map[domain.Channel]domain.Sender, dlq *mq.DeadLetterQueue) *Dispatcher {
	return &Dispatcher{senders: senders, dlq: dlq}
}

// HandleMessage 处理单条事件消息
func (d *Dispatcher) HandleMessage(ctx context.Context, msg *mq.Message) error {
	notices, err := domain.Render(msg.Topic, msg.Value)
	if err != nil {
		return err
	}
	for _, notice := range notices {
		sender, ok := d.senders[notice.Channel]
		if !ok {
			return fmt.Errorf("no sender for channel %s", notice.Channel)
		}
		if err := sender.Send(ctx, notice.Target, notice.Subject, notice.Content); err != nil {
			return fmt.Errorf("send %s notification: %w", notice.Channel, err)
		}
	}
	return nil
}

// Run 对每个订阅主题启动一个消费循环，阻塞直到 ctx 取消。
func (d *Dispatcher) Run(ctx context.Context, cfg mq.KafkaConfig) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range domain.Topics() {
		consumer, err := mq.NewConsumer(cfg, topic)
		if err != nil {
			return fmt.Errorf("create consumer for %s: %w", topic, err)
		}
		g.Go(func() error {
			defer consumer.Close()
			return d.consumeLoop(ctx, consumer)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) consumeLoop(ctx context.Context, consumer *mq.KafkaConsumer) error {
	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := d.HandleMessage(ctx, msg); err != nil {
			logger.Error(ctx, "Failed to handle event message",
				"topic", msg.Topic,
				"key", msg.Key,
				"error", err,
			)
			if dlqErr := d.dlq.Send(ctx, msg, "handle failed", err); dlqErr != nil {
				logger.Error(ctx, "Failed to send message to dead letter queue",
					"topic", msg.Topic,
					"error", dlqErr,
				)
			}
		}
	}
}
