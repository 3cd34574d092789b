package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

func InitConsumer(brokers []string, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized", zap.Strings("brokers", brokers))
	return consumer, nil
}

// Consume reads every partition of topic from the newest offset and calls
// handle for each message until ctx is done.
func Consume(ctx context.Context, consumer sarama.Consumer, topic string, logger *zap.Logger, handle func(*sarama.ConsumerMessage)) error {
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		return fmt.Errorf("failed to list partitions: %w", err)
	}

	messages := make(chan *sarama.ConsumerMessage)
	for _, p := range partitions {
		pc, err := consumer.ConsumePartition(topic, p, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("failed to consume partition %d: %w", p, err)
		}
		go func(pc sarama.PartitionConsumer) {
			defer pc.Close()
			for {
				select {
				case msg, ok := <-pc.Messages():
					if !ok {
						return
					}
					select {
					case messages <- msg:
					case <-ctx.Done():
						return
					}
				case cerr, ok := <-pc.Errors():
					if !ok {
						return
					}
					logger.Error("Kafka consumer error", zap.Error(cerr))
				case <-ctx.Done():
					return
				}
			}
		}(pc)
	}

	logger.Info("Kafka consumer started", zap.String("topic", topic), zap.Int("partitions", len(partitions)))

	for {
		select {
		case msg := <-messages:
			handle(msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
