package kafka

import (
	"context"
	"errors"

	"image-normalizer/internal/config"

	wbkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

type ProducerClient struct {
	tasks   *wbkafka.Producer
	results *wbkafka.Producer
	retries retry.Strategy
}

func NewProducerClient(cfg *config.Config) *ProducerClient {
	return &ProducerClient{
		tasks:   wbkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ProcessingTopic),
		results: wbkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ResultsTopic),
		retries: cfg.DefaultRetryStrategy(),
	}
}

func (p *ProducerClient) SendTask(ctx context.Context, key, value []byte) error {
	return p.tasks.SendWithRetry(ctx, p.retries, key, value)
}

func (p *ProducerClient) SendResult(ctx context.Context, key, value []byte) error {
	return p.results.SendWithRetry(ctx, p.retries, key, value)
}

func (p *ProducerClient) Close() error {
	return errors.Join(p.tasks.Close(), p.results.Close())
}
