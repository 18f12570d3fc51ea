package worker

import (
	"context"
	"io"

	"image-normalizer/internal/broker"
	"image-normalizer/internal/domain"

	"github.com/wb-go/wbf/retry"
)

type messageConsumer interface {
	Start(ctx context.Context, out chan<- *broker.Message, strategy retry.Strategy)
	Commit(ctx context.Context, msg *broker.Message) error
}

type resultProducer interface {
	SendResult(ctx context.Context, key, value []byte) error
}

type taskProcessor interface {
	Process(ctx context.Context, task *domain.ProcessingTask, originalData []byte) (*domain.ProcessingResult, error)
}

type imageRepository interface {
	UpdateStatus(ctx context.Context, id string, status domain.ImageStatus) error
	SaveProcessedImage(ctx context.Context, processed *domain.ProcessedImage) error
}

type fileRepository interface {
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
}
