package image

import (
	"context"
	"io"
	"time"

	"image-normalizer/internal/domain"
)

type imageRepository interface {
	Save(ctx context.Context, image *domain.Image) error
	GetByID(ctx context.Context, id string) (*domain.Image, error)
	UpdateStatus(ctx context.Context, id string, status domain.ImageStatus) error
	GetProcessedImageByOperation(ctx context.Context, imageID string, operation domain.OperationType) (*domain.ProcessedImage, error)
	DeleteProcessedImages(ctx context.Context, imageID string) error
}

type fileRepository interface {
	SaveOriginal(ctx context.Context, filename string, data io.Reader, size int64, contentType string) (string, error)
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, path string) error
	DeleteObjectsWithPrefix(ctx context.Context, prefix string) error
	PresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

type taskProducer interface {
	SendTask(ctx context.Context, key, value []byte) error
}

type imageNormalizer interface {
	Normalize(ctx context.Context, blob domain.SourceBlob, opts domain.NormalizeOptions) (*domain.EncodedImage, error)
	Defaults() domain.NormalizeOptions
}
