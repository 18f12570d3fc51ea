package processor

import (
	"context"
	"io"

	"image-normalizer/internal/domain"
)

type fileRepository interface {
	SaveProcessed(ctx context.Context, path string, data io.Reader, size int64, contentType string) error
}

type imageNormalizer interface {
	Normalize(ctx context.Context, blob domain.SourceBlob, opts domain.NormalizeOptions) (*domain.EncodedImage, error)
}
