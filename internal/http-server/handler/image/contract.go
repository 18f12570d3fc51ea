package image

import (
	"context"
	"io"

	"image-normalizer/internal/domain"
)

type imageUsecase interface {
	UploadImage(ctx context.Context, blob domain.SourceBlob) (*domain.Image, string, error)
	Normalize(ctx context.Context, blob domain.SourceBlob, opts domain.NormalizeOptions) (*domain.EncodedImage, error)
	GetImage(ctx context.Context, id, variant string) (io.ReadCloser, string, error)
	GetStatus(ctx context.Context, id string) (domain.ImageStatus, error)
	GetPayload(ctx context.Context, id string) (*domain.EncodedImage, error)
	DeleteImage(ctx context.Context, id string) error
}
