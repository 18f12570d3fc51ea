package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"image-normalizer/internal/domain"
	repoImage "image-normalizer/internal/repository/image"
	"image-normalizer/internal/usecase/normalizer"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

const (
	VariantOriginal   = "original"
	VariantNormalized = "normalized"
)

type ImageUsecase struct {
	repo       imageRepository
	fileRepo   fileRepository
	producer   taskProducer
	normalizer imageNormalizer
	previewTTL time.Duration
	logger     *zlog.Zerolog
}

func NewImageUsecase(
	repo imageRepository,
	fileRepo fileRepository,
	producer taskProducer,
	normalizer imageNormalizer,
	previewTTL time.Duration,
	logger *zlog.Zerolog,
) *ImageUsecase {
	return &ImageUsecase{
		repo:       repo,
		fileRepo:   fileRepo,
		producer:   producer,
		normalizer: normalizer,
		previewTTL: previewTTL,
		logger:     logger,
	}
}

// UploadImage stores the original and queues its normalization. The returned URL points at the
// original and can be shown right away; it is empty when presigning failed.
func (i *ImageUsecase) UploadImage(ctx context.Context, blob domain.SourceBlob) (*domain.Image, string, error) {
	if !blob.IsImage() {
		return nil, "", normalizer.ErrNotAnImage
	}

	imageID := uuid.New().String()

	originalPath, err := i.fileRepo.SaveOriginal(ctx, blob.Filename, bytes.NewReader(blob.Data), blob.Size(), blob.MimeType)
	if err != nil {
		i.logger.Error().Err(err).Str("filename", blob.Filename).Msg("Failed to save original image")
		return nil, "", fmt.Errorf("failed to save image: %w", err)
	}

	now := time.Now()
	img := &domain.Image{
		ID:               imageID,
		OriginalFilename: blob.Filename,
		OriginalSize:     blob.Size(),
		MimeType:         blob.MimeType,
		Status:           domain.StatusUploaded,
		OriginalPath:     originalPath,
		Bucket:           domain.BucketImages,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := i.repo.Save(ctx, img); err != nil {
		if delErr := i.fileRepo.DeleteObject(ctx, originalPath); delErr != nil {
			i.logger.Error().Err(delErr).Str("path", originalPath).Msg("Failed to remove orphaned original")
		}
		return nil, "", fmt.Errorf("%w: failed to save image metadata: %w", ErrDatabaseError, err)
	}

	opts := i.normalizer.Defaults()
	task := &domain.ProcessingTask{
		ID:           uuid.New().String(),
		ImageID:      imageID,
		OriginalPath: originalPath,
		MimeType:     blob.MimeType,
		Filename:     blob.Filename,
		Options:      &opts,
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal task: %w", err)
	}

	// The worker may finish before SendTask returns, so processing is recorded first.
	if err := i.repo.UpdateStatus(ctx, imageID, domain.StatusProcessing); err != nil {
		i.logger.Error().Err(err).Str("image_id", imageID).Msg("Failed to update status")
	} else {
		img.Status = domain.StatusProcessing
	}

	if err := i.producer.SendTask(ctx, []byte(imageID), payload); err != nil {
		i.logger.Error().Err(err).Str("image_id", imageID).Msg("Failed to send task to Kafka")
		i.updateStatus(ctx, imageID, domain.StatusFailed)
		return nil, "", fmt.Errorf("%w: failed to send processing task: %w", ErrMessageQueueError, err)
	}

	previewURL, err := i.fileRepo.PresignedURL(ctx, originalPath, i.previewTTL)
	if err != nil {
		i.logger.Warn().Err(err).Str("image_id", imageID).Msg("Failed to presign preview URL")
		previewURL = ""
	}

	i.logger.Info().
		Str("image_id", imageID).
		Str("filename", blob.Filename).
		Str("size", humanize.IBytes(uint64(blob.Size()))).
		Msg("Image uploaded and queued for normalization")

	return img, previewURL, nil
}

// Normalize runs the pipeline in-process and returns the artifact without storing anything.
func (i *ImageUsecase) Normalize(ctx context.Context, blob domain.SourceBlob, opts domain.NormalizeOptions) (*domain.EncodedImage, error) {
	encoded, err := i.normalizer.Normalize(ctx, blob, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize image: %w", err)
	}
	return encoded, nil
}

// GetImage opens the requested variant. An empty variant means the original.
func (i *ImageUsecase) GetImage(ctx context.Context, id, variant string) (io.ReadCloser, string, error) {
	img, err := i.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get image: %w", err)
	}

	switch variant {
	case "", VariantOriginal:
		reader, err := i.fileRepo.GetObject(ctx, img.OriginalPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to get original image: %w", err)
		}
		return reader, img.MimeType, nil
	case VariantNormalized:
		processed, err := i.normalized(ctx, img)
		if err != nil {
			return nil, "", err
		}
		reader, err := i.fileRepo.GetObject(ctx, processed.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to get normalized image file: %w", err)
		}
		return reader, processed.MimeType, nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidVariant, variant)
	}
}

func (i *ImageUsecase) GetStatus(ctx context.Context, id string) (domain.ImageStatus, error) {
	img, err := i.repo.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get image status: %w", err)
	}
	return img.Status, nil
}

// GetPayload loads the normalized artifact of a finished image.
func (i *ImageUsecase) GetPayload(ctx context.Context, id string) (*domain.EncodedImage, error) {
	img, err := i.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	processed, err := i.normalized(ctx, img)
	if err != nil {
		return nil, err
	}

	reader, err := i.fileRepo.GetObject(ctx, processed.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get normalized image file: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read normalized image: %w", err)
	}

	return &domain.EncodedImage{
		Data:          data,
		Format:        processed.Format,
		MimeType:      processed.MimeType,
		Width:         processed.Width,
		Height:        processed.Height,
		Quality:       processed.Quality,
		Iterations:    processed.Iterations,
		PassedThrough: processed.PassedThrough,
	}, nil
}

func (i *ImageUsecase) normalized(ctx context.Context, img *domain.Image) (*domain.ProcessedImage, error) {
	processed, err := i.repo.GetProcessedImageByOperation(ctx, img.ID, domain.OpNormalize)
	if errors.Is(err, repoImage.ErrProcessedImageNotFound) && img.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrNotReady, img.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get normalized image: %w", err)
	}
	return processed, nil
}

func (i *ImageUsecase) DeleteImage(ctx context.Context, id string) error {
	img, err := i.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get image for deletion: %w", err)
	}

	if err := i.fileRepo.DeleteObject(ctx, img.OriginalPath); err != nil {
		i.logger.Error().Err(err).Str("path", img.OriginalPath).Msg("Failed to delete original file")
	}

	prefix := domain.PathPrefixNormalized + id + "/"
	if err := i.fileRepo.DeleteObjectsWithPrefix(ctx, prefix); err != nil {
		i.logger.Error().Err(err).Str("prefix", prefix).Msg("Failed to delete normalized files")
	}

	if err := i.repo.DeleteProcessedImages(ctx, id); err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to delete processed images from DB")
	}

	if err := i.repo.UpdateStatus(ctx, id, domain.StatusDeleted); err != nil {
		return fmt.Errorf("failed to update image status to deleted: %w", err)
	}

	i.logger.Info().Str("image_id", id).Msg("Image deleted successfully")
	return nil
}

func (i *ImageUsecase) updateStatus(ctx context.Context, imageID string, status domain.ImageStatus) {
	if err := i.repo.UpdateStatus(ctx, imageID, status); err != nil {
		i.logger.Error().Err(err).Str("image_id", imageID).Str("status", string(status)).Msg("Failed to update status")
	}
}
