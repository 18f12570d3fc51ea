package processor

import (
	"bytes"
	"context"
	"fmt"

	"image-normalizer/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/wb-go/wbf/zlog"
)

type ImageProcessor struct {
	normalizer imageNormalizer
	fileRepo   fileRepository
	logger     *zlog.Zerolog
}

func NewImageProcessor(normalizer imageNormalizer, fileRepo fileRepository, logger *zlog.Zerolog) *ImageProcessor {
	return &ImageProcessor{
		normalizer: normalizer,
		fileRepo:   fileRepo,
		logger:     logger,
	}
}

// Process normalizes the original bytes of a task and stores the outcome. The returned result
// is populated on failure too, so callers can publish it as is.
func (p *ImageProcessor) Process(ctx context.Context, task *domain.ProcessingTask, originalData []byte) (*domain.ProcessingResult, error) {
	result := &domain.ProcessingResult{
		ID:      task.ID,
		ImageID: task.ImageID,
		Status:  domain.StatusCompleted,
	}

	blob := domain.SourceBlob{
		Data:     originalData,
		MimeType: task.MimeType,
		Filename: task.Filename,
	}

	var opts domain.NormalizeOptions
	if task.Options != nil {
		opts = *task.Options
	}

	p.logger.Info().
		Str("image_id", task.ImageID).
		Str("mime_type", task.MimeType).
		Str("size", humanize.IBytes(uint64(len(originalData)))).
		Msg("Starting image normalization")

	encoded, err := p.normalizer.Normalize(ctx, blob, opts)
	if err != nil {
		result.Status = domain.StatusFailed
		result.Error = fmt.Sprintf("Normalization failed: %v", err)
		p.logger.Error().Err(err).Str("image_id", task.ImageID).Msg("Normalization failed")
		return result, fmt.Errorf("normalization failed: %w", err)
	}

	path := p.generatePath(task.ImageID, encoded.Format)

	err = p.fileRepo.SaveProcessed(ctx, path, bytes.NewReader(encoded.Data), encoded.Size(), encoded.MimeType)
	if err != nil {
		result.Status = domain.StatusFailed
		result.Error = fmt.Sprintf("Failed to save normalized image: %v", err)
		p.logger.Error().
			Err(err).
			Str("image_id", task.ImageID).
			Str("path", path).
			Msg("Failed to save normalized image")
		return result, fmt.Errorf("failed to save normalized image: %w", err)
	}

	result.NormalizedPath = path
	result.Format = encoded.Format
	result.Size = encoded.Size()
	result.Width = encoded.Width
	result.Height = encoded.Height
	result.Quality = encoded.Quality
	result.Iterations = encoded.Iterations
	result.PassedThrough = encoded.PassedThrough

	p.logger.Info().
		Str("image_id", task.ImageID).
		Str("path", path).
		Str("size", humanize.IBytes(uint64(encoded.Size()))).
		Bool("passed_through", encoded.PassedThrough).
		Msg("Image normalization completed")

	return result, nil
}

func (p *ImageProcessor) generatePath(imageID string, format domain.ImageFormat) string {
	return fmt.Sprintf("%s%s/normalized%s", domain.PathPrefixNormalized, imageID, domain.ExtensionFromFormat(format))
}

// ProcessedImageFromResult converts a successful result into the row stored for it.
func ProcessedImageFromResult(result *domain.ProcessingResult) *domain.ProcessedImage {
	return &domain.ProcessedImage{
		ImageID:       result.ImageID,
		Operation:     domain.OpNormalize,
		Path:          result.NormalizedPath,
		Size:          result.Size,
		MimeType:      domain.MimeTypeFromFormat(result.Format),
		Format:        result.Format,
		Width:         result.Width,
		Height:        result.Height,
		Quality:       result.Quality,
		Iterations:    result.Iterations,
		PassedThrough: result.PassedThrough,
		Status:        string(domain.StatusCompleted),
	}
}
