package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"image-normalizer/internal/domain"
	"image-normalizer/internal/repository/image"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
)

type ImagesRepository struct {
	db      *dbpg.DB
	retries retry.Strategy
}

func NewImagesRepository(db *dbpg.DB, retries retry.Strategy) *ImagesRepository {
	return &ImagesRepository{
		db:      db,
		retries: retries,
	}
}

func (r *ImagesRepository) Save(ctx context.Context, img *domain.Image) error {
	query := `
		INSERT INTO images (
			id, original_filename, original_size, mime_type,
			status, original_path, bucket, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecWithRetry(ctx, r.retries, query,
		img.ID,
		img.OriginalFilename,
		img.OriginalSize,
		img.MimeType,
		img.Status,
		img.OriginalPath,
		img.Bucket,
		img.CreatedAt,
		img.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	return nil
}

func (r *ImagesRepository) GetByID(ctx context.Context, id string) (*domain.Image, error) {
	query := `
		SELECT id, original_filename, original_size, mime_type,
		       status, original_path, bucket, created_at, updated_at
		FROM images
		WHERE id = $1 AND status != $2
	`

	row, err := r.db.QueryRowWithRetry(ctx, r.retries, query, id, domain.StatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}

	var img domain.Image
	err = row.Scan(
		&img.ID,
		&img.OriginalFilename,
		&img.OriginalSize,
		&img.MimeType,
		&img.Status,
		&img.OriginalPath,
		&img.Bucket,
		&img.CreatedAt,
		&img.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, image.ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}

	return &img, nil
}

func (r *ImagesRepository) UpdateStatus(ctx context.Context, id string, status domain.ImageStatus) error {
	query := `UPDATE images SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecWithRetry(ctx, r.retries, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return image.ErrImageNotFound
	}

	return nil
}

// SaveProcessedImage upserts on (image_id, operation) so redelivered tasks overwrite the
// earlier row instead of failing.
func (r *ImagesRepository) SaveProcessedImage(ctx context.Context, processed *domain.ProcessedImage) error {
	query := `
		INSERT INTO processed_images (
			id, image_id, operation, path, size, mime_type, format,
			width, height, quality, iterations, passed_through, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (image_id, operation) DO UPDATE SET
			path = EXCLUDED.path,
			size = EXCLUDED.size,
			mime_type = EXCLUDED.mime_type,
			format = EXCLUDED.format,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			quality = EXCLUDED.quality,
			iterations = EXCLUDED.iterations,
			passed_through = EXCLUDED.passed_through,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at
	`

	if processed.ID == "" {
		processed.ID = uuid.New().String()
	}
	processed.CreatedAt = time.Now()

	_, err := r.db.ExecWithRetry(ctx, r.retries, query,
		processed.ID,
		processed.ImageID,
		processed.Operation,
		processed.Path,
		processed.Size,
		processed.MimeType,
		processed.Format,
		processed.Width,
		processed.Height,
		processed.Quality,
		processed.Iterations,
		processed.PassedThrough,
		processed.Status,
		processed.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save processed image: %w", err)
	}

	return nil
}

func (r *ImagesRepository) GetProcessedImageByOperation(ctx context.Context, imageID string, operation domain.OperationType) (*domain.ProcessedImage, error) {
	query := `
		SELECT id, image_id, operation, path, size, mime_type, format,
		       width, height, quality, iterations, passed_through, status, created_at
		FROM processed_images
		WHERE image_id = $1 AND operation = $2
		LIMIT 1
	`

	row, err := r.db.QueryRowWithRetry(ctx, r.retries, query, imageID, operation)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed image: %w", err)
	}

	var processed domain.ProcessedImage
	err = row.Scan(
		&processed.ID,
		&processed.ImageID,
		&processed.Operation,
		&processed.Path,
		&processed.Size,
		&processed.MimeType,
		&processed.Format,
		&processed.Width,
		&processed.Height,
		&processed.Quality,
		&processed.Iterations,
		&processed.PassedThrough,
		&processed.Status,
		&processed.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, image.ErrProcessedImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan processed image: %w", err)
	}

	return &processed, nil
}

func (r *ImagesRepository) DeleteProcessedImages(ctx context.Context, imageID string) error {
	query := `DELETE FROM processed_images WHERE image_id = $1`

	if _, err := r.db.ExecWithRetry(ctx, r.retries, query, imageID); err != nil {
		return fmt.Errorf("failed to delete processed images: %w", err)
	}

	return nil
}
