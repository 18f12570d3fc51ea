package normalizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"time"

	"image-normalizer/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/wb-go/wbf/zlog"
)

// Normalizer bounds user images to a maximum long edge and a byte budget. It holds no
// per-call state and is safe for concurrent use.
type Normalizer struct {
	encoder  *BudgetedEncoder
	defaults domain.NormalizeOptions
	logger   *zlog.Zerolog
}

func NewNormalizer(encoder Encoder, defaults domain.NormalizeOptions, logger *zlog.Zerolog) *Normalizer {
	if encoder == nil {
		encoder = NewJPEGEncoder()
	}
	return &Normalizer{
		encoder:  NewBudgetedEncoder(encoder, logger),
		defaults: defaults.WithDefaults(domain.DefaultNormalizeOptions()),
		logger:   logger,
	}
}

func (n *Normalizer) Defaults() domain.NormalizeOptions {
	return n.defaults
}

// Normalize passes blobs within opts.MaxBytes through untouched and otherwise decodes,
// downsizes and re-encodes them.
func (n *Normalizer) Normalize(ctx context.Context, blob domain.SourceBlob, opts domain.NormalizeOptions) (*domain.EncodedImage, error) {
	opts = opts.WithDefaults(n.defaults)

	if !blob.IsImage() {
		return nil, fmt.Errorf("%w: declared type %q", ErrNotAnImage, blob.MimeType)
	}

	if !domain.IsValidInterpolation(opts.Interpolation) {
		return nil, fmt.Errorf("%w: unknown interpolation %q", ErrInvalidOptions, opts.Interpolation)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if blob.Size() <= opts.MaxBytes {
		n.logger.Debug().
			Str("filename", blob.Filename).
			Str("size", humanize.IBytes(uint64(blob.Size()))).
			Msg("Image within budget, passing through")
		return passThrough(blob), nil
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	rasterizer := NewRasterizer(opts.Interpolation, opts.MaxPixels)

	raster, err := rasterizer.Decode(blob)
	if err != nil {
		n.logger.Warn().Err(err).Str("filename", blob.Filename).Str("mime_type", blob.MimeType).Msg("Failed to decode image")
		return nil, err
	}

	target := rasterizer.Plan(raster, opts.MaxDimension)
	resampled := rasterizer.Resample(raster, target)

	encoded, err := n.encoder.Compress(ctx, resampled, opts)
	if err != nil {
		n.logger.Error().Err(err).Str("filename", blob.Filename).Msg("Failed to encode image")
		return nil, err
	}

	n.logger.Info().
		Str("filename", blob.Filename).
		Str("original_size", humanize.IBytes(uint64(blob.Size()))).
		Str("encoded_size", humanize.IBytes(uint64(encoded.Size()))).
		Int("width", encoded.Width).
		Int("height", encoded.Height).
		Float64("quality", encoded.Quality).
		Int("iterations", encoded.Iterations).
		Dur("duration", time.Since(start)).
		Msg("Image normalized")

	return encoded, nil
}

func passThrough(blob domain.SourceBlob) *domain.EncodedImage {
	format := domain.FormatFromMimeType(blob.MimeType)
	encoded := &domain.EncodedImage{
		Data:          blob.Data,
		Format:        format,
		MimeType:      domain.MimeTypeFromFormat(format),
		PassedThrough: true,
		TransportSize: base64.StdEncoding.EncodedLen(len(blob.Data)),
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(blob.Data)); err == nil {
		encoded.Width = cfg.Width
		encoded.Height = cfg.Height
	}

	return encoded
}
