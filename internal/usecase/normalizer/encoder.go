package normalizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"image-normalizer/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/wb-go/wbf/zlog"
	xdraw "golang.org/x/image/draw"
)

// Encoder turns pixels into a lossy byte stream. quality is a factor in (0, 1].
type Encoder interface {
	Format() domain.ImageFormat
	Encode(img image.Image, quality float64) ([]byte, error)
}

type JPEGEncoder struct{}

func NewJPEGEncoder() *JPEGEncoder {
	return &JPEGEncoder{}
}

func (e *JPEGEncoder) Format() domain.ImageFormat {
	return domain.FormatJPEG
}

func (e *JPEGEncoder) Encode(img image.Image, quality float64) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func jpegQuality(quality float64) int {
	q := int(math.Round(quality * 100))
	return min(max(q, 1), 100)
}

// BudgetedEncoder re-encodes a raster at decreasing quality until it fits a byte budget or
// runs out of iterations. Resolution is never touched here.
type BudgetedEncoder struct {
	encoder Encoder
	logger  *zlog.Zerolog
}

func NewBudgetedEncoder(encoder Encoder, logger *zlog.Zerolog) *BudgetedEncoder {
	return &BudgetedEncoder{
		encoder: encoder,
		logger:  logger,
	}
}

type attempt struct {
	quality float64
	data    []byte
}

// Compress returns the last encoding produced, whether or not it ended up within
// opts.MaxBytes * opts.SizeOverheadFactor. A done context stops the loop at the next
// iteration boundary with the same best-effort result.
func (b *BudgetedEncoder) Compress(ctx context.Context, raster *Raster, opts domain.NormalizeOptions) (*domain.EncodedImage, error) {
	if raster == nil || raster.Image == nil || raster.Width <= 0 || raster.Height <= 0 {
		return nil, fmt.Errorf("%w: raster has no pixels", ErrEncode)
	}

	src := flatten(raster.Image)
	limit := opts.SizeLimit()

	current, err := b.encode(src, opts.InitialQuality)
	if err != nil {
		return nil, err
	}

	iterations := 0
	for float64(len(current.data)) > limit && iterations < opts.MaxIterations {
		if ctx.Err() != nil {
			b.logger.Warn().
				Err(ctx.Err()).
				Int("iterations", iterations).
				Float64("quality", current.quality).
				Str("size", humanize.IBytes(uint64(len(current.data)))).
				Msg("Compression interrupted, keeping last attempt")
			break
		}

		current, err = b.encode(src, current.quality*opts.QualityDecay)
		if err != nil {
			return nil, err
		}
		iterations++

		b.logger.Debug().
			Int("iteration", iterations).
			Float64("quality", current.quality).
			Int("size", len(current.data)).
			Msg("Re-encoded at lower quality")
	}

	if float64(len(current.data)) > limit {
		b.logger.Warn().
			Int("iterations", iterations).
			Str("size", humanize.IBytes(uint64(len(current.data)))).
			Str("limit", humanize.IBytes(uint64(limit))).
			Msg("Size budget not met, returning best effort encoding")
	}

	return &domain.EncodedImage{
		Data:          current.data,
		Format:        b.encoder.Format(),
		MimeType:      domain.MimeTypeFromFormat(b.encoder.Format()),
		Width:         raster.Width,
		Height:        raster.Height,
		Quality:       current.quality,
		Iterations:    iterations,
		TransportSize: base64.StdEncoding.EncodedLen(len(current.data)),
	}, nil
}

func (b *BudgetedEncoder) encode(img image.Image, quality float64) (attempt, error) {
	data, err := b.encoder.Encode(img, quality)
	if err != nil {
		return attempt{}, fmt.Errorf("%w: quality %.3f: %w", ErrEncode, quality, err)
	}
	return attempt{quality: quality, data: data}, nil
}

// flatten composites translucent pixels over white; lossy formats here carry no alpha.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	xdraw.Draw(dst, bounds, image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, bounds, img, bounds.Min, xdraw.Over)
	return dst
}
