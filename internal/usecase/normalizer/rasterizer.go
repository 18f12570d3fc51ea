package normalizer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"image-normalizer/internal/domain"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Raster is a decoded pixel grid owned by a single normalization.
type Raster struct {
	Image  image.Image
	Width  int
	Height int
	Format domain.ImageFormat
}

func (r *Raster) Size() domain.TargetSize {
	return domain.TargetSize{Width: r.Width, Height: r.Height}
}

type Rasterizer struct {
	scaler    xdraw.Scaler
	maxPixels int64
}

// NewRasterizer returns a rasterizer that refuses images larger than maxPixels. A
// non-positive maxPixels disables the check.
func NewRasterizer(interpolation string, maxPixels int64) *Rasterizer {
	return &Rasterizer{
		scaler:    scalerFor(interpolation),
		maxPixels: maxPixels,
	}
}

func scalerFor(interpolation string) xdraw.Scaler {
	switch interpolation {
	case domain.InterpolationBiLinear:
		return xdraw.BiLinear
	default:
		return xdraw.CatmullRom
	}
}

func (r *Rasterizer) Decode(blob domain.SourceBlob) (*Raster, error) {
	if len(blob.Data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	// Oversized canvases are rejected from the header, before any pixel buffer exists.
	if r.maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(blob.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > r.maxPixels {
			return nil, fmt.Errorf("%w: %w: %dx%d is over %d pixels",
				ErrDecode, ErrTooManyPixels, cfg.Width, cfg.Height, r.maxPixels)
		}
	}

	img, format, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels (%dx%d)", ErrDecode, bounds.Dx(), bounds.Dy())
	}

	return &Raster{
		Image:  img,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: domain.ImageFormat(format),
	}, nil
}

// PlanTargetSize clamps the long edge to maxDimension and scales the short edge by the same
// factor. Images that already fit are returned unchanged; nothing is ever scaled up.
func PlanTargetSize(width, height, maxDimension int) domain.TargetSize {
	if maxDimension <= 0 || (width <= maxDimension && height <= maxDimension) {
		return domain.TargetSize{Width: width, Height: height}
	}

	if width > height {
		return domain.TargetSize{
			Width:  maxDimension,
			Height: scaleEdge(height, maxDimension, width),
		}
	}

	return domain.TargetSize{
		Width:  scaleEdge(width, maxDimension, height),
		Height: maxDimension,
	}
}

func scaleEdge(short, maxDimension, long int) int {
	scaled := int(math.Round(float64(short) * float64(maxDimension) / float64(long)))
	if scaled < 1 {
		return 1
	}
	return scaled
}

func (r *Rasterizer) Plan(raster *Raster, maxDimension int) domain.TargetSize {
	return PlanTargetSize(raster.Width, raster.Height, maxDimension)
}

// Resample returns a new raster of exactly target's dimensions. When the target matches the
// source the pixels are copied without interpolation.
func (r *Rasterizer) Resample(raster *Raster, target domain.TargetSize) *Raster {
	width := max(target.Width, 1)
	height := max(target.Height, 1)

	src := raster.Image
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	if width == raster.Width && height == raster.Height {
		xdraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, xdraw.Src)
	} else {
		r.scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}

	return &Raster{
		Image:  dst,
		Width:  width,
		Height: height,
		Format: raster.Format,
	}
}
