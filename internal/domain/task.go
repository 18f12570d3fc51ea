package domain

import "time"

type ProcessingTask struct {
	ID           string            `json:"id"`
	ImageID      string            `json:"image_id"`
	OriginalPath string            `json:"original_path"`
	MimeType     string            `json:"mime_type"`
	Filename     string            `json:"filename"`
	Options      *NormalizeOptions `json:"options,omitempty"`
}

type ProcessingResult struct {
	ID             string      `json:"id"`
	ImageID        string      `json:"image_id"`
	Status         ImageStatus `json:"status"`
	NormalizedPath string      `json:"normalized_path,omitempty"`
	Format         ImageFormat `json:"format,omitempty"`
	Size           int64       `json:"size,omitempty"`
	Width          int         `json:"width,omitempty"`
	Height         int         `json:"height,omitempty"`
	Quality        float64     `json:"quality,omitempty"`
	Iterations     int         `json:"iterations,omitempty"`
	PassedThrough  bool        `json:"passed_through,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// NormalizeOptions bounds a normalization. Zero fields are replaced by the defaults below.
type NormalizeOptions struct {
	MaxDimension       int           `json:"max_dimension,omitempty"`
	MaxPixels          int64         `json:"max_pixels,omitempty"`
	MaxBytes           int64         `json:"max_bytes,omitempty"`
	SizeOverheadFactor float64       `json:"size_overhead_factor,omitempty"`
	InitialQuality     float64       `json:"initial_quality,omitempty"`
	QualityDecay       float64       `json:"quality_decay,omitempty"`
	MaxIterations      int           `json:"max_iterations,omitempty"`
	Interpolation      string        `json:"interpolation,omitempty"`
	Timeout            time.Duration `json:"timeout,omitempty"`
}

func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		MaxDimension:       DefaultMaxDimension,
		MaxPixels:          DefaultMaxPixels,
		MaxBytes:           DefaultMaxBytes,
		SizeOverheadFactor: DefaultSizeOverheadFactor,
		InitialQuality:     DefaultInitialQuality,
		QualityDecay:       DefaultQualityDecay,
		MaxIterations:      DefaultMaxIterations,
		Interpolation:      InterpolationCatmullRom,
		Timeout:            DefaultNormalizeTimeout,
	}
}

// WithDefaults fills every unset field from base.
func (o NormalizeOptions) WithDefaults(base NormalizeOptions) NormalizeOptions {
	if o.MaxDimension <= 0 {
		o.MaxDimension = base.MaxDimension
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = base.MaxPixels
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = base.MaxBytes
	}
	if o.SizeOverheadFactor <= 0 {
		o.SizeOverheadFactor = base.SizeOverheadFactor
	}
	if o.InitialQuality <= 0 || o.InitialQuality > 1 {
		o.InitialQuality = base.InitialQuality
	}
	if o.QualityDecay <= 0 || o.QualityDecay >= 1 {
		o.QualityDecay = base.QualityDecay
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = base.MaxIterations
	}
	if o.Interpolation == "" {
		o.Interpolation = base.Interpolation
	}
	if o.Timeout <= 0 {
		o.Timeout = base.Timeout
	}
	return o
}

// SizeLimit is the encoded length the compression loop aims for.
func (o NormalizeOptions) SizeLimit() float64 {
	return float64(o.MaxBytes) * o.SizeOverheadFactor
}

const (
	KafkaTopicProcessing = "image-normalize"
	KafkaTopicResults    = "image-normalized"
	KafkaGroupID         = "image-normalizer-group"
)

const (
	BucketImages = "images"
)

const (
	PathPrefixOriginal   = "original/"
	PathPrefixNormalized = "normalized/"
)

const (
	InterpolationCatmullRom = "catmullrom"
	InterpolationBiLinear   = "bilinear"
)

func IsValidInterpolation(name string) bool {
	switch name {
	case InterpolationCatmullRom, InterpolationBiLinear:
		return true
	default:
		return false
	}
}

const (
	DefaultMaxUploadSize      = 32 << 20
	DefaultMaxDimension       = 1920
	DefaultMaxPixels          = 50_000_000
	DefaultMaxBytes           = 4.5 * 1024 * 1024
	DefaultSizeOverheadFactor = 1.37
	DefaultInitialQuality     = 0.9
	DefaultQualityDecay       = 0.9
	DefaultMaxIterations      = 10
	DefaultNormalizeTimeout   = 30 * time.Second
)
