package domain

import (
	"strings"
	"time"
)

type Image struct {
	ID               string
	OriginalFilename string
	OriginalSize     int64
	MimeType         string
	Status           ImageStatus
	OriginalPath     string
	Bucket           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type ProcessedImage struct {
	ID            string
	ImageID       string
	Operation     OperationType
	Path          string
	Size          int64
	MimeType      string
	Format        ImageFormat
	Width         int
	Height        int
	Quality       float64
	Iterations    int
	PassedThrough bool
	Status        string
	CreatedAt     time.Time
}

// SourceBlob is a user-supplied file together with the type the client declared for it.
type SourceBlob struct {
	Data     []byte
	MimeType string
	Filename string
}

func (b SourceBlob) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(b.MimeType)), "image/")
}

func (b SourceBlob) Size() int64 {
	return int64(len(b.Data))
}

type TargetSize struct {
	Width  int
	Height int
}

// EncodedImage is the final artifact of a normalization. It carries no flag telling whether
// the byte budget was met: exhausting the iteration cap still yields a successful result.
type EncodedImage struct {
	Data          []byte
	Format        ImageFormat
	MimeType      string
	Width         int
	Height        int
	Quality       float64
	Iterations    int
	PassedThrough bool
	// TransportSize approximates the base64 length the bytes occupy on the wire.
	TransportSize int
}

func (e *EncodedImage) Size() int64 {
	return int64(len(e.Data))
}

type ImageStatus string

const (
	StatusUploaded   ImageStatus = "uploaded"
	StatusProcessing ImageStatus = "processing"
	StatusCompleted  ImageStatus = "completed"
	StatusFailed     ImageStatus = "failed"
	StatusDeleted    ImageStatus = "deleted"
)

type OperationType string

const (
	OpNormalize OperationType = "normalize"
)

type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatGIF  ImageFormat = "gif"
	FormatWebP ImageFormat = "webp"
	FormatBMP  ImageFormat = "bmp"
	FormatTIFF ImageFormat = "tiff"
)

// FormatFromMimeType returns the subtype of an image MIME type, e.g. "image/svg+xml" -> "svg+xml".
func FormatFromMimeType(mimeType string) ImageFormat {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok {
		return ""
	}
	if sub == "jpg" || sub == "pjpeg" {
		return FormatJPEG
	}
	return ImageFormat(sub)
}

func MimeTypeFromFormat(format ImageFormat) string {
	switch format {
	case "jpg", FormatJPEG:
		return "image/jpeg"
	case "":
		return "application/octet-stream"
	default:
		return "image/" + string(format)
	}
}

func ExtensionFromFormat(format ImageFormat) string {
	switch format {
	case FormatJPEG:
		return ".jpg"
	case FormatTIFF:
		return ".tiff"
	case "":
		return ".bin"
	default:
		return "." + strings.TrimSuffix(string(format), "+xml")
	}
}
