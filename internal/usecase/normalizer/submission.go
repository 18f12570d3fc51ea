package normalizer

import (
	"context"
	"encoding/base64"

	"image-normalizer/internal/domain"
)

// Preview is a display-ready handle on the original upload, available before normalization
// finishes.
type Preview struct {
	MimeType string
	Data     []byte
}

func (p Preview) DataURL() string {
	return "data:" + p.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Submission pairs an immediate preview with a normalization running in the background.
// Abandoning a submission does not stop the in-flight work; its result is simply dropped.
type Submission struct {
	preview Preview
	done    chan struct{}
	result  *domain.EncodedImage
	err     error
}

func (n *Normalizer) Submit(ctx context.Context, blob domain.SourceBlob, opts domain.NormalizeOptions) *Submission {
	s := &Submission{
		preview: Preview{MimeType: blob.MimeType, Data: blob.Data},
		done:    make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		s.result, s.err = n.Normalize(ctx, blob, opts)
	}()

	return s
}

func (s *Submission) Preview() Preview {
	return s.preview
}

func (s *Submission) Done() <-chan struct{} {
	return s.done
}

func (s *Submission) Wait(ctx context.Context) (*domain.EncodedImage, error) {
	select {
	case <-s.done:
		return s.result, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
