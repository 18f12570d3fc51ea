package processor

import (
	"context"
	"errors"
	"io"
	"testing"

	"image-normalizer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

type stubNormalizer struct {
	result  *domain.EncodedImage
	err     error
	gotBlob domain.SourceBlob
	gotOpts domain.NormalizeOptions
}

func (s *stubNormalizer) Normalize(_ context.Context, blob domain.SourceBlob, opts domain.NormalizeOptions) (*domain.EncodedImage, error) {
	s.gotBlob = blob
	s.gotOpts = opts
	return s.result, s.err
}

type memoryFiles struct {
	objects     map[string][]byte
	contentType map[string]string
	err         error
}

func newMemoryFiles() *memoryFiles {
	return &memoryFiles{objects: map[string][]byte{}, contentType: map[string]string{}}
}

func (m *memoryFiles) SaveProcessed(_ context.Context, path string, data io.Reader, _ int64, contentType string) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	m.contentType[path] = contentType
	return nil
}

func testTask() *domain.ProcessingTask {
	return &domain.ProcessingTask{
		ID:           "task-1",
		ImageID:      "img-1",
		OriginalPath: "original/img-1.png",
		MimeType:     "image/png",
		Filename:     "photo.png",
		Options:      &domain.NormalizeOptions{MaxDimension: 640},
	}
}

func TestProcessStoresNormalizedImage(t *testing.T) {
	norm := &stubNormalizer{result: &domain.EncodedImage{
		Data:       []byte("jpeg-bytes"),
		Format:     domain.FormatJPEG,
		MimeType:   "image/jpeg",
		Width:      640,
		Height:     480,
		Quality:    0.81,
		Iterations: 2,
	}}
	files := newMemoryFiles()
	p := NewImageProcessor(norm, files, &zlog.Zerolog{})

	result, err := p.Process(context.Background(), testTask(), []byte("original"))
	require.NoError(t, err)

	assert.Equal(t, []byte("original"), norm.gotBlob.Data)
	assert.Equal(t, "image/png", norm.gotBlob.MimeType)
	assert.Equal(t, 640, norm.gotOpts.MaxDimension)

	assert.Equal(t, domain.StatusCompleted, result.Status)
	assert.Equal(t, "normalized/img-1/normalized.jpg", result.NormalizedPath)
	assert.Equal(t, int64(len("jpeg-bytes")), result.Size)
	assert.Equal(t, 2, result.Iterations)
	assert.Empty(t, result.Error)

	assert.Equal(t, []byte("jpeg-bytes"), files.objects[result.NormalizedPath])
	assert.Equal(t, "image/jpeg", files.contentType[result.NormalizedPath])

	row := ProcessedImageFromResult(result)
	assert.Equal(t, domain.OpNormalize, row.Operation)
	assert.Equal(t, "image/jpeg", row.MimeType)
	assert.Equal(t, 480, row.Height)
}

func TestProcessKeepsPassThroughFormat(t *testing.T) {
	norm := &stubNormalizer{result: &domain.EncodedImage{
		Data:          []byte("png"),
		Format:        domain.FormatPNG,
		MimeType:      "image/png",
		PassedThrough: true,
	}}
	task := testTask()
	task.Options = nil
	p := NewImageProcessor(norm, newMemoryFiles(), &zlog.Zerolog{})

	result, err := p.Process(context.Background(), task, []byte("png"))
	require.NoError(t, err)

	assert.Equal(t, domain.NormalizeOptions{}, norm.gotOpts)
	assert.True(t, result.PassedThrough)
	assert.Equal(t, "normalized/img-1/normalized.png", result.NormalizedPath)
}

func TestProcessFailures(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name     string
		normErr  error
		storeErr error
	}{
		{name: "normalizer error", normErr: errBoom},
		{name: "storage error", storeErr: errBoom},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			norm := &stubNormalizer{err: tc.normErr}
			if tc.normErr == nil {
				norm.result = &domain.EncodedImage{Data: []byte("x"), Format: domain.FormatJPEG, MimeType: "image/jpeg"}
			}
			files := newMemoryFiles()
			files.err = tc.storeErr
			p := NewImageProcessor(norm, files, &zlog.Zerolog{})

			result, err := p.Process(context.Background(), testTask(), []byte("data"))
			require.ErrorIs(t, err, errBoom)
			require.NotNil(t, result)
			assert.Equal(t, domain.StatusFailed, result.Status)
			assert.Contains(t, result.Error, "boom")
			assert.Empty(t, result.NormalizedPath)
		})
	}
}
