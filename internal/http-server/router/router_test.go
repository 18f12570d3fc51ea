package router

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"image-normalizer/internal/domain"
	imageHandler "image-normalizer/internal/http-server/handler/image"
	"image-normalizer/internal/http-server/handler/image/dto"
	repoImage "image-normalizer/internal/repository/image"
	image_uc "image-normalizer/internal/usecase/image"
	"image-normalizer/internal/usecase/normalizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

type fakeUsecase struct {
	uploaded   *domain.SourceBlob
	normalized *domain.NormalizeOptions
	normalizer *normalizer.Normalizer
	payloadErr error
	deleted    []string
}

func (f *fakeUsecase) UploadImage(_ context.Context, blob domain.SourceBlob) (*domain.Image, string, error) {
	if !blob.IsImage() {
		return nil, "", normalizer.ErrNotAnImage
	}
	f.uploaded = &blob
	return &domain.Image{
		ID:               "img-1",
		OriginalFilename: blob.Filename,
		OriginalSize:     blob.Size(),
		Status:           domain.StatusProcessing,
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, "http://minio.local/preview", nil
}

func (f *fakeUsecase) Normalize(ctx context.Context, blob domain.SourceBlob, opts domain.NormalizeOptions) (*domain.EncodedImage, error) {
	f.normalized = &opts
	return f.normalizer.Normalize(ctx, blob, opts)
}

func (f *fakeUsecase) GetImage(_ context.Context, id, variant string) (io.ReadCloser, string, error) {
	if id != "img-1" {
		return nil, "", repoImage.ErrImageNotFound
	}
	if variant == image_uc.VariantNormalized {
		return io.NopCloser(strings.NewReader("jpeg")), "image/jpeg", nil
	}
	return io.NopCloser(strings.NewReader("png")), "image/png", nil
}

func (f *fakeUsecase) GetStatus(_ context.Context, id string) (domain.ImageStatus, error) {
	if id != "img-1" {
		return "", repoImage.ErrImageNotFound
	}
	return domain.StatusProcessing, nil
}

func (f *fakeUsecase) GetPayload(_ context.Context, _ string) (*domain.EncodedImage, error) {
	if f.payloadErr != nil {
		return nil, f.payloadErr
	}
	return &domain.EncodedImage{Data: []byte("jpeg"), Format: domain.FormatJPEG, MimeType: "image/jpeg"}, nil
}

func (f *fakeUsecase) DeleteImage(_ context.Context, id string) error {
	if id != "img-1" {
		return repoImage.ErrImageNotFound
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func newServer(t *testing.T) (*fakeUsecase, http.Handler) {
	t.Helper()
	logger := &zlog.Zerolog{}
	uc := &fakeUsecase{normalizer: normalizer.NewNormalizer(nil, domain.DefaultNormalizeOptions(), logger)}
	h := &Handler{ImageHandler: imageHandler.NewImageHandler(uc, 1<<20, logger)}
	return uc, SetupRouter(h)
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8((x ^ y) * 31), A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestUploadImage(t *testing.T) {
	uc, srv := newServer(t)
	data := pngBytes(t, 4, 4)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/images/upload", "avatar.png", "image/png", data))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp dto.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "img-1", resp.ID)
	assert.Equal(t, "avatar.png", resp.Filename)
	assert.Equal(t, "processing", resp.Status)
	assert.Equal(t, int64(len(data)), resp.Size)
	assert.Equal(t, "http://minio.local/preview", resp.PreviewURL)

	require.NotNil(t, uc.uploaded)
	assert.Equal(t, data, uc.uploaded.Data)
}

func TestUploadSniffsGenericContentType(t *testing.T) {
	uc, srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/images/upload", "blob", "application/octet-stream", pngBytes(t, 2, 2)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "image/png", uc.uploaded.MimeType)
}

func TestUploadRejectsNonImage(t *testing.T) {
	_, srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/images/upload", "notes.txt", "text/plain", []byte("hello")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please upload an image file", decodeError(t, rec).Message)
}

func TestUploadRequiresFile(t *testing.T) {
	_, srv := newServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/images/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File is required", decodeError(t, rec).Message)
}

func TestNormalizeReturnsPayload(t *testing.T) {
	uc, srv := newServer(t)
	data := pngBytes(t, 64, 32)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/images/normalize?max_dimension=16&max_bytes=100", "big.png", "image/png", data))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, uc.normalized)
	assert.Equal(t, 16, uc.normalized.MaxDimension)
	assert.Equal(t, int64(100), uc.normalized.MaxBytes)

	var resp dto.NormalizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "jpeg", resp.FileType)
	assert.Equal(t, 16, resp.Width)
	assert.Equal(t, 8, resp.Height)
	assert.False(t, resp.PassedThrough)

	raw, err := base64.StdEncoding.DecodeString(resp.Base64String)
	require.NoError(t, err)
	assert.Equal(t, resp.Size, int64(len(raw)))
	assert.Equal(t, len(resp.Base64String), resp.TransportSize)
}

func TestNormalizePassThroughKeepsSubtype(t *testing.T) {
	_, srv := newServer(t)
	data := pngBytes(t, 4, 4)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/images/normalize", "small.png", "image/png", data))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.NormalizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.PassedThrough)
	assert.Equal(t, "png", resp.FileType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), resp.Base64String)
}

func TestNormalizeValidatesQuery(t *testing.T) {
	_, srv := newServer(t)

	for _, query := range []string{"max_dimension=abc", "max_dimension=-5", "max_bytes=0x10", "max_dimension=99999"} {
		t.Run(query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, multipartRequest(t, "/api/images/normalize?"+query, "a.png", "image/png", pngBytes(t, 2, 2)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestNormalizeUndecodableOverBudget(t *testing.T) {
	_, srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/images/normalize?max_bytes=4", "broken.jpg", "image/jpeg", []byte("not really a jpeg")))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetImage(t *testing.T) {
	_, srv := newServer(t)

	tests := []struct {
		target      string
		code        int
		contentType string
		body        string
	}{
		{target: "/api/images/img-1", code: http.StatusOK, contentType: "image/png", body: "png"},
		{target: "/api/images/img-1?variant=normalized", code: http.StatusOK, contentType: "image/jpeg", body: "jpeg"},
		{target: "/api/images/img-1?variant=thumbnail", code: http.StatusBadRequest},
		{target: "/api/images/missing", code: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))

			require.Equal(t, tc.code, rec.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, tc.contentType, rec.Header().Get("Content-Type"))
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	_, srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images/img-1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, dto.StatusResponse{ID: "img-1", Status: "processing"}, resp)
}

func TestGetPayload(t *testing.T) {
	uc, srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images/img-1/payload", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.PayloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, dto.PayloadResponse{Base64String: "anBlZw==", FileType: "jpeg"}, resp)

	uc.payloadErr = fmt.Errorf("wrapped: %w", image_uc.ErrNotReady)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images/img-1/payload", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteImage(t *testing.T) {
	uc, srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/images/img-1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"img-1"}, uc.deleted)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/images/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	_, srv := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNormalizeRejectsOversizedCanvas(t *testing.T) {
	_, srv := newServer(t)

	var header bytes.Buffer
	header.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	chunk := []byte{'I', 'H', 'D', 'R'}
	chunk = binary.BigEndian.AppendUint32(chunk, 12000)
	chunk = binary.BigEndian.AppendUint32(chunk, 12000)
	chunk = append(chunk, 8, 0, 0, 0, 0)
	header.Write(binary.BigEndian.AppendUint32(nil, uint32(len(chunk)-4)))
	header.Write(chunk)
	header.Write(binary.BigEndian.AppendUint32(nil, crc32.ChecksumIEEE(chunk)))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, multipartRequest(t, "/api/images/normalize?max_bytes=8", "huge.png", "image/png", header.Bytes()))

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Image dimensions are too large", decodeError(t, rec).Message)
}
