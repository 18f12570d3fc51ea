package image

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"image-normalizer/internal/domain"
	"image-normalizer/internal/http-server/handler/image/dto"
	repoImage "image-normalizer/internal/repository/image"
	image_uc "image-normalizer/internal/usecase/image"
	"image-normalizer/internal/usecase/normalizer"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/zlog"
)

const (
	maxMemory = 32 << 20

	msgNotAnImage = "Please upload an image file"
)

type ImageHandler struct {
	usecase       imageUsecase
	validate      *validator.Validate
	maxUploadSize int64
	logger        *zlog.Zerolog
}

func NewImageHandler(usecase imageUsecase, maxUploadSize int64, logger *zlog.Zerolog) *ImageHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = domain.DefaultMaxUploadSize
	}
	return &ImageHandler{
		usecase:       usecase,
		validate:      validator.New(),
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

func (h *ImageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	blob, err := h.readUpload(w, r)
	if err != nil {
		h.handleReadError(w, err)
		return
	}

	image, previewURL, err := h.usecase.UploadImage(r.Context(), blob)
	if err != nil {
		h.handleUploadError(w, err, blob.Filename)
		return
	}

	response := dto.UploadResponse{
		ID:         image.ID,
		Filename:   image.OriginalFilename,
		Status:     string(image.Status),
		Size:       image.OriginalSize,
		PreviewURL: previewURL,
		CreatedAt:  image.CreatedAt,
	}

	h.logger.Info().
		Str("image_id", image.ID).
		Str("filename", image.OriginalFilename).
		Str("size", humanize.IBytes(uint64(image.OriginalSize))).
		Str("status", string(image.Status)).
		Msg("Image uploaded successfully")

	h.respondJSON(w, http.StatusAccepted, response)
}

// Normalize runs the pipeline synchronously and answers with the profile-update payload.
func (h *ImageHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseNormalizeQuery(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid normalization parameters", err)
		return
	}

	blob, err := h.readUpload(w, r)
	if err != nil {
		h.handleReadError(w, err)
		return
	}

	opts := domain.NormalizeOptions{
		MaxDimension: query.MaxDimension,
		MaxBytes:     query.MaxBytes,
	}

	encoded, err := h.usecase.Normalize(r.Context(), blob, opts)
	if err != nil {
		h.handleUploadError(w, err, blob.Filename)
		return
	}

	response := dto.NormalizeResponse{
		PayloadResponse: payload(encoded),
		Width:           encoded.Width,
		Height:          encoded.Height,
		Size:            encoded.Size(),
		TransportSize:   encoded.TransportSize,
		Quality:         encoded.Quality,
		Iterations:      encoded.Iterations,
		PassedThrough:   encoded.PassedThrough,
	}

	h.logger.Info().
		Str("filename", blob.Filename).
		Str("input_size", humanize.IBytes(uint64(blob.Size()))).
		Str("output_size", humanize.IBytes(uint64(encoded.Size()))).
		Bool("passed_through", encoded.PassedThrough).
		Msg("Image normalized")

	h.respondJSON(w, http.StatusOK, response)
}

func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	req := dto.GetImageRequest{
		ID:      chi.URLParam(r, "id"),
		Variant: r.URL.Query().Get("variant"),
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid image request", err)
		return
	}

	reader, contentType, err := h.usecase.GetImage(r.Context(), req.ID, req.Variant)
	if err != nil {
		h.handleGetImageError(w, err, req.ID)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", downloadFilename(req.ID, req.Variant, contentType)))
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error().
			Err(err).
			Str("image_id", req.ID).
			Str("variant", req.Variant).
			Msg("Failed to stream image")
	}
}

func (h *ImageHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	req := dto.StatusRequest{
		ID: chi.URLParam(r, "id"),
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Image ID is required", nil)
		return
	}

	status, err := h.usecase.GetStatus(r.Context(), req.ID)
	if err != nil {
		h.handleGetImageError(w, err, req.ID)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.StatusResponse{
		ID:     req.ID,
		Status: string(status),
	})
}

func (h *ImageHandler) GetPayload(w http.ResponseWriter, r *http.Request) {
	req := dto.StatusRequest{
		ID: chi.URLParam(r, "id"),
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Image ID is required", nil)
		return
	}

	encoded, err := h.usecase.GetPayload(r.Context(), req.ID)
	if err != nil {
		h.handleGetImageError(w, err, req.ID)
		return
	}

	h.respondJSON(w, http.StatusOK, payload(encoded))
}

func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	req := dto.DeleteRequest{
		ID: chi.URLParam(r, "id"),
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Image ID is required", nil)
		return
	}

	if err := h.usecase.DeleteImage(r.Context(), req.ID); err != nil {
		h.handleGetImageError(w, err, req.ID)
		return
	}

	h.logger.Info().Str("image_id", req.ID).Msg("Image deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImageHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ImageHandler) readUpload(w http.ResponseWriter, r *http.Request) (domain.SourceBlob, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.SourceBlob{}, ErrFileTooLarge
		}
		return domain.SourceBlob{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.SourceBlob{}, ErrFileRequired
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.SourceBlob{}, fmt.Errorf("failed to read file: %w", err)
	}

	return domain.SourceBlob{
		Data:     data,
		MimeType: declaredType(header.Header.Get("Content-Type"), data),
		Filename: header.Filename,
	}, nil
}

// declaredType trusts the client's Content-Type unless it is missing or generic, in which case
// the type is sniffed from the bytes.
func declaredType(contentType string, data []byte) string {
	contentType = strings.TrimSpace(contentType)
	if contentType != "" && !strings.HasPrefix(contentType, "application/octet-stream") {
		return contentType
	}
	return mimetype.Detect(data).String()
}

func (h *ImageHandler) parseNormalizeQuery(r *http.Request) (dto.NormalizeQuery, error) {
	var query dto.NormalizeQuery
	values := r.URL.Query()

	if raw := values.Get("max_dimension"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return query, fmt.Errorf("%w: max_dimension: %w", ErrInvalidParams, err)
		}
		query.MaxDimension = v
	}

	if raw := values.Get("max_bytes"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return query, fmt.Errorf("%w: max_bytes: %w", ErrInvalidParams, err)
		}
		query.MaxBytes = v
	}

	if err := h.validate.Struct(query); err != nil {
		return query, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	return query, nil
}

func payload(encoded *domain.EncodedImage) dto.PayloadResponse {
	fileType := encoded.Format
	if fileType == "" {
		fileType = domain.FormatFromMimeType(encoded.MimeType)
	}
	return dto.PayloadResponse{
		Base64String: base64.StdEncoding.EncodeToString(encoded.Data),
		FileType:     string(fileType),
	}
}

func (h *ImageHandler) handleReadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		h.respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File is too large (max %s)", humanize.IBytes(uint64(h.maxUploadSize))), nil)
	case errors.Is(err, ErrFileRequired):
		h.respondError(w, http.StatusBadRequest, "File is required", nil)
	case errors.Is(err, ErrInvalidParams):
		h.logger.Warn().Err(err).Msg("Failed to parse multipart form")
		h.respondError(w, http.StatusBadRequest, "Invalid request format", nil)
	default:
		h.logger.Error().Err(err).Msg("Failed to read upload")
		h.respondError(w, http.StatusInternalServerError, "Failed to read file", err)
	}
}

func (h *ImageHandler) handleUploadError(w http.ResponseWriter, err error, filename string) {
	switch {
	case errors.Is(err, normalizer.ErrNotAnImage):
		h.logger.Warn().Str("filename", filename).Msg("Rejected non-image upload")
		h.respondError(w, http.StatusBadRequest, msgNotAnImage, nil)
	case errors.Is(err, normalizer.ErrInvalidOptions):
		h.respondError(w, http.StatusBadRequest, "Invalid normalization parameters", err)
	case errors.Is(err, normalizer.ErrTooManyPixels):
		h.logger.Warn().Err(err).Str("filename", filename).Msg("Rejected oversized image")
		h.respondError(w, http.StatusRequestEntityTooLarge, "Image dimensions are too large", nil)
	case errors.Is(err, normalizer.ErrDecode):
		h.logger.Warn().Err(err).Str("filename", filename).Msg("Failed to decode image")
		h.respondError(w, http.StatusUnprocessableEntity, "Failed to decode image", nil)
	case errors.Is(err, normalizer.ErrEncode):
		h.logger.Error().Err(err).Str("filename", filename).Msg("Failed to encode image")
		h.respondError(w, http.StatusInternalServerError, "Failed to encode image", err)
	default:
		h.logger.Error().Err(err).Str("filename", filename).Msg("Upload failed")
		h.respondError(w, http.StatusInternalServerError, "Failed to upload file", err)
	}
}

func (h *ImageHandler) handleGetImageError(w http.ResponseWriter, err error, imageID string) {
	switch {
	case errors.Is(err, repoImage.ErrImageNotFound):
		h.logger.Info().Str("image_id", imageID).Msg("Image not found")
		h.respondError(w, http.StatusNotFound, "Image not found", nil)
	case errors.Is(err, repoImage.ErrProcessedImageNotFound), errors.Is(err, repoImage.ErrFileNotFound):
		h.logger.Info().Str("image_id", imageID).Msg("Image file not found")
		h.respondError(w, http.StatusNotFound, "Image file not found", nil)
	case errors.Is(err, image_uc.ErrNotReady):
		h.respondError(w, http.StatusConflict, "Image is still being processed", nil)
	case errors.Is(err, image_uc.ErrInvalidVariant):
		h.respondError(w, http.StatusBadRequest, "Unknown image variant", nil)
	default:
		h.logger.Error().Err(err).Str("image_id", imageID).Msg("Image request failed")
		h.respondError(w, http.StatusInternalServerError, "Failed to process request", err)
	}
}

func downloadFilename(id, variant, contentType string) string {
	if variant == "" {
		variant = image_uc.VariantOriginal
	}
	return fmt.Sprintf("%s_%s%s", id, variant, domain.ExtensionFromFormat(domain.FormatFromMimeType(contentType)))
}

func (h *ImageHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ImageHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	response := dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}

	if err != nil {
		response.Details = err.Error()
	}

	h.respondJSON(w, status, response)
}
