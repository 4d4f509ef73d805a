package api

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/internal/storage"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartOverhead is the room left for multipart boundaries and headers
// on top of upload.max_size.
const multipartOverhead = 1 << 20

var contentTypes = map[string]string{
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// UploadFile stores the caller's gradebook and the classrooms parsed from it.
// A user holds at most one file.
func (h *Handler) UploadFile(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)
	maxSize := h.cfg.Upload.MaxSize

	if c.Request.ContentLength > maxSize+multipartOverhead {
		h.respondError(c, fmt.Errorf("request of %d bytes: %w", c.Request.ContentLength, errors.ErrFileTooLarge))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			h.respondError(c, errors.ErrFileTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "A multipart field named 'file' is required"})
		return
	}

	switch {
	case header.Size == 0:
		h.respondError(c, fmt.Errorf("%s: %w", header.Filename, errors.ErrEmptyFile))
		return
	case header.Size > maxSize:
		h.respondError(c, fmt.Errorf("%s is larger than %d bytes: %w", header.Filename, maxSize, errors.ErrFileTooLarge))
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !h.allowedExtension(ext) {
		h.respondError(c, fmt.Errorf("extension %q is not accepted: %w", ext, errors.ErrInvalidFileFormat))
		return
	}

	if _, err := h.repo.GetFileByUser(ctx, userID); err == nil {
		h.respondError(c, errors.ErrFileAlreadyExists)
		return
	} else if !stderrors.Is(err, errors.ErrNotFound) {
		h.respondError(c, err)
		return
	}

	data, err := readFormFile(header)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.strategy.Parse(ctx, data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.strategy.Validate(ctx, result); err != nil {
		h.respondError(c, err)
		return
	}

	file := &model.UploadedFile{
		ID:             uuid.NewString(),
		UserID:         userID,
		FileName:       filepath.Base(header.Filename),
		SheetCount:     result.SheetCount,
		ClassroomCount: len(result.Classrooms),
	}
	file.StorageKey = storage.UploadKey(userID, file.ID, ext)

	log := h.log.With().Str("user_id", userID).Str("file_id", file.ID).Logger()

	if err := h.store.Upload(ctx, file.StorageKey, bytes.NewReader(data)); err != nil {
		h.respondError(c, fmt.Errorf("failed to store workbook: %w", err))
		return
	}
	if err := h.repo.CreateFile(ctx, file, result.Classrooms); err != nil {
		if derr := h.store.Delete(ctx, file.StorageKey); derr != nil {
			log.Error().Err(derr).Str("key", file.StorageKey).Msg("Failed to remove orphaned upload")
		}
		h.respondError(c, err)
		return
	}

	skipped := make([]model.SkippedSheetResponse, len(result.Skipped))
	for i, s := range result.Skipped {
		skipped[i] = model.SkippedSheetResponse{Index: s.Index, SheetName: s.SheetName, Reason: s.Reason.Error()}
	}

	log.Info().
		Int("sheets", result.SheetCount).
		Int("classrooms", len(result.Classrooms)).
		Int("skipped", len(skipped)).
		Msg("Workbook uploaded")

	c.JSON(http.StatusCreated, model.FileUploadResponse{
		Message:       "File uploaded and parsed successfully",
		FileID:        file.ID,
		NumSheets:     result.SheetCount,
		NumDataSheets: result.DataSheetCount,
		NumClassrooms: len(result.Classrooms),
		Skipped:       skipped,
	})
}

func (h *Handler) GetFile(c *gin.Context) {
	file, err := h.repo.GetFileByUser(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

// DeleteFile removes the caller's file. Classrooms and students go with it.
func (h *Handler) DeleteFile(c *gin.Context) {
	ctx := c.Request.Context()

	file, err := h.repo.GetFileByUser(ctx, currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.repo.DeleteFile(ctx, file.ID); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.store.Delete(ctx, file.StorageKey); err != nil {
		h.log.Error().Err(err).Str("file_id", file.ID).Msg("Failed to delete stored workbook")
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "File deleted successfully",
		"file_id": file.ID,
	})
}

// DownloadFile streams the stored workbook, including grades written back
// since the upload.
func (h *Handler) DownloadFile(c *gin.Context) {
	ctx := c.Request.Context()

	file, err := h.repo.GetFileByUser(ctx, currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	rc, err := h.store.Download(ctx, file.StorageKey)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer rc.Close()

	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(file.StorageKey))]
	if !ok {
		contentType = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName})
	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

func (h *Handler) allowedExtension(ext string) bool {
	for _, allowed := range h.cfg.Upload.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}
