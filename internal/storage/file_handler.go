package storage

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/middleware"
)

// FileIndex resolves the metadata of a file message still held by a room log.
type FileIndex interface {
	FindFile(id int64) (*domain.FilePayload, error)
}

// FileHandler serves the payloads of file messages.
type FileHandler struct {
	store Store
	files FileIndex
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(s Store, files FileIndex) *FileHandler {
	return &FileHandler{store: s, files: files}
}

// Download streams the payload of a file message. Payloads disappear together
// with their message when the room log evicts it.
func (h *FileHandler) Download(c echo.Context) error {
	ctx := c.Request().Context()
	logger := middleware.FromContext(ctx)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file id must be numeric").SetInternal(err)
	}

	meta, err := h.files.FindFile(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "File not found").SetInternal(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not look up file").SetInternal(err)
	}

	content, err := h.store.Open(ctx, FilePath(id))
	if err != nil {
		logger.Warn("File message without stored payload", slog.Int64("messageID", id), slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusNotFound, "File not found").SetInternal(err)
	}
	defer content.Close()

	contentType := meta.Type
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	header := c.Response().Header()
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set(echo.HeaderContentDisposition, contentDisposition(contentType, meta.Name))
	return c.Stream(http.StatusOK, contentType, content)
}

// contentDisposition renders raster images inline and everything else as an
// attachment, with name escaped as a filename parameter.
func contentDisposition(contentType, name string) string {
	disposition := "attachment"
	if strings.HasPrefix(contentType, "image/") && contentType != "image/svg+xml" {
		disposition = "inline"
	}
	if name == "" {
		return disposition
	}
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": name}); v != "" {
		return v
	}
	return disposition
}
