package payload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"
	"github.com/maneesh/langdrop/internal/models"
)

// ErrTooLarge is returned when a file exceeds the configured limit
var ErrTooLarge = errors.New("file exceeds upload limit")

const fallbackContentType = "application/octet-stream"

// Reader buffers uploaded file parts in memory
type Reader struct {
	limit int64
}

// NewReader creates a reader accepting files up to limit bytes
func NewReader(limit int64) *Reader {
	return &Reader{limit: limit}
}

// Limit returns the maximum file size in bytes
func (r *Reader) Limit() int64 {
	return r.limit
}

// ReadAll reads at most limit bytes from src. One extra byte is requested so
// an oversized stream is detected instead of silently truncated.
func (r *Reader) ReadAll(src io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(src, r.limit+1))
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	if int64(len(data)) > r.limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// ReadPart opens and buffers one multipart file part
func (r *Reader) ReadPart(header *multipart.FileHeader) (*models.FileUpload, error) {
	if header.Size > r.limit {
		return nil, ErrTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file part: %w", err)
	}
	defer file.Close()

	data, err := r.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &models.FileUpload{
		Name:     header.Filename,
		MimeType: ContentType(header.Header.Get("Content-Type"), data),
		Data:     data,
	}, nil
}

// ContentType returns the declared part type, sniffing the bytes only when
// the client sent none or an unparsable one
func ContentType(declared string, data []byte) string {
	if declared != "" {
		if _, _, err := mime.ParseMediaType(declared); err == nil {
			return declared
		}
	}
	if len(data) == 0 {
		return fallbackContentType
	}
	return mimetype.Detect(data).String()
}
