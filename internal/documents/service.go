package documents

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"medscan-backend/internal/shared/metrics"
	"medscan-backend/internal/shared/storage/object"
	"medscan-backend/internal/shared/telemetry"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyFile    = errors.New("empty file")
)

// Upload is the stored-blob receipt returned to the caller. The blob name
// is the handle for the later analysis call.
type Upload struct {
	BlobName  string `json:"blob_name"`
	FileName  string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
}

// Service stores uploaded document files.
type Service struct {
	Store object.ObjectStore
}

// Upload persists one document payload and returns its blob receipt.
// An empty payload is rejected before anything is written.
func (s *Service) Upload(ctx context.Context, fileName string, r io.Reader) (Upload, error) {
	if strings.Contains(fileName, "..") {
		return Upload{}, fmt.Errorf("%w: invalid file name", ErrInvalidInput)
	}

	buffered := bufio.NewReader(r)
	if _, err := buffered.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return Upload{}, fmt.Errorf("%w: uploaded file is empty", ErrEmptyFile)
		}
		return Upload{}, err
	}

	blobName, size, mimeType, err := s.Store.Save(ctx, fileName, buffered)
	if err != nil {
		return Upload{}, err
	}

	metrics.IncUpload()
	telemetry.Info("documents.uploaded", map[string]any{
		"blob_name":  blobName,
		"file_name":  fileName,
		"size_bytes": size,
		"mime_type":  mimeType,
	})

	return Upload{
		BlobName:  blobName,
		FileName:  fileName,
		SizeBytes: size,
		MimeType:  mimeType,
	}, nil
}
