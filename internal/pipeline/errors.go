package pipeline

import (
	"fmt"

	"github.com/maneesh/langdrop/internal/models"
)

// NoFileMessage is the body returned when the file part is missing
const NoFileMessage = "No file uploaded."

// ValidationError rejects a request before any sink is touched
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// BlobWriteError is a transport or backend failure while writing the blob
type BlobWriteError struct {
	ObjectName string
	Err        error
}

func (e *BlobWriteError) Error() string {
	return fmt.Sprintf("blob write %q failed: %v", e.ObjectName, e.Err)
}

func (e *BlobWriteError) Unwrap() error {
	return e.Err
}

// MetadataPropagationError is logged and counted, never returned to callers
type MetadataPropagationError struct {
	Variant  models.SinkVariant
	FileName string
	Err      error
}

func (e *MetadataPropagationError) Error() string {
	return fmt.Sprintf("%s propagation for %q failed: %v", e.Variant, e.FileName, e.Err)
}

func (e *MetadataPropagationError) Unwrap() error {
	return e.Err
}

// MakePublicError leaves the blob private; it is swallowed after logging
type MakePublicError struct {
	ObjectName string
	Err        error
}

func (e *MakePublicError) Error() string {
	return fmt.Sprintf("make public %q failed: %v", e.ObjectName, e.Err)
}

func (e *MakePublicError) Unwrap() error {
	return e.Err
}
