package models

import "time"

// SinkVariant names the downstream system that receives metadata records
type SinkVariant string

const (
	SinkDocument SinkVariant = "document"
	SinkQueue    SinkVariant = "queue"
)

// Visibility of a stored blob
type Visibility int

const (
	VisibilityPrivate Visibility = iota
	VisibilityPublic
)

func (v Visibility) String() string {
	if v == VisibilityPublic {
		return "public"
	}
	return "private"
}

// FileUpload is the single file part of an upload request
type FileUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

// Size returns the file size in bytes
func (f *FileUpload) Size() int64 {
	return int64(len(f.Data))
}

// UploadRequest lives for the duration of one HTTP request
type UploadRequest struct {
	SourceLanguage string
	TargetLanguage string
	File           *FileUpload
}

// StoredBlob describes an object written to the blob sink
type StoredBlob struct {
	BucketName  string     `json:"bucket_name"`
	ObjectName  string     `json:"object_name"`
	PublicURL   string     `json:"public_url"`
	ContentType string     `json:"content_type"`
	Visibility  Visibility `json:"-"`
}

// MetadataRecord is the fact propagated to the metadata sink.
// ID is assigned by the sink at creation time.
type MetadataRecord struct {
	ID             string    `json:"-"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	BucketName     string    `json:"bucket_name"`
	FileName       string    `json:"file_name"`
	PublicURL      string    `json:"public_url"`
	CreatedAt      time.Time `json:"-"`
}

// UploadResponse is returned to the caller once the upload is accepted
type UploadResponse struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Message        string `json:"message"`
}
