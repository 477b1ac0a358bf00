package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Image struct {
	Id               uuid.UUID
	Filename         string
	OriginalFilename string
	S3Key            string
	FileSize         int64
	Width            int
	Height           int
	Format           string

	ClassificationLabel string `json:"ClassificationLabel,omitempty"`

	CreatedAt time.Time
}

type UploadImageResponse struct {
	Id        uuid.UUID
	S3Key     string
	CreatedAt time.Time
}

type PresignedUrlRequest struct {
	Filename string
}

type PresignedUrlResponse struct {
	Url   string
	S3Key string
}

// RegisterImageRequest records an image that was already uploaded to the
// object store through a presigned url.
type RegisterImageRequest struct {
	S3Key            string
	OriginalFilename string
	FileSize         int64
	Width            int
	Height           int
	Format           string
}

type RegisterImageResponse struct {
	Id uuid.UUID
}

type ListImagesRequest struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

type ListImagesResponse struct {
	Images []Image
	Total  int64
}

type SearchImagesRequest struct {
	Query string
	TopK  int
}

type SearchResult struct {
	Id         uuid.UUID
	Similarity float32
}

type SearchImagesResponse struct {
	Results []SearchResult
}

type Annotation struct {
	Id      uuid.UUID
	ImageId uuid.UUID
	Type    string

	X      *float32 `json:"X,omitempty"`
	Y      *float32 `json:"Y,omitempty"`
	Width  *float32 `json:"Width,omitempty"`
	Height *float32 `json:"Height,omitempty"`

	Points json.RawMessage `json:"Points,omitempty"`

	Label      string
	Source     string
	Confidence *float32 `json:"Confidence,omitempty"`

	CreatedAt time.Time
}

type CreateAnnotationRequest struct {
	ImageId uuid.UUID
	Type    string

	X      *float32
	Y      *float32
	Width  *float32
	Height *float32

	Points json.RawMessage

	Label      string
	Source     string
	Confidence *float32
}

type CreateAnnotationResponse struct {
	Id uuid.UUID
}

type UpdateAnnotationRequest struct {
	X      *float32
	Y      *float32
	Width  *float32
	Height *float32

	Label      *string
	Confidence *float32
}

type ListAnnotationsResponse struct {
	Annotations []Annotation
	Total       int
}

type LabelsResponse struct {
	Labels []string
}

type ExportRequest struct {
	Name   string
	Format string
	Labels []string
}
