package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AnnotationBoundingBox string = "bounding_box"
	AnnotationPolygon     string = "polygon"
	AnnotationPoint       string = "point"
)

const (
	SourceManual string = "manual"
	SourceAi     string = "ai"
)

type Image struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId uuid.UUID `gorm:"type:uuid"`

	Filename         string `gorm:"not null"`
	OriginalFilename string `gorm:"not null"`

	S3Bucket string `gorm:"not null"`
	S3Key    string `gorm:"not null"`

	FileSize int64
	Width    int
	Height   int
	Format   string `gorm:"size:64"`

	ClassificationLabel sql.NullString

	// Embedding produced by the vectorizer service, if it was reachable
	// at upload time. [f32,…] stored as a json array.
	Vector datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Annotations []Annotation `gorm:"foreignKey:ImageId;constraint:OnDelete:CASCADE"`
}

type Annotation struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ImageId uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId  uuid.UUID `gorm:"type:uuid"`

	Type string `gorm:"size:20;not null"`

	// Box geometry in pixel units, top-left origin. Only set for
	// bounding_box annotations.
	X      *float32
	Y      *float32
	Width  *float32
	Height *float32

	// Polygon/point geometry, passed through opaquely.
	Points datatypes.JSON `gorm:"type:jsonb"`

	Label      string `gorm:"not null;index"`
	Source     string `gorm:"size:20;not null"`
	Confidence *float32

	CreatedAt time.Time
	UpdatedAt time.Time
}
