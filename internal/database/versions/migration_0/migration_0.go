package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Snapshot of the schema at the time of this migration. These types are
// intentionally frozen; later schema changes get their own migration.

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

	CreatedAt time.Time
	UpdatedAt time.Time

	Annotations []Annotation `gorm:"foreignKey:ImageId;constraint:OnDelete:CASCADE"`
}

type Annotation struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ImageId uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId  uuid.UUID `gorm:"type:uuid"`

	Type string `gorm:"size:20;not null"`

	X      *float32
	Y      *float32
	Width  *float32
	Height *float32

	Points datatypes.JSON `gorm:"type:jsonb"`

	Label      string `gorm:"not null;index"`
	Source     string `gorm:"size:20;not null"`
	Confidence *float32

	CreatedAt time.Time
	UpdatedAt time.Time
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Image{}, &Annotation{}); err != nil {
		return fmt.Errorf("error creating images and annotations tables: %w", err)
	}

	return nil
}
