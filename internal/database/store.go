package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FindDistinctAnnotatedImageIds returns the ids of images that have at least
// one annotation. A non-empty labels slice restricts the result to images
// with at least one annotation carrying one of those labels. Ids are ordered
// by image id so repeated calls against an unchanged store return the same
// sequence; the export split depends on this.
func FindDistinctAnnotatedImageIds(ctx context.Context, db *gorm.DB, labels []string) ([]uuid.UUID, error) {
	query := db.WithContext(ctx).Model(&Annotation{}).Distinct("image_id").Order("image_id")
	if len(labels) > 0 {
		query = query.Where("label IN ?", labels)
	}

	var ids []uuid.UUID
	if err := query.Pluck("image_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("error querying annotated image ids: %w", err)
	}

	return ids, nil
}

func GetImage(ctx context.Context, db *gorm.DB, id uuid.UUID) (Image, error) {
	var image Image
	if err := db.WithContext(ctx).First(&image, "id = ?", id).Error; err != nil {
		return Image{}, fmt.Errorf("error getting image %s: %w", id, err)
	}
	return image, nil
}

func GetAnnotations(ctx context.Context, db *gorm.DB, imageId uuid.UUID) ([]Annotation, error) {
	var annotations []Annotation
	if err := db.WithContext(ctx).
		Where("image_id = ?", imageId).
		Order("created_at DESC").
		Find(&annotations).Error; err != nil {
		return nil, fmt.Errorf("error getting annotations for image %s: %w", imageId, err)
	}
	return annotations, nil
}

func GetDistinctLabels(ctx context.Context, db *gorm.DB) ([]string, error) {
	var labels []string
	if err := db.WithContext(ctx).
		Model(&Annotation{}).
		Distinct("label").
		Order("label").
		Pluck("label", &labels).Error; err != nil {
		return nil, fmt.Errorf("error querying distinct labels: %w", err)
	}
	return labels, nil
}
