package api

import (
	"encoding/json"

	"annotation-backend/internal/database"
	"annotation-backend/pkg/api"
)

func convertImage(img database.Image) api.Image {
	return api.Image{
		Id:                  img.Id,
		Filename:            img.Filename,
		OriginalFilename:    img.OriginalFilename,
		S3Key:               img.S3Key,
		FileSize:            img.FileSize,
		Width:               img.Width,
		Height:              img.Height,
		Format:              img.Format,
		ClassificationLabel: img.ClassificationLabel.String,
		CreatedAt:           img.CreatedAt,
	}
}

func convertImages(imgs []database.Image) []api.Image {
	images := make([]api.Image, 0, len(imgs))
	for _, img := range imgs {
		images = append(images, convertImage(img))
	}
	return images
}

func convertAnnotation(a database.Annotation) api.Annotation {
	return api.Annotation{
		Id:         a.Id,
		ImageId:    a.ImageId,
		Type:       a.Type,
		X:          a.X,
		Y:          a.Y,
		Width:      a.Width,
		Height:     a.Height,
		Points:     json.RawMessage(a.Points),
		Label:      a.Label,
		Source:     a.Source,
		Confidence: a.Confidence,
		CreatedAt:  a.CreatedAt,
	}
}

func convertAnnotations(as []database.Annotation) []api.Annotation {
	annotations := make([]api.Annotation, 0, len(as))
	for _, a := range as {
		annotations = append(annotations, convertAnnotation(a))
	}
	return annotations
}
