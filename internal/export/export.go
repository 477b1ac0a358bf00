// Package export implements the dataset export engine: it resolves the set
// of annotated images matching a label filter, aggregates their records,
// bytes, and annotations concurrently from the relational and object stores,
// deterministically splits them into train/val partitions, encodes their
// geometry into the target format, and assembles the result into an
// in-memory zip archive.
package export

import (
	"context"
	"fmt"
	"log/slog"

	"annotation-backend/internal/database"
	"annotation-backend/internal/storage"

	"gorm.io/gorm"
)

const DefaultWorkers = 8

// Request describes one export job. Immutable once accepted. An empty Labels
// slice means "every image with at least one annotation".
type Request struct {
	Name   string
	Format Format
	Labels []string
}

type Exporter struct {
	db      *gorm.DB
	objects storage.ObjectStore
	workers int
}

// NewExporter creates an exporter reading from db and objects, with at most
// workers images aggregated in flight at once.
func NewExporter(db *gorm.DB, objects storage.ObjectStore, workers int) *Exporter {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Exporter{db: db, objects: objects, workers: workers}
}

// ExportDataset runs the full pipeline and returns the archive bytes. The
// engine holds no state across invocations; everything built here is
// discarded when the call returns. Errors are one of ErrUnsupportedFormat,
// ErrDataUnavailable, ErrNoMatchingImages, AggregationError,
// ErrNoLabelsFound, or ErrArchiveWrite so callers can distinguish
// "no matching data" from infrastructure failure.
func (e *Exporter) ExportDataset(ctx context.Context, req Request) ([]byte, error) {
	encoder, err := NewEncoder(req.Format)
	if err != nil {
		return nil, err
	}

	ids, err := database.FindDistinctAnnotatedImageIds(ctx, e.db, req.Labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, ErrNoMatchingImages
	}

	images, err := e.aggregate(ctx, ids)
	if err != nil {
		return nil, err
	}

	index := BuildLabelIndex(images)
	if index.Len() == 0 {
		return nil, ErrNoLabelsFound
	}

	splits := AssignSplits(len(images))

	items := make([]encodedItem, len(images))
	for i, image := range images {
		items[i] = encodedItem{
			image:     image,
			split:     splits[i],
			labelFile: encoder.Encode(image, index),
		}
	}

	archive, err := assembleArchive(req.Name, items, index, encoder)
	if err != nil {
		return nil, err
	}

	slog.Info("dataset export complete",
		"name", req.Name, "format", req.Format, "images", len(images),
		"classes", index.Len(), "archive_bytes", len(archive))

	return archive, nil
}
