package export

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrDataUnavailable indicates the annotation store could not be reached
	// while resolving which images to export.
	ErrDataUnavailable = errors.New("annotation store unavailable")

	// ErrNoMatchingImages indicates the label filter matched zero annotated
	// images. This is a not-found outcome, not a server fault.
	ErrNoMatchingImages = errors.New("no annotated images match the requested labels")

	// ErrNoLabelsFound indicates the aggregated annotations carried no
	// labels at all; an archive with zero classes is not a valid deliverable.
	ErrNoLabelsFound = errors.New("no labels found across exported annotations")

	ErrUnsupportedFormat = errors.New("unsupported dataset format")

	ErrArchiveWrite = errors.New("failed to write dataset archive")
)

// AggregationError reports that fetching the record, bytes, or annotations
// for a single image failed. The whole export is aborted when this occurs;
// partial results are discarded.
type AggregationError struct {
	ImageId uuid.UUID
	Err     error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation failed for image %s: %v", e.ImageId, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
