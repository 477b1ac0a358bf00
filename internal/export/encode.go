package export

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v2"
)

type Format string

const (
	FormatYOLO Format = "yolo"
	FormatCOCO Format = "coco"
	FormatVOC  Format = "voc"
)

// Encoder converts one aggregated image's annotations into format-specific
// label file content. Image bytes pass through untouched; encoders never
// decode or resample pixel data.
type Encoder interface {
	// Encode returns the label file content for the image. Annotations that
	// cannot be represented (no box geometry, label missing from the index,
	// normalized values outside [0,1], degenerate image dimensions) are
	// skipped, never fabricated or clamped.
	Encode(image AggregatedImage, index LabelIndex) string

	// Manifest renders the dataset manifest listing the class count and the
	// sorted class names.
	Manifest(index LabelIndex) ([]byte, error)

	ManifestFilename() string

	LabelFileExt() string
}

// NewEncoder returns the encoder for the requested format. Only YOLO is
// implemented; the other formats exist in the enum for request validation.
func NewEncoder(format Format) (Encoder, error) {
	switch format {
	case FormatYOLO:
		return yoloEncoder{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

type yoloEncoder struct{}

func (yoloEncoder) Encode(image AggregatedImage, index LabelIndex) string {
	if image.Record.Width <= 0 || image.Record.Height <= 0 {
		// Geometry cannot be normalized; the image file is still archived.
		slog.Warn("skipping label generation for image with degenerate dimensions",
			"image_id", image.Record.Id, "width", image.Record.Width, "height", image.Record.Height)
		return ""
	}

	imageW := float32(image.Record.Width)
	imageH := float32(image.Record.Height)

	var b strings.Builder
	for _, annotation := range image.Annotations {
		if annotation.X == nil || annotation.Y == nil || annotation.Width == nil || annotation.Height == nil {
			// Point/polygon annotation without a box; the box format cannot
			// represent it.
			continue
		}

		class, ok := index.Lookup(annotation.Label)
		if !ok {
			slog.Warn("annotation label missing from label index",
				"image_id", image.Record.Id, "annotation_id", annotation.Id, "label", annotation.Label)
			continue
		}

		cx := (*annotation.X + *annotation.Width/2) / imageW
		cy := (*annotation.Y + *annotation.Height/2) / imageH
		w := *annotation.Width / imageW
		h := *annotation.Height / imageH

		if !inUnitInterval(cx) || !inUnitInterval(cy) || !inUnitInterval(w) || !inUnitInterval(h) {
			slog.Warn("skipping annotation with out-of-bounds normalized box",
				"image_id", image.Record.Id, "annotation_id", annotation.Id,
				"cx", cx, "cy", cy, "w", w, "h", h)
			continue
		}

		fmt.Fprintf(&b, "%d %.6f %.6f %.6f %.6f\n", class, cx, cy, w, h)
	}

	return b.String()
}

func inUnitInterval(v float32) bool {
	return v >= 0 && v <= 1
}

type yoloManifest struct {
	ClassCount int      `yaml:"nc"`
	Names      []string `yaml:"names"`
}

func (yoloEncoder) Manifest(index LabelIndex) ([]byte, error) {
	data, err := yaml.Marshal(yoloManifest{ClassCount: index.Len(), Names: index.Labels()})
	if err != nil {
		return nil, fmt.Errorf("error rendering dataset manifest: %w", err)
	}
	return data, nil
}

func (yoloEncoder) ManifestFilename() string {
	return "data.yaml"
}

func (yoloEncoder) LabelFileExt() string {
	return ".txt"
}
