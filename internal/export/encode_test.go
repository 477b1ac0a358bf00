package export_test

import (
	"strings"
	"testing"

	"annotation-backend/internal/database"
	"annotation-backend/internal/export"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func ptr(v float32) *float32 { return &v }

func box(label string, x, y, w, h float32) database.Annotation {
	return database.Annotation{
		Id:      uuid.New(),
		Type:    database.AnnotationBoundingBox,
		X:       ptr(x),
		Y:       ptr(y),
		Width:   ptr(w),
		Height:  ptr(h),
		Label:   label,
		Source:  database.SourceManual,
	}
}

func imageWith(width, height int, annotations ...database.Annotation) export.AggregatedImage {
	return export.AggregatedImage{
		Record:      database.Image{Id: uuid.New(), Width: width, Height: height},
		Annotations: annotations,
	}
}

func yolo(t *testing.T) export.Encoder {
	t.Helper()
	encoder, err := export.NewEncoder(export.FormatYOLO)
	require.NoError(t, err)
	return encoder
}

func TestNewEncoder(t *testing.T) {
	_, err := export.NewEncoder(export.FormatCOCO)
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)

	_, err = export.NewEncoder(export.Format("pascal"))
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)
}

func TestYoloEncode(t *testing.T) {
	index := export.BuildLabelIndex([]export.AggregatedImage{annotated("cat", "dog")})

	t.Run("Normalization", func(t *testing.T) {
		// 100x200 image, box at (10,20) sized 30x40:
		// cx = (10+15)/100, cy = (20+20)/200, w = 30/100, h = 40/200
		content := yolo(t).Encode(imageWith(100, 200, box("cat", 10, 20, 30, 40)), index)
		assert.Equal(t, "0 0.250000 0.200000 0.300000 0.200000\n", content)
	})

	t.Run("ClassIndexMatchesSortedOrder", func(t *testing.T) {
		content := yolo(t).Encode(imageWith(100, 100,
			box("dog", 0, 0, 10, 10),
			box("cat", 0, 0, 10, 10),
		), index)

		lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "1 "), "dog sorts after cat")
		assert.True(t, strings.HasPrefix(lines[1], "0 "))
	})

	t.Run("FullFrameBox", func(t *testing.T) {
		content := yolo(t).Encode(imageWith(640, 480, box("cat", 0, 0, 640, 480)), index)
		assert.Equal(t, "0 0.500000 0.500000 1.000000 1.000000\n", content)
	})

	t.Run("OutOfBoundsSkippedNotClamped", func(t *testing.T) {
		content := yolo(t).Encode(imageWith(100, 100,
			box("cat", 90, 90, 50, 50), // spills past the right/bottom edges
			box("cat", -10, 0, 20, 20), // negative center
			box("dog", 10, 10, 20, 20),
		), index)

		lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		require.Len(t, lines, 1, "only the in-bounds box is emitted")
		assert.True(t, strings.HasPrefix(lines[0], "1 "))
	})

	t.Run("BoxlessAnnotationsSkipped", func(t *testing.T) {
		point := database.Annotation{Id: uuid.New(), Type: database.AnnotationPoint, Label: "cat", Source: database.SourceManual}
		content := yolo(t).Encode(imageWith(100, 100, point), index)
		assert.Empty(t, content)
	})

	t.Run("UnknownLabelSkipped", func(t *testing.T) {
		content := yolo(t).Encode(imageWith(100, 100, box("giraffe", 10, 10, 20, 20)), index)
		assert.Empty(t, content)
	})

	t.Run("ZeroWidthImageProducesNoLines", func(t *testing.T) {
		content := yolo(t).Encode(imageWith(0, 480, box("cat", 10, 10, 20, 20)), index)
		assert.Empty(t, content)
	})

	t.Run("NegativeHeightImageProducesNoLines", func(t *testing.T) {
		content := yolo(t).Encode(imageWith(640, -1, box("cat", 10, 10, 20, 20)), index)
		assert.Empty(t, content)
	})
}

func TestYoloManifest(t *testing.T) {
	index := export.BuildLabelIndex([]export.AggregatedImage{annotated("dog", "cat", "zebra")})

	encoder := yolo(t)
	assert.Equal(t, "data.yaml", encoder.ManifestFilename())
	assert.Equal(t, ".txt", encoder.LabelFileExt())

	data, err := encoder.Manifest(index)
	require.NoError(t, err)

	var manifest struct {
		ClassCount int      `yaml:"nc"`
		Names      []string `yaml:"names"`
	}
	require.NoError(t, yaml.Unmarshal(data, &manifest))
	assert.Equal(t, 3, manifest.ClassCount)
	assert.Equal(t, []string{"cat", "dog", "zebra"}, manifest.Names)
}
