package export_test

import (
	"sort"
	"testing"

	"annotation-backend/internal/database"
	"annotation-backend/internal/export"

	"github.com/stretchr/testify/assert"
)

func annotated(labels ...string) export.AggregatedImage {
	image := export.AggregatedImage{}
	for _, label := range labels {
		image.Annotations = append(image.Annotations, database.Annotation{Label: label})
	}
	return image
}

func TestBuildLabelIndex(t *testing.T) {
	t.Run("SortedAndDeduplicated", func(t *testing.T) {
		index := export.BuildLabelIndex([]export.AggregatedImage{
			annotated("dog", "cat"),
			annotated("cat", "zebra", "dog"),
		})

		assert.Equal(t, []string{"cat", "dog", "zebra"}, index.Labels())
		assert.True(t, sort.StringsAreSorted(index.Labels()))
		assert.Equal(t, 3, index.Len())

		for i, label := range index.Labels() {
			got, ok := index.Lookup(label)
			assert.True(t, ok)
			assert.Equal(t, i, got)
			assert.Less(t, got, index.Len())
		}
	})

	t.Run("UnknownLabel", func(t *testing.T) {
		index := export.BuildLabelIndex([]export.AggregatedImage{annotated("cat")})

		_, ok := index.Lookup("giraffe")
		assert.False(t, ok)
	})

	t.Run("EmptyLabelsIgnored", func(t *testing.T) {
		index := export.BuildLabelIndex([]export.AggregatedImage{annotated("", "")})
		assert.Equal(t, 0, index.Len())
	})

	t.Run("NoAnnotations", func(t *testing.T) {
		index := export.BuildLabelIndex([]export.AggregatedImage{{}})
		assert.Equal(t, 0, index.Len())
	})
}
