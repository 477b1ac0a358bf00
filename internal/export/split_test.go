package export_test

import (
	"testing"

	"annotation-backend/internal/export"

	"github.com/stretchr/testify/assert"
)

func TestAssignSplits(t *testing.T) {
	t.Run("EightyTwenty", func(t *testing.T) {
		splits := export.AssignSplits(10)
		train, val := 0, 0
		for i, s := range splits {
			switch s {
			case export.SplitTrain:
				train++
				assert.Less(t, i, 8, "train images occupy the leading positions")
			case export.SplitVal:
				val++
			}
		}
		assert.Equal(t, 8, train)
		assert.Equal(t, 2, val)
	})

	t.Run("FiveImages", func(t *testing.T) {
		assert.Equal(t, []export.Split{
			export.SplitTrain, export.SplitTrain, export.SplitTrain, export.SplitTrain, export.SplitVal,
		}, export.AssignSplits(5))
	})

	t.Run("SingleImageGoesToVal", func(t *testing.T) {
		// floor(0.8*1) == 0, so index 0 is past the train boundary.
		assert.Equal(t, []export.Split{export.SplitVal}, export.AssignSplits(1))
	})

	t.Run("TwoImages", func(t *testing.T) {
		assert.Equal(t, []export.Split{export.SplitTrain, export.SplitVal}, export.AssignSplits(2))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Empty(t, export.AssignSplits(0))
	})

	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, export.AssignSplits(17), export.AssignSplits(17))
	})
}
