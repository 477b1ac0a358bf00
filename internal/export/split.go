package export

import "math"

type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
)

// trainRatio is the fraction of the aggregated image set assigned to the
// training partition.
const trainRatio = 0.8

// AssignSplits partitions n images by position: index i is train if
// i < floor(n*trainRatio), val otherwise. Purely positional, no randomness;
// the same resolver order always yields the same assignment. With n == 1 the
// boundary is floor(0.8) == 0, so a lone image lands in val.
func AssignSplits(n int) []Split {
	boundary := int(math.Floor(float64(n) * trainRatio))

	splits := make([]Split, n)
	for i := range splits {
		if i < boundary {
			splits[i] = SplitTrain
		} else {
			splits[i] = SplitVal
		}
	}
	return splits
}
