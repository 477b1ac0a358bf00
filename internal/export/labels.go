package export

import "sort"

// LabelIndex maps every label seen across an export job's annotations to its
// class index: the label's position in the sorted, deduplicated label list.
// Built once per job after aggregation and held immutable so class ids are
// globally consistent across every image's label file.
type LabelIndex struct {
	labels  []string
	indexOf map[string]int
}

func BuildLabelIndex(images []AggregatedImage) LabelIndex {
	seen := make(map[string]struct{})
	for _, image := range images {
		for _, annotation := range image.Annotations {
			if annotation.Label == "" {
				continue
			}
			seen[annotation.Label] = struct{}{}
		}
	}

	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	indexOf := make(map[string]int, len(labels))
	for i, label := range labels {
		indexOf[label] = i
	}

	return LabelIndex{labels: labels, indexOf: indexOf}
}

// Lookup returns the class index for label, or false if the label was not
// part of the exported annotation set.
func (l LabelIndex) Lookup(label string) (int, bool) {
	i, ok := l.indexOf[label]
	return i, ok
}

func (l LabelIndex) Labels() []string {
	return l.labels
}

func (l LabelIndex) Len() int {
	return len(l.labels)
}
