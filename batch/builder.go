// Package batch groups objects into size-bounded batches.
package batch

import (
	"sort"

	"github.com/getpup/pupsourcing-replay"
)

// Sort returns a copy of objects ordered by ascending size.
// Objects of equal size keep their listing order.
func Sort(objects []replay.ObjectRef) []replay.ObjectRef {
	sorted := make([]replay.ObjectRef, len(objects))
	copy(sorted, objects)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Size < sorted[j].Size
	})

	return sorted
}

// Build groups objects into batches whose total size does not exceed maxBytes.
//
// Objects are taken in ascending size order. Each batch starts at the next
// unconsumed object and keeps accumulating the following objects while the
// running total stays within maxBytes. The first object that would overflow
// ends the batch and becomes the first object of the next one; nothing is
// skipped. An object larger than maxBytes on its own forms a single-object batch.
//
// Every input object appears in exactly one batch. Empty input yields no batches.
func Build(objects []replay.ObjectRef, maxBytes int64) []replay.Batch {
	sorted := Sort(objects)
	batches := make([]replay.Batch, 0)

	i := 0
	for i < len(sorted) {
		start := i
		total := sorted[i].Size
		i++

		for i < len(sorted) && total+sorted[i].Size <= maxBytes {
			total += sorted[i].Size
			i++
		}

		members := make([]replay.ObjectRef, i-start)
		copy(members, sorted[start:i])
		batches = append(batches, replay.Batch{Objects: members})
	}

	return batches
}
