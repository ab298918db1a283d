package service

import (
	"fmt"
	"math"

	"itemstore/internal/item/model"
)

// NextID returns one more than the largest id in items, or 1 for an empty
// collection. It keeps no state of its own, so edits made to the persisted
// document between operations are always taken into account. When the
// largest id is already math.MaxInt64 there is no next id and
// model.ErrIDExhausted is returned.
func NextID(items model.Collection) (int64, error) {
	var highest int64
	for _, r := range items {
		if id, ok := r.ID(); ok && id > highest {
			highest = id
		}
	}
	if highest == math.MaxInt64 {
		return 0, fmt.Errorf("%w: largest id is %d", model.ErrIDExhausted, highest)
	}
	return highest + 1, nil
}
