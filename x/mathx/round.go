package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// RoundHalfUp rounds to the nearest integer with ties going towards +Inf
// (2.5 -> 3, -2.5 -> -2). math.Round sends ties away from zero instead.
func RoundHalfUp[T constraints.Float](v T) int {
	return int(math.Floor(float64(v) + 0.5))
}
