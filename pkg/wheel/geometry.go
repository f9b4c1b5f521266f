// Package wheel sequences a reward-wheel spin on the client: it asks the
// server for the winning segment, animates to it, then refreshes the spin
// balance. The winner is never chosen locally.
package wheel

import (
	"errors"
	"math"
)

const fullTurn = 2 * math.Pi

// DefaultPointer is the pointer angle at the top of a canvas whose y axis
// grows downward.
const DefaultPointer = 3 * math.Pi / 2

// DefaultExtraTurns is how many full turns the wheel makes before settling.
const DefaultExtraTurns = 5

var ErrUnknownSegment = errors.New("wheel: segment index out of range")

// Normalize maps an angle into [0, 2π).
func Normalize(angle float64) float64 {
	a := math.Mod(angle, fullTurn)
	if a < 0 {
		a += fullTurn
	}
	if a >= fullTurn {
		a = 0
	}
	return a
}

// SegmentAngle is the arc covered by one of n equal segments.
func SegmentAngle(n int) float64 {
	return fullTurn / float64(n)
}

// TargetRotation returns the rotation that lands the centre of segment index
// under the pointer, starting from current and adding extraTurns full turns.
// The result is always greater than current.
func TargetRotation(current float64, index, n, extraTurns int, pointer float64) (float64, error) {
	if n <= 0 || index < 0 || index >= n {
		return 0, ErrUnknownSegment
	}
	if extraTurns < 1 {
		extraTurns = 1
	}
	seg := SegmentAngle(n)
	base := Normalize(pointer - float64(index)*seg - seg/2)
	delta := Normalize(base - Normalize(current))
	return current + float64(extraTurns)*fullTurn + delta, nil
}

// EaseOutCubic is 1-(1-t)^3 clamped to [0,1].
func EaseOutCubic(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	}
	inv := 1 - t
	return 1 - inv*inv*inv
}
