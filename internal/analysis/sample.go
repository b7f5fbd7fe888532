package analysis

import (
	"math"
	"time"
)

// Sample is one raw accelerometer reading. Samples are ephemeral: they live
// in the window buffers until their window closes and are never persisted.
type Sample struct {
	Timestamp time.Time
	X         float64
	Y         float64
	Z         float64
}

// Magnitude returns the Euclidean norm of the three axes.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Valid reports whether the sample carries usable values. Non-finite or
// out-of-range axis readings are dropped by ingest rather than poisoning a
// window.
func (s Sample) Valid(maxAxisValue float64) bool {
	if s.Timestamp.IsZero() {
		return false
	}
	for _, v := range []float64{s.X, s.Y, s.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxAxisValue {
			return false
		}
	}
	return true
}
