// Package model defines the data types shared by the contact intelligence
// pipeline stages.
package model

import "math"

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Round4 rounds to four decimal places so persisted scores stay stable.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
