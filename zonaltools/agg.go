package zonaltools

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean is the unweighted mean of the non-NaN samples, NaN when there are none.
func Mean(inData ...float64) float64 {
	valid := dropNaN(inData)
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

// Count returns the number of non-NaN samples.
func Count(inData ...float64) float64 {
	return float64(len(dropNaN(inData)))
}

func dropNaN(inData []float64) []float64 {
	valid := make([]float64, 0, len(inData))
	for _, v := range inData {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	return valid
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
