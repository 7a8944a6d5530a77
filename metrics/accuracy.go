package metrics

import (
	"errors"
	"fmt"
)

// ErrNoSamples is returned when accuracy is requested over zero predictions
var ErrNoSamples = errors.New("no samples to score")

// Accuracy returns the fraction of predictions equal to the true value
func Accuracy[T comparable](yTrue, yPred []T) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("length mismatch: %d true values, %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, ErrNoSamples
	}

	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}
