package lightgbm

import (
	"math"
)

// EarlyStopping handles early stopping logic
type EarlyStopping struct {
	Rounds          int     // Number of rounds without improvement to stop
	BestScore       float64 // Best validation score so far
	BestIteration   int     // Iteration with best score
	RoundsNoImprove int     // Current rounds without improvement
	Metric          string  // Metric to use for early stopping
	Minimize        bool    // Whether to minimize the metric
	Enabled         bool    // Whether early stopping is enabled
}

// NewEarlyStopping creates a new early stopping handler
func NewEarlyStopping(rounds int, metric string) *EarlyStopping {
	if rounds <= 0 {
		return &EarlyStopping{Enabled: false, BestIteration: -1}
	}

	minimize := true
	switch metric {
	case "r2":
		minimize = false
	}

	bestScore := math.Inf(1)
	if !minimize {
		bestScore = math.Inf(-1)
	}

	return &EarlyStopping{
		Rounds:        rounds,
		BestScore:     bestScore,
		BestIteration: -1,
		Metric:        metric,
		Minimize:      minimize,
		Enabled:       true,
	}
}

// Update updates early stopping state with new score
func (es *EarlyStopping) Update(iteration int, score float64) bool {
	if !es.Enabled {
		return false
	}

	improved := false
	if es.Minimize {
		improved = score < es.BestScore
	} else {
		improved = score > es.BestScore
	}

	if improved {
		es.BestScore = score
		es.BestIteration = iteration
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}

	// Return true if should stop
	return es.RoundsNoImprove >= es.Rounds
}

// ShouldStop returns whether training should stop
func (es *EarlyStopping) ShouldStop() bool {
	if !es.Enabled {
		return false
	}
	return es.RoundsNoImprove >= es.Rounds
}

// GetBestIteration returns the best iteration (0-based), or -1
func (es *EarlyStopping) GetBestIteration() int {
	if !es.Enabled {
		return -1
	}
	return es.BestIteration
}
