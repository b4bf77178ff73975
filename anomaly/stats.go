// Package anomaly implements per-(agent, metric) statistical anomaly
// detection: an adaptive baseline of running mean/variance (Welford) and
// EWMA, a two-sided Z-score test, and an independent rate-spike test.
package anomaly

import "math"

// DefaultAlpha is the EWMA smoothing factor
const DefaultAlpha = 0.3

// DefaultZThreshold is the Z-score magnitude above which a sample is anomalous
const DefaultZThreshold = 3.0

// DefaultRateMultiplier flags samples exceeding this multiple of the mean
const DefaultRateMultiplier = 3.0

// DefaultRateMinSamples is the minimum history before the rate check applies
const DefaultRateMinSamples = 10

// ComputeEWMA folds a new sample into an exponentially weighted moving
// average with smoothing factor alpha.
func ComputeEWMA(value, oldEWMA, alpha float64) float64 {
	return alpha*value + (1-alpha)*oldEWMA
}

// ComputeZScore returns the number of standard deviations value lies from
// mean. A zero std yields Z = 0 so a degenerate baseline can never push
// NaN or Inf into stored state.
func ComputeZScore(value, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (value - mean) / std
}

// UpdateRunningStats advances the running mean and standard deviation by one
// sample using Welford's online algorithm. The prior sum of squared
// deviations is reconstructed from the stored std and sample count, so the
// baseline row is the only state carried between samples.
func UpdateRunningStats(oldMean, oldStd, value float64, sampleCount int64) (mean, std float64) {
	n := sampleCount + 1
	delta := value - oldMean
	mean = oldMean + delta/float64(n)

	delta2 := value - mean
	m2 := oldStd*oldStd*float64(sampleCount) + delta*delta2
	var variance float64
	if n > 1 {
		variance = m2 / float64(n-1)
	}
	if variance < 0 {
		// Floating-point reconstruction can go fractionally negative
		variance = 0
	}
	std = math.Sqrt(variance)
	return mean, std
}
