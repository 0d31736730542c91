package insight

import "math"

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev computes the sample standard deviation (n-1 divisor) around meanVal.
func stdDev(values []float64, meanVal float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSquares float64
	for _, v := range values {
		diff := v - meanVal
		sumSquares += diff * diff
	}
	variance := sumSquares / float64(len(values)-1)
	return math.Sqrt(variance)
}

// slope fits an ordinary least-squares line over index positions and returns
// its slope. Returns 0 when fewer than two points are given.
func slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	meanX := float64(n-1) / 2
	meanY := mean(values)

	var numerator float64
	var denominator float64
	for i, v := range values {
		dx := float64(i) - meanX
		numerator += dx * (v - meanY)
		denominator += dx * dx
	}

	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// autocorrelationScore scans lags in [minLag, maxLag] and returns the largest
// absolute autocorrelation found together with the lag that produced it. Each
// lag score is the mean product of the lag-shifted, mean-centered series
// normalized by the series variance, so scores stay in [-1, 1] regardless of
// scale. Lags that leave fewer than two overlapping points contribute nothing.
func autocorrelationScore(values []float64, minLag, maxLag int) (float64, int) {
	n := len(values)
	if n < 2 || minLag < 1 || maxLag < minLag {
		return 0, 0
	}

	meanVal := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - meanVal
		variance += diff * diff
	}
	variance /= float64(n)
	if variance == 0 {
		return 0, 0
	}

	bestScore := 0.0
	bestLag := 0
	for lag := minLag; lag <= maxLag; lag++ {
		if n-lag < 2 {
			break
		}
		var numerator float64
		for i := 0; i < n-lag; i++ {
			numerator += (values[i] - meanVal) * (values[i+lag] - meanVal)
		}
		score := (numerator / float64(n-lag)) / variance
		if math.Abs(score) > math.Abs(bestScore) {
			bestScore = score
			bestLag = lag
		}
	}

	return bestScore, bestLag
}

// coefficientOfVariation measures relative dispersion as stddev/mean. When the
// mean is close to zero the ratio degenerates, so the raw standard deviation
// is returned instead.
func coefficientOfVariation(values []float64) float64 {
	meanVal := mean(values)
	sd := stdDev(values, meanVal)
	if math.Abs(meanVal) < 1e-10 {
		return sd
	}
	return math.Abs(sd / meanVal)
}
