package util

import (
	"math"
)

// --------------------------------------------------------------------------
// Summary statistics
// --------------------------------------------------------------------------

// Stats summarises a series of values
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, population standard deviation, minimum and maximum
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{Min: values[0], Max: values[0], MinMaxRatio: 1}

	// Welford's online algorithm for mean and variance
	var m2 float64
	for i, v := range values {
		delta := v - s.Mean
		s.Mean += delta / float64(i+1)
		m2 += delta * (v - s.Mean)

		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.StdDeviation = math.Sqrt(m2 / float64(len(values)))

	if s.Max > 0 {
		s.MinMaxRatio = s.Min / s.Max
	}
	return s
}

// --------------------------------------------------------------------------
// Shard distribution
// --------------------------------------------------------------------------

// DistributionStats rates how evenly entries spread across partitions
type DistributionStats struct {
	Stats
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	DistributionQuality    float64 `json:"distribution_quality"` // 1 = perfectly even, 0 = everything in one partition
}

// NewDistributionStats computes quality metrics for the given partition sizes.
// Lower variation and a higher min/max ratio indicate a better distribution.
func NewDistributionStats(sizes []int) DistributionStats {
	values := make([]float64, len(sizes))
	for i, size := range sizes {
		values[i] = float64(size)
	}
	stats := NewStats(values)

	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:                  stats,
		CoefficientOfVariation: cv,
		DistributionQuality:    (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}
