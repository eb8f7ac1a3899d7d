package util

import (
	"math"
	"testing"
)

// TestNewStats tests the summary statistics
func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	if math.Abs(s.Mean-5) > 1e-9 {
		t.Errorf("Expected mean 5, got %f", s.Mean)
	}
	if math.Abs(s.StdDeviation-2) > 1e-9 {
		t.Errorf("Expected std deviation 2, got %f", s.StdDeviation)
	}
	if s.Min != 2 || s.Max != 9 {
		t.Errorf("Expected min 2 and max 9, got %f/%f", s.Min, s.Max)
	}

	if empty := NewStats(nil); empty != (Stats{}) {
		t.Errorf("Expected zero stats for no values, got %+v", empty)
	}
}

// TestNewDistributionStats tests the distribution quality rating
func TestNewDistributionStats(t *testing.T) {
	even := NewDistributionStats([]int{10, 10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("Even distribution should have quality 1, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]int{40, 0, 0, 0})
	if skewed.DistributionQuality >= 0.5 {
		t.Errorf("Skewed distribution should have a low quality, got %f", skewed.DistributionQuality)
	}

	if empty := NewDistributionStats([]int{0, 0}); empty.CoefficientOfVariation != 0 {
		t.Errorf("Empty partitions should have no variation, got %f", empty.CoefficientOfVariation)
	}
}
