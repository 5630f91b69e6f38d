package clustering

import (
	"github.com/fintech-community/peerbench/engine/stats"
	"github.com/fintech-community/peerbench/engine/types"
)

// Vector is one point in comparison-feature space
type Vector = [types.NumFeatures]float64

// Standardizer rescales each feature to zero mean and unit population variance
type Standardizer struct {
	Means [types.NumFeatures]float64
	Stds  [types.NumFeatures]float64
}

// FitStandardizer computes per-feature means and standard deviations over points.
// A zero deviation is stored as 1 so constant features map to 0 instead of NaN.
func FitStandardizer(points []Vector) *Standardizer {
	s := &Standardizer{}
	column := make([]float64, len(points))
	for j := 0; j < types.NumFeatures; j++ {
		for i, p := range points {
			column[i] = p[j]
		}
		s.Means[j] = stats.Mean(column)
		s.Stds[j] = stats.PopulationStdDev(column)
		if s.Stds[j] == 0 {
			s.Stds[j] = 1
		}
	}
	return s
}

// Transform returns the standardised copy of points
func (s *Standardizer) Transform(points []Vector) []Vector {
	out := make([]Vector, len(points))
	for i, p := range points {
		for j := range p {
			out[i][j] = (p[j] - s.Means[j]) / s.Stds[j]
		}
	}
	return out
}

// Inverse maps a standardised point back to feature units
func (s *Standardizer) Inverse(p Vector) Vector {
	var out Vector
	for j := range p {
		out[j] = p[j]*s.Stds[j] + s.Means[j]
	}
	return out
}
