package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.Equal(t, 5.0, Mean(values))
	assert.Equal(t, 2.0, PopulationStdDev(values))
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, PopulationStdDev(nil))
}

func TestQuantile(t *testing.T) {
	values := []float64{40, 10, 30, 20}

	assert.Equal(t, 10.0, Quantile(values, 0))
	assert.Equal(t, 40.0, Quantile(values, 1))
	assert.Equal(t, 25.0, Median(values))
	assert.Equal(t, 17.5, Quantile(values, 0.25))
	assert.Equal(t, []float64{10, 25, 40}, Quantiles(values, 0, 0.5, 1))
	// input must not be reordered
	assert.Equal(t, []float64{40, 10, 30, 20}, values)
}

func TestMinMax(t *testing.T) {
	min, max := MinMax([]float64{3, -1, 8, 2})
	assert.Equal(t, -1.0, min)
	assert.Equal(t, 8.0, max)
}

func TestRankPercentiles(t *testing.T) {
	got := RankPercentiles([]float64{10, 20, 20, 40})
	assert.Equal(t, []float64{25, 75, 75, 100}, got)
}

func TestPercentBelow(t *testing.T) {
	values := []float64{600, 650, 700, 750}

	assert.Equal(t, 75.0, PercentBelow(values, 725))
	assert.Equal(t, 0.0, PercentBelow(values, 600))
	assert.Equal(t, 75.0, PercentBelow(values, 750))
	assert.Equal(t, 0.0, PercentBelow(nil, 1))
}

func TestPercentChange(t *testing.T) {
	assert.InDelta(t, 7.4074, PercentChange(675, 725), 0.0001)
	assert.Equal(t, 0.0, PercentChange(0, 725))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 7.41, Round2(7.407407))
	assert.Equal(t, 2.35, Round2(2.345))
	assert.Equal(t, -2.35, Round2(-2.345))
	assert.Equal(t, 100.0, Round2(100))
}
