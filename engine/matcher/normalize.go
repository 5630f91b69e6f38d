package matcher

// featureRange is the population span of one feature
type featureRange struct {
	min float64
	max float64
}

// flat reports a zero-width range; such a feature adds nothing to any distance
func (r featureRange) flat() bool {
	return r.max == r.min
}

// normalize maps v onto [0,1] for values inside the range. Out-of-range query values are
// not clamped.
func (r featureRange) normalize(v float64) float64 {
	if r.flat() {
		return 0
	}
	return (v - r.min) / (r.max - r.min)
}

// Normalize maps v onto the population range [min, max]; a zero-width range yields 0
func Normalize(v, min, max float64) float64 {
	return featureRange{min: min, max: max}.normalize(v)
}
