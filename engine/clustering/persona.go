package clustering

import (
	"fmt"

	"github.com/fintech-community/peerbench/engine/types"
)

// personaRule scores a standardised centroid; the highest-scoring unclaimed cluster takes
// the persona at the rule's position in types.Personas
type personaRule func(c Vector) float64

// Rules in types.Personas order. The last persona takes whichever cluster remains.
var personaRules = [types.ClusterCount - 1]personaRule{
	// Debt Heavy
	func(c Vector) float64 { return c[1] },
	// Active High Spender
	func(c Vector) float64 { return c[3] + c[0] },
	// Premium Low Risk
	func(c Vector) float64 { return c[2] },
	// Affluent Professional
	func(c Vector) float64 { return c[4] },
}

// PersonaOrder maps raw k-means cluster indices to persona-ordered cluster ids, so that
// after renumbering cluster i always carries types.Personas[i]. Raw indices from k-means
// carry no meaning across runs; this ordering depends only on centroid characteristics.
func PersonaOrder(centroids []Vector) ([]int, error) {
	if len(centroids) != types.ClusterCount {
		return nil, fmt.Errorf("persona labelling needs %d centroids, got %d", types.ClusterCount, len(centroids))
	}

	mapping := make([]int, len(centroids))
	claimed := make([]bool, len(centroids))

	for target, rule := range personaRules {
		best := -1
		var bestScore float64
		for raw, c := range centroids {
			if claimed[raw] {
				continue
			}
			if score := rule(c); best < 0 || score > bestScore {
				best, bestScore = raw, score
			}
		}
		claimed[best] = true
		mapping[best] = target
	}

	for raw := range centroids {
		if !claimed[raw] {
			mapping[raw] = types.ClusterCount - 1
		}
	}
	return mapping, nil
}
