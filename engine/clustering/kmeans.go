package clustering

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
)

// Default k-means parameters
const (
	DefaultSeed          = 42
	DefaultMaxIterations = 300
	DefaultTolerance     = 1e-4
	DefaultRestarts      = 10
)

// KMeans partitions points into K groups with Lloyd's algorithm and k-means++ seeding,
// keeping the best of several seeded restarts
type KMeans struct {
	K             int
	Seed          int64
	MaxIterations int
	Tolerance     float64

	// Restarts is the number of independently seeded runs; the lowest-inertia run wins
	Restarts int

	// OnIteration, when set, is called after every assignment/update round
	OnIteration func(iteration int, inertia float64)
}

// KMeansResult holds the fitted partition
type KMeansResult struct {
	Labels     []int
	Centroids  []Vector
	Iterations int
	Inertia    float64
	Converged  bool
}

// Fit runs k-means on points. The same seed and input always give the same result.
func (km *KMeans) Fit(ctx context.Context, points []Vector) (*KMeansResult, error) {
	if km.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", km.K)
	}
	if len(points) < km.K {
		return nil, fmt.Errorf("need at least %d points to form %d clusters, got %d", km.K, km.K, len(points))
	}
	restarts := km.Restarts
	if restarts <= 0 {
		restarts = DefaultRestarts
	}

	rng := rand.New(rand.NewPCG(uint64(km.Seed), uint64(km.Seed)^0x9e3779b97f4a7c15))

	var best *KMeansResult
	for r := 0; r < restarts; r++ {
		result, err := km.fitOnce(ctx, points, rng)
		if err != nil {
			return nil, err
		}
		// strict comparison keeps the earliest run on ties
		if best == nil || result.Inertia < best.Inertia {
			best = result
		}
	}
	return best, nil
}

func (km *KMeans) fitOnce(ctx context.Context, points []Vector, rng *rand.Rand) (*KMeansResult, error) {
	maxIter := km.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	centroids := km.initCentroids(points, rng)

	// Convergence threshold is relative to the data's spread
	tol := km.Tolerance * meanVariance(points)

	labels := make([]int, len(points))
	result := &KMeansResult{}

	for iter := 1; iter <= maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inertia := assign(points, centroids, labels)
		next := recompute(points, labels, km.K)
		fillEmptyClusters(points, labels, next)

		shift := 0.0
		for c := range centroids {
			shift += squaredDistance(centroids[c], next[c])
		}
		centroids = next

		result.Iterations = iter
		result.Inertia = inertia
		if km.OnIteration != nil {
			km.OnIteration(iter, inertia)
		}

		if shift <= tol {
			result.Converged = true
			break
		}
	}

	// Final assignment against the settled centroids
	result.Inertia = assign(points, centroids, labels)
	result.Labels = labels
	result.Centroids = centroids
	return result, nil
}

// initCentroids picks K starting centroids: the first uniformly, each next one with
// probability proportional to its squared distance from the nearest chosen centroid
func (km *KMeans) initCentroids(points []Vector, rng *rand.Rand) []Vector {
	centroids := make([]Vector, 0, km.K)
	centroids = append(centroids, points[rng.IntN(len(points))])

	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = squaredDistance(p, centroids[0])
	}

	for len(centroids) < km.K {
		total := 0.0
		for _, d := range dist {
			total += d
		}

		var chosen int
		if total == 0 {
			chosen = rng.IntN(len(points))
		} else {
			target := rng.Float64() * total
			chosen = len(points) - 1
			for i, d := range dist {
				target -= d
				if target < 0 {
					chosen = i
					break
				}
			}
		}

		centroids = append(centroids, points[chosen])
		for i, p := range points {
			if d := squaredDistance(p, points[chosen]); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

// assign labels every point with its nearest centroid (ties to the lower index) and
// returns the within-cluster sum of squares
func assign(points []Vector, centroids []Vector, labels []int) float64 {
	inertia := 0.0
	for i, p := range points {
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			if d := squaredDistance(p, centroid); d < bestDist {
				best, bestDist = c, d
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

// recompute returns the mean of the points assigned to each cluster.
// Empty clusters come back with NaN coordinates for fillEmptyClusters.
func recompute(points []Vector, labels []int, k int) []Vector {
	sums := make([]Vector, k)
	counts := make([]int, k)
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for j := range p {
			sums[c][j] += p[j]
		}
	}
	for c := range sums {
		for j := range sums[c] {
			if counts[c] == 0 {
				sums[c][j] = math.NaN()
			} else {
				sums[c][j] /= float64(counts[c])
			}
		}
	}
	return sums
}

// fillEmptyClusters moves each empty centroid onto the point farthest from its own
// centroid, so every cluster keeps at least one member
func fillEmptyClusters(points []Vector, labels []int, centroids []Vector) {
	used := make(map[int]bool)
	for c := range centroids {
		if !math.IsNaN(centroids[c][0]) {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if used[i] || math.IsNaN(centroids[labels[i]][0]) {
				continue
			}
			if d := squaredDistance(p, centroids[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			far = 0
		}
		used[far] = true
		centroids[c] = points[far]
		labels[far] = c
	}
}

func squaredDistance(a, b Vector) float64 {
	sum := 0.0
	for j := range a {
		d := a[j] - b[j]
		sum += d * d
	}
	return sum
}

func meanVariance(points []Vector) float64 {
	if len(points) == 0 {
		return 0
	}
	var total float64
	for j := 0; j < len(points[0]); j++ {
		mean := 0.0
		for _, p := range points {
			mean += p[j]
		}
		mean /= float64(len(points))
		v := 0.0
		for _, p := range points {
			d := p[j] - mean
			v += d * d
		}
		total += v / float64(len(points))
	}
	return total / float64(len(points[0]))
}
