package segmentation

import (
	"math"
	"math/rand/v2"

	"segment_server/core/domain"
)

const (
	maxClusters         = 5
	customersPerCluster = 10
)

// ClusterCount is the number of clusters used for a batch of n customers.
// A result below 1 means the batch is too small to cluster.
func ClusterCount(n int) int {
	return min(maxClusters, n/customersPerCluster)
}

type KMeansConfig struct {
	MaxIterations int
	// Tolerance is the largest centroid shift still counted as converged.
	Tolerance float64
	Seed      uint64
}

func DefaultKMeansConfig() KMeansConfig {
	return KMeansConfig{
		MaxIterations: 100,
		Tolerance:     0.01,
		Seed:          42,
	}
}

// KMeans runs Lloyd's algorithm. It holds no per-run state and can be shared.
type KMeans struct {
	cfg KMeansConfig
}

func NewKMeans(cfg KMeansConfig) *KMeans {
	def := DefaultKMeansConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	return &KMeans{cfg: cfg}
}

// Cluster partitions vectors into k clusters. ids[i] names vectors[i].
// Running out of iterations is reported through Converged, not as an error.
func (km *KMeans) Cluster(vectors [][]float64, ids []string, k int) *domain.ClusteringResult {
	n := len(vectors)
	if n == 0 || k < 1 {
		return &domain.ClusteringResult{Clusters: []*domain.Cluster{}}
	}
	k = min(k, n)

	rng := rand.New(rand.NewPCG(km.cfg.Seed, uint64(n)))
	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(n)[:k] {
		centroids[i] = cloneVector(vectors[idx])
	}

	assign := make([]int, n)
	iterations := 0
	converged := false
	for iterations < km.cfg.MaxIterations {
		iterations++
		for i, v := range vectors {
			assign[i] = nearest(centroids, v)
		}

		next := recomputeCentroids(vectors, assign, centroids)
		shift := 0.0
		for c := range centroids {
			shift = math.Max(shift, euclidean(centroids[c], next[c]))
		}
		centroids = next
		if shift <= km.cfg.Tolerance {
			converged = true
			break
		}
	}

	// Final assignment against the settled centroids.
	for i, v := range vectors {
		assign[i] = nearest(centroids, v)
	}

	clusters := make([]*domain.Cluster, k)
	for c := range clusters {
		clusters[c] = &domain.Cluster{ID: c, Centroid: centroids[c], Members: []string{}}
	}
	sq := make([]float64, k)
	for i, c := range assign {
		cl := clusters[c]
		cl.Members = append(cl.Members, ids[i])
		cl.Size++
		d := euclidean(vectors[i], centroids[c])
		sq[c] += d * d
	}
	for c, cl := range clusters {
		if cl.Size == 0 {
			continue
		}
		cl.Variance = sq[c] / float64(cl.Size)
		cl.Cohesion = 1 / (1 + cl.Variance)
	}

	return &domain.ClusteringResult{
		Clusters:     clusters,
		K:            k,
		Iterations:   iterations,
		Converged:    converged,
		QualityScore: qualityScore(clusters),
		Silhouette:   silhouette(vectors, assign, k),
	}
}

// recomputeCentroids averages each cluster's members. Empty clusters keep
// their previous centroid.
func recomputeCentroids(vectors [][]float64, assign []int, prev [][]float64) [][]float64 {
	dim := len(vectors[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := assign[i]
		counts[c]++
		for d := range v {
			sums[c][d] += v[d]
		}
	}
	next := make([][]float64, len(prev))
	for c := range next {
		if counts[c] == 0 {
			next[c] = cloneVector(prev[c])
			continue
		}
		for d := range sums[c] {
			sums[c][d] /= float64(counts[c])
		}
		next[c] = sums[c]
	}
	return next
}

// qualityScore is the mean cohesion of clusters with more than one member,
// rescaled from [0,1] to [-1,1].
func qualityScore(clusters []*domain.Cluster) float64 {
	var sum float64
	var n int
	for _, c := range clusters {
		if c.Size > 1 {
			sum += c.Cohesion
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return (sum/float64(n))*2 - 1
}

// silhouette is the mean silhouette coefficient over all points. Points in
// singleton clusters score 0.
func silhouette(vectors [][]float64, assign []int, k int) float64 {
	n := len(vectors)
	sizes := make([]int, k)
	for _, c := range assign {
		sizes[c]++
	}
	nonEmpty := 0
	for _, s := range sizes {
		if s > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return 0
	}

	var total float64
	dist := make([]float64, k)
	for i := range vectors {
		own := assign[i]
		if sizes[own] < 2 {
			continue
		}
		clear(dist)
		for j := range vectors {
			if i == j {
				continue
			}
			dist[assign[j]] += euclidean(vectors[i], vectors[j])
		}
		a := dist[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := range dist {
			if c == own || sizes[c] == 0 {
				continue
			}
			b = math.Min(b, dist[c]/float64(sizes[c]))
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n)
}

func nearest(centroids [][]float64, v []float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := euclidean(v, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
