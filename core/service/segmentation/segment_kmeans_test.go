package segmentation

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"
)

// twoGroups returns n points near the origin and n points near (1000, ..., 1000).
func twoGroups(n int) ([][]float64, []string) {
	rng := rand.New(rand.NewPCG(42, 0))
	var vectors [][]float64
	var ids []string
	for g, base := range []float64{0, 1000} {
		for i := 0; i < n; i++ {
			v := make([]float64, 8)
			for d := range v {
				v[d] = base + (rng.Float64()*0.2 - 0.1)
			}
			vectors = append(vectors, v)
			ids = append(ids, fmt.Sprintf("g%d-%d", g, i))
		}
	}
	return vectors, ids
}

func TestKMeans_SeparatesTwoGroups(t *testing.T) {
	vectors, ids := twoGroups(20)
	result := NewKMeans(DefaultKMeansConfig()).Cluster(vectors, ids, 2)

	if len(result.Clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(result.Clusters))
	}
	if !result.Converged {
		t.Errorf("expected convergence within %d iterations", DefaultKMeansConfig().MaxIterations)
	}
	for _, c := range result.Clusters {
		if c.Size != 20 {
			t.Errorf("cluster %d size = %d, want 20", c.ID, c.Size)
		}
		if c.Cohesion <= 0.9 {
			t.Errorf("cluster %d cohesion = %v, want > 0.9", c.ID, c.Cohesion)
		}
		prefix := c.Members[0][:2]
		for _, m := range c.Members {
			if !strings.HasPrefix(m, prefix) {
				t.Errorf("cluster %d mixes groups: %v", c.ID, c.Members)
				break
			}
		}
	}
	if result.QualityScore <= 0.8 {
		t.Errorf("QualityScore = %v, want > 0.8", result.QualityScore)
	}
	if result.Silhouette <= 0.9 {
		t.Errorf("Silhouette = %v, want > 0.9", result.Silhouette)
	}
}

func TestKMeans_DeterministicForSeed(t *testing.T) {
	vectors, ids := twoGroups(15)
	km := NewKMeans(KMeansConfig{Seed: 7})

	a := km.Cluster(vectors, ids, 3)
	b := km.Cluster(vectors, ids, 3)
	for i := range a.Clusters {
		if !reflect.DeepEqual(a.Clusters[i].Members, b.Clusters[i].Members) {
			t.Fatalf("cluster %d differs between runs", i)
		}
	}
}

func TestKMeans_EmptyClustersTolerated(t *testing.T) {
	vectors := make([][]float64, 12)
	ids := make([]string, 12)
	for i := range vectors {
		vectors[i] = []float64{1, 2, 3}
		ids[i] = fmt.Sprintf("c%d", i)
	}

	result := NewKMeans(DefaultKMeansConfig()).Cluster(vectors, ids, 3)

	total := 0
	for _, c := range result.Clusters {
		total += c.Size
		if c.Size == 0 && c.Cohesion != 0 {
			t.Errorf("empty cluster %d has cohesion %v", c.ID, c.Cohesion)
		}
		if len(c.Centroid) != 3 {
			t.Errorf("cluster %d lost its centroid", c.ID)
		}
	}
	if total != 12 {
		t.Errorf("assigned %d members, want 12", total)
	}
	if result.Clusters[0].Size != 12 {
		t.Errorf("identical points should share the first cluster, got size %d", result.Clusters[0].Size)
	}
	if result.Silhouette != 0 {
		t.Errorf("Silhouette = %v, want 0 with a single populated cluster", result.Silhouette)
	}
}

func TestKMeans_IterationCap(t *testing.T) {
	vectors, ids := twoGroups(10)
	result := NewKMeans(KMeansConfig{MaxIterations: 1, Seed: 1}).Cluster(vectors, ids, 4)
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
}

func TestKMeans_EmptyInput(t *testing.T) {
	result := NewKMeans(DefaultKMeansConfig()).Cluster(nil, nil, 3)
	if len(result.Clusters) != 0 {
		t.Errorf("got %d clusters for empty input", len(result.Clusters))
	}
}

func TestClusterCount(t *testing.T) {
	tests := map[int]int{0: 0, 9: 0, 10: 1, 35: 3, 51: 5, 1000: 5}
	for n, want := range tests {
		if got := ClusterCount(n); got != want {
			t.Errorf("ClusterCount(%d) = %d, want %d", n, got, want)
		}
	}
}
