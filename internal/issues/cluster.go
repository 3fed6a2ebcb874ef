// Package issues implements the Issue Engine (C5, §4.5): clustering
// analyzed mentions into emergent issues, matching clusters to existing
// issues, driving the lifecycle state machine, and scoring priority.
package issues

import (
	"math"

	"github.com/clariona/mediawatch/internal/types"
)

// Member is the minimal per-mention input clustering needs.
type Member struct {
	MentionID int64
	Embedding []float32
}

// Cluster is an accepted group of members sharing a normalized centroid.
type Cluster struct {
	Members  []Member
	Centroid []float32
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// ClusterMembers performs single-linkage agglomeration over members using
// similarityThreshold as the merge criterion (§4.5.1), then drops any
// resulting group with fewer than minSize members. Deterministic: members
// are processed in slice order and ties always favor the earliest-seen group.
func ClusterMembers(members []Member, similarityThreshold float64, minSize int) []Cluster {
	n := len(members)
	if n == 0 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if cosineSimilarity(members[i].Embedding, members[j].Embedding) >= similarityThreshold {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	var roots []int
	for root := range groups {
		roots = append(roots, root)
	}
	for i := 1; i < len(roots); i++ {
		for j := i; j > 0 && roots[j] < roots[j-1]; j-- {
			roots[j], roots[j-1] = roots[j-1], roots[j]
		}
	}

	var clusters []Cluster
	for _, root := range roots {
		idxs := groups[root]
		if len(idxs) < minSize {
			continue
		}
		groupMembers := make([]Member, len(idxs))
		for k, idx := range idxs {
			groupMembers[k] = members[idx]
		}
		clusters = append(clusters, Cluster{
			Members:  groupMembers,
			Centroid: centroidOf(groupMembers),
		})
	}
	return clusters
}

// centroidOf returns the normalized mean embedding of members.
func centroidOf(members []Member) []float32 {
	if len(members) == 0 {
		return nil
	}
	dims := len(members[0].Embedding)
	sum := make([]float64, dims)
	for _, m := range members {
		for i, v := range m.Embedding {
			if i < dims {
				sum[i] += float64(v)
			}
		}
	}
	n := float64(len(members))
	var mag float64
	mean := make([]float64, dims)
	for i := range sum {
		mean[i] = sum[i] / n
		mag += mean[i] * mean[i]
	}
	mag = math.Sqrt(mag)
	out := make([]float32, dims)
	for i := range mean {
		if mag > 0 {
			out[i] = float32(mean[i] / mag)
		}
	}
	return out
}

// WeightedMeanCentroid recomputes a merged centroid when a new cluster
// joins an existing issue (§4.5.2): the existing centroid weighted by its
// current mention_count against the new cluster's centroid weighted by its
// size, renormalized to unit length.
func WeightedMeanCentroid(existing []float32, existingCount int, incoming []float32, incomingCount int) []float32 {
	if len(existing) == 0 {
		return incoming
	}
	if len(incoming) == 0 {
		return existing
	}
	total := float64(existingCount + incomingCount)
	if total == 0 {
		return existing
	}
	wExisting := float64(existingCount) / total
	wIncoming := float64(incomingCount) / total

	dims := len(existing)
	mean := make([]float64, dims)
	var mag float64
	for i := 0; i < dims; i++ {
		v := wExisting*float64(existing[i]) + wIncoming*float64(incoming[i])
		mean[i] = v
		mag += v * v
	}
	mag = math.Sqrt(mag)
	out := make([]float32, dims)
	for i := range mean {
		if mag > 0 {
			out[i] = float32(mean[i] / mag)
		}
	}
	return out
}

// BestMatch finds the existing issue centroid most similar to clusterCentroid
// among candidates, returning its index and the similarity. ok is false if
// candidates is empty or nothing reaches matchThreshold.
func BestMatch(clusterCentroid []float32, candidates [][]float32, matchThreshold float64) (idx int, similarity float64, ok bool) {
	best := -1
	bestSim := -2.0
	for i, c := range candidates {
		sim := cosineSimilarity(clusterCentroid, c)
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	if best == -1 || bestSim < matchThreshold {
		return 0, 0, false
	}
	return best, bestSim, true
}

// matchableStates are the issue states eligible to absorb a new cluster (§4.5.2).
var matchableStates = map[types.IssueState]bool{
	types.IssueActive:      true,
	types.IssueEscalated:   true,
	types.IssueStabilizing: true,
	types.IssueEmerging:    true,
}

// Matchable reports whether an issue in state s can absorb a matched cluster.
func Matchable(s types.IssueState) bool {
	return matchableStates[s]
}
