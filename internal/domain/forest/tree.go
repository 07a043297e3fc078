package forest

import (
	"math"
	"math/rand"
	"sort"
)

// leaf marks a node without children.
const leaf = -1

// Node is one decision node stored in a flat slice.
// Leaves carry the class distribution of their training samples in Value.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
}

// Tree is a fitted CART tree. Nodes[0] is the root.
type Tree struct {
	Nodes []Node
}

// leafFor walks x down to its leaf.
func (t *Tree) leafFor(x []float64) *Node {
	n := &t.Nodes[0]
	for n.Feature != leaf {
		if x[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n
}

// Depth returns the longest root-to-leaf path length.
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0, 0)
}

// grower builds one tree from class-indexed labels.
type grower struct {
	x      [][]float64
	y      []int
	k      int
	params Params
	mtry   int
	rng    *rand.Rand
	nodes  []Node
	sorted []int
}

func newGrower(x [][]float64, y []int, k int, p Params, rng *rand.Rand) *grower {
	return &grower{
		x:      x,
		y:      y,
		k:      k,
		params: p,
		mtry:   p.featuresPerSplit(len(x[0])),
		rng:    rng,
		sorted: make([]int, len(y)),
	}
}

func (g *grower) grow(idx []int) Tree {
	g.build(idx, 0)
	return Tree{Nodes: g.nodes}
}

func (g *grower) build(idx []int, depth int) int {
	counts := g.counts(idx)
	id := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: leaf, Left: leaf, Right: leaf})

	if g.stop(idx, counts, depth) {
		g.nodes[id].Value = distribution(counts, len(idx))
		return id
	}
	feature, threshold, ok := g.bestSplit(idx, counts)
	if !ok {
		g.nodes[id].Value = distribution(counts, len(idx))
		return id
	}

	// Partition in place: x <= threshold goes left.
	i := 0
	for j := range idx {
		if g.x[idx[j]][feature] <= threshold {
			idx[i], idx[j] = idx[j], idx[i]
			i++
		}
	}
	left := g.build(idx[:i], depth+1)
	right := g.build(idx[i:], depth+1)
	g.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: left, Right: right}
	return id
}

func (g *grower) stop(idx []int, counts []int, depth int) bool {
	n := len(idx)
	if n < g.params.MinSamplesSplit || n < 2*g.params.MinSamplesLeaf {
		return true
	}
	if g.params.MaxDepth > 0 && depth >= g.params.MaxDepth {
		return true
	}
	for _, c := range counts {
		if c == n {
			return true
		}
	}
	return false
}

func (g *grower) counts(idx []int) []int {
	c := make([]int, g.k)
	for _, i := range idx {
		c[g.y[i]]++
	}
	return c
}

// bestSplit scans a random subset of features for the split with the lowest
// weighted Gini impurity. Constant features do not count towards mtry, and the
// scan continues past mtry until at least one valid split has been found.
func (g *grower) bestSplit(idx []int, counts []int) (int, float64, bool) {
	n := len(idx)
	sorted := g.sorted[:n]
	left := make([]int, g.k)
	right := make([]int, g.k)
	minLeaf := g.params.MinSamplesLeaf

	var (
		bestFeature   = leaf
		bestThreshold float64
		bestScore     = math.Inf(1)
		visited       int
	)
	for _, f := range g.rng.Perm(len(g.x[0])) {
		if visited >= g.mtry && bestFeature != leaf {
			break
		}
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return g.x[sorted[a]][f] < g.x[sorted[b]][f] })
		if g.x[sorted[0]][f] == g.x[sorted[n-1]][f] {
			continue
		}
		visited++

		clear(left)
		copy(right, counts)
		for i := 0; i < n-1; i++ {
			c := g.y[sorted[i]]
			left[c]++
			right[c]--
			v, next := g.x[sorted[i]][f], g.x[sorted[i+1]][f]
			if v == next {
				continue
			}
			nl, nr := i+1, n-i-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			score := float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = v + (next-v)/2
				if bestThreshold >= next {
					bestThreshold = v
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature != leaf
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func distribution(counts []int, n int) []float64 {
	d := make([]float64, len(counts))
	for i, c := range counts {
		d[i] = float64(c) / float64(n)
	}
	return d
}
