package triage

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Scorer fits an unsupervised outlier model on values and returns one anomaly
// score per value. More negative scores are more anomalous.
type Scorer interface {
	Score(ctx context.Context, values []float64) ([]float64, error)
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(ctx context.Context, values []float64) ([]float64, error)

func (f ScorerFunc) Score(ctx context.Context, values []float64) ([]float64, error) {
	return f(ctx, values)
}

// ForestConfig parameterises an isolation forest.
type ForestConfig struct {
	Trees         int
	MaxSamples    int
	Contamination float64
	Seed          uint64
	// Workers bounds the goroutines growing and walking trees; <= 0 means GOMAXPROCS.
	Workers int
}

// DefaultForestConfig is the production model: 100 trees over at most 256
// samples each, 5% expected contamination, seed 42.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:         100,
		MaxSamples:    256,
		Contamination: 0.05,
		Seed:          42,
	}
}

// IsolationForest scores one-dimensional values by how quickly random
// axis-aligned splits isolate them. Each tree draws from its own PCG stream
// keyed by (Seed, tree index), so the result is independent of scheduling.
type IsolationForest struct {
	cfg ForestConfig
}

// NewIsolationForest fills zero-valued fields of cfg from DefaultForestConfig.
func NewIsolationForest(cfg ForestConfig) *IsolationForest {
	def := DefaultForestConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = def.MaxSamples
	}
	if cfg.Contamination <= 0 || cfg.Contamination > 0.5 {
		cfg.Contamination = def.Contamination
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &IsolationForest{cfg: cfg}
}

// Config returns the effective configuration.
func (f *IsolationForest) Config() ForestConfig { return f.cfg }

type node struct {
	split       float64
	left, right int32
	size        int32
}

const leaf = -1

type isoTree struct {
	nodes []node
}

// Score fits a fresh forest on values and returns the decision function for
// each value: the raw isolation score shifted so the Contamination quantile
// sits at zero.
func (f *IsolationForest) Score(ctx context.Context, values []float64) ([]float64, error) {
	n := len(values)
	if n == 0 {
		return nil, nil
	}
	psi := min(f.cfg.MaxSamples, n)
	depthLimit := int(math.Ceil(math.Log2(float64(max(psi, 2)))))

	trees := make([]isoTree, f.cfg.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(f.cfg.Seed, uint64(i)))
			sample := make([]float64, psi)
			for j, idx := range rng.Perm(n)[:psi] {
				sample[j] = values[idx]
			}
			trees[i] = growTree(rng, sample, depthLimit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("grow isolation trees: %w", err)
	}

	norm := averagePathLength(psi)
	raw := make([]float64, n)
	chunk := (n + f.cfg.Workers - 1) / f.cfg.Workers
	g, gctx = errgroup.WithContext(ctx)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for j := start; j < end; j++ {
				var depth float64
				for t := range trees {
					depth += trees[t].pathLength(values[j])
				}
				mean := depth / float64(len(trees))
				raw[j] = -math.Pow(2, -mean/norm)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score isolation trees: %w", err)
	}

	offset := quantile(raw, f.cfg.Contamination)
	for j := range raw {
		raw[j] -= offset
	}
	return raw, nil
}

func growTree(rng *rand.Rand, sample []float64, depthLimit int) isoTree {
	t := isoTree{nodes: make([]node, 0, 2*len(sample))}
	t.grow(rng, sample, 0, depthLimit)
	return t
}

func (t *isoTree) grow(rng *rand.Rand, vals []float64, depth, limit int) int32 {
	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{left: leaf, right: leaf, size: int32(len(vals))})
	if depth >= limit || len(vals) <= 1 {
		return id
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		return id
	}
	split := lo + rng.Float64()*(hi-lo)

	// partition in place: [0, k) < split <= [k, len)
	k := 0
	for i, v := range vals {
		if v < split {
			vals[i], vals[k] = vals[k], vals[i]
			k++
		}
	}
	left := t.grow(rng, vals[:k], depth+1, limit)
	right := t.grow(rng, vals[k:], depth+1, limit)
	t.nodes[id].split = split
	t.nodes[id].left = left
	t.nodes[id].right = right
	return id
}

func (t *isoTree) pathLength(x float64) float64 {
	var depth float64
	cur := int32(0)
	for {
		n := t.nodes[cur]
		if n.left == leaf {
			return depth + averagePathLength(int(n.size))
		}
		depth++
		if x < n.split {
			cur = n.left
		} else {
			cur = n.right
		}
	}
}

// averagePathLength is the expected depth of an unsuccessful BST search over n
// points, used to normalise isolation depth.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

const eulerGamma = 0.5772156649015329

// quantile returns the p-quantile of values, interpolating linearly on the
// empirical CDF. values is not modified.
func quantile(values []float64, p float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}
