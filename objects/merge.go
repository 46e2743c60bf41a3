package objects

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DefaultOverlapThreshold is the overlap score above which two candidates are
// judged to be the same physical object.
const DefaultOverlapThreshold = 0.5

// A Merger collapses candidates that represent the same physical object into
// one. Adjacent tiles overlap by their padding, so an object near a seam is
// detected by both sides; the merger keeps exactly one of them.
type Merger struct {
	threshold float64
	metric    Metric
}

// NewMerger returns a merger using the given overlap metric and threshold. A
// threshold of zero means DefaultOverlapThreshold; an empty metric means
// MetricIoMin.
func NewMerger(threshold float64, metric Metric) (*Merger, error) {
	if threshold == 0 {
		threshold = DefaultOverlapThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, errors.Errorf("overlap threshold must be within (0, 1], got %v", threshold)
	}
	if metric == "" {
		metric = MetricIoMin
	}
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	return &Merger{threshold: threshold, metric: metric}, nil
}

// Merge resolves the candidate set into objects. Two candidates of the same
// output channel whose overlap score exceeds the threshold are the same
// object; overlap groups are transitive, and each group resolves to its
// largest-area member, ties going to the earliest candidate in tile scan
// order. Candidates with no qualifying overlap pass through unchanged, and
// degenerate (empty-geometry) candidates are dropped.
//
// The result is deterministic and independent of the input order: permuting
// the same candidates yields the same object set, and merging a merge's
// output collapses nothing further.
func (mg *Merger) Merge(cands []Candidate) []Candidate {
	live := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Mask == nil || c.Mask.Area() == 0 {
			continue
		}
		live = append(live, c)
	}
	sort.Slice(live, func(i, j int) bool {
		return compareCandidates(live[i], live[j]) < 0
	})

	areas := make([]int, len(live))
	for i := range live {
		areas[i] = live[i].Mask.Area()
	}

	parent := make([]int, len(live))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri == rj {
			return
		}
		if rj < ri {
			ri, rj = rj, ri
		}
		parent[rj] = ri
	}

	// Sweep candidates in bounding-box x order so each candidate is only
	// scored against spatial neighbors.
	order := make([]int, len(live))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(x, y int) bool {
		bx, by := live[order[x]].Bounds(), live[order[y]].Bounds()
		if bx.Min.X != by.Min.X {
			return bx.Min.X < by.Min.X
		}
		return order[x] < order[y]
	})
	for x, i := range order {
		bi := live[i].Bounds()
		for _, j := range order[x+1:] {
			bj := live[j].Bounds()
			if bj.Min.X >= bi.Max.X {
				break
			}
			if live[i].Channel != live[j].Channel || !bi.Overlaps(bj) {
				continue
			}
			if mg.metric.Score(live[i].Mask, live[j].Mask) > mg.threshold {
				union(i, j)
			}
		}
	}

	// Resolve each overlap group to its largest member.
	best := make(map[int]int)
	for i := range live {
		root := find(i)
		j, ok := best[root]
		if !ok || areas[i] > areas[j] {
			best[root] = i
		}
	}
	merged := make([]Candidate, 0, len(best))
	for i := range live {
		if best[find(i)] == i {
			merged = append(merged, live[i])
		}
	}
	return merged
}

// compareCandidates is the stable total order merging resolves ties with:
// tile scan position first, then channel, label, geometry bounds, and finally
// identity, so that equal-area members of a group resolve the same way no
// matter the input order.
func compareCandidates(a, b Candidate) int {
	switch {
	case a.Tile.Row != b.Tile.Row:
		return a.Tile.Row - b.Tile.Row
	case a.Tile.Col != b.Tile.Col:
		return a.Tile.Col - b.Tile.Col
	case a.Channel != b.Channel:
		return a.Channel - b.Channel
	case a.Label != b.Label:
		return a.Label - b.Label
	}
	ab, bb := a.Bounds(), b.Bounds()
	switch {
	case ab.Min.Y != bb.Min.Y:
		return ab.Min.Y - bb.Min.Y
	case ab.Min.X != bb.Min.X:
		return ab.Min.X - bb.Min.X
	case ab.Max.Y != bb.Max.Y:
		return ab.Max.Y - bb.Max.Y
	case ab.Max.X != bb.Max.X:
		return ab.Max.X - bb.Max.X
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}
