package tile

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/paulmach/orb"
)

// coverEpsilon widens a loaded box before it is merged into the coverage so
// that neighbouring tiles leave no slivers between them.
const coverEpsilon = 1e-7

// ErrLevel is returned when a box is registered at a level the selector
// does not have.
var ErrLevel = errors.New("tile: level out of range")

// Box is a registered tile extent.
type Box struct {
	ID     uint32
	Level  uint8
	Time   float64
	Bound  orb.Bound
	Cookie any
}

func (b *Box) area() float64 {
	return (b.Bound.Max[0] - b.Bound.Min[0]) * (b.Bound.Max[1] - b.Bound.Min[1])
}

// Selector picks the tiles that cover a query rectangle, preferring the most
// detailed level available.
//
// A Selector is not safe for concurrent use.
type Selector struct {
	levels [][]*Box
	dirty  bool
}

// NewSelector returns a selector with levels 0 through levels-1.
func NewSelector(levels int) *Selector {
	return &Selector{levels: make([][]*Box, max(levels, 0))}
}

// Levels returns the number of levels.
func (s *Selector) Levels() int {
	return len(s.levels)
}

// Register adds b at b.Level.
func (s *Selector) Register(b Box) (*Box, error) {
	if int(b.Level) >= len(s.levels) {
		return nil, fmt.Errorf("%w: %d of %d", ErrLevel, b.Level, len(s.levels))
	}
	box := &b
	s.levels[b.Level] = append(s.levels[b.Level], box)
	s.dirty = true
	return box, nil
}

func (s *Selector) sort() {
	for _, level := range s.levels {
		slices.SortStableFunc(level, func(a, b *Box) int {
			if c := cmp.Compare(b.Time, a.Time); c != 0 {
				return c
			}
			return cmp.Compare(a.area(), b.area())
		})
	}
	s.dirty = false
}

// Take returns the boxes needed to draw query at maxLevel.
//
// Levels are walked from maxLevel down to 0. Within a level newer boxes come
// first, then smaller ones. A box that intersects the query and is not
// already covered is selected. Only boxes for which loaded reports true add
// to the coverage, so an unloaded box is returned alongside the coarser boxes
// that stand in for it. The walk stops as soon as the query is covered. The
// result is ordered coarse to fine. A nil loaded treats every box as loaded.
//
// Take returns nil when maxLevel is outside the selector's levels or nothing
// intersects the query.
func (s *Selector) Take(maxLevel int, query orb.Bound, loaded func(*Box) bool) []*Box {
	if s.dirty {
		s.sort()
	}
	if maxLevel < 0 || maxLevel >= len(s.levels) {
		return nil
	}

	var (
		out   []*Box
		cover coverage
	)
walk:
	for i := maxLevel; i >= 0; i-- {
		for _, box := range s.levels[i] {
			if !intersects(query, box.Bound) || cover.contains(box.Bound) {
				continue
			}
			out = append(out, box)
			if loaded != nil && !loaded(box) {
				continue
			}
			cover.add(expand(box.Bound, coverEpsilon))
			if cover.contains(query) {
				break walk
			}
		}
	}
	slices.Reverse(out)
	return out
}

func intersects(a, b orb.Bound) bool {
	return a.Min[0] < b.Max[0] && a.Max[0] > b.Min[0] &&
		a.Min[1] < b.Max[1] && a.Max[1] > b.Min[1]
}

func expand(b orb.Bound, e float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Min[0] - e, b.Min[1] - e},
		Max: orb.Point{b.Max[0] + e, b.Max[1] + e},
	}
}

// coverage is a union of pairwise disjoint rectangles.
type coverage []orb.Bound

// contains reports whether b lies inside the union. Degenerate rectangles
// have no area and are always contained.
func (c coverage) contains(b orb.Bound) bool {
	return len(c.subtractFrom(b)) == 0
}

// add merges b into the union, keeping the rectangles disjoint.
func (c *coverage) add(b orb.Bound) {
	*c = append(*c, c.subtractFrom(b)...)
}

// subtractFrom returns the parts of b not covered by c.
func (c coverage) subtractFrom(b orb.Bound) []orb.Bound {
	rest := []orb.Bound{}
	if hasArea(b) {
		rest = append(rest, b)
	}
	for _, r := range c {
		if len(rest) == 0 {
			break
		}
		var next []orb.Bound
		for _, p := range rest {
			next = append(next, subtract(p, r)...)
		}
		rest = next
	}
	return rest
}

// subtract returns a minus b as up to four disjoint rectangles.
func subtract(a, b orb.Bound) []orb.Bound {
	if !intersects(a, b) {
		return []orb.Bound{a}
	}
	out := make([]orb.Bound, 0, 4)
	add := func(minX, minY, maxX, maxY float64) {
		r := orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
		if hasArea(r) {
			out = append(out, r)
		}
	}
	add(a.Min[0], a.Min[1], b.Min[0], a.Max[1])
	add(b.Max[0], a.Min[1], a.Max[0], a.Max[1])
	x0, x1 := max(a.Min[0], b.Min[0]), min(a.Max[0], b.Max[0])
	add(x0, a.Min[1], x1, b.Min[1])
	add(x0, b.Max[1], x1, a.Max[1])
	return out
}

func hasArea(b orb.Bound) bool {
	return b.Max[0] > b.Min[0] && b.Max[1] > b.Min[1]
}
