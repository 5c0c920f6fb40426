package cs

import (
	"strings"

	"golang.org/x/tools/container/intsets"
)

// PointsToSet is the append-only monotone set of CSObj a Pointer owns
// (spec.md §3). Objects are stored as small integers in a sparse bitmap,
// per the design note in spec.md §9 ("points-to sets become small-integer
// sets (bitmaps or sorted vectors)"); the mapping between CSObj and its
// integer index is owned by the Manager that created this set.
type PointsToSet struct {
	mgr  *Manager
	bits intsets.Sparse
}

// Add inserts one object, reporting whether it was not already present.
func (p *PointsToSet) Add(o *CSObj) bool {
	return p.bits.Insert(p.mgr.indexOf(o))
}

// AddSet unions other into p in place, reporting whether p changed.
func (p *PointsToSet) AddSet(other *PointsToSet) bool {
	return p.bits.UnionWith(&other.bits)
}

// Contains reports whether o is a member.
func (p *PointsToSet) Contains(o *CSObj) bool {
	return p.bits.Has(p.mgr.indexOf(o))
}

// Len returns the number of objects.
func (p *PointsToSet) Len() int { return p.bits.Len() }

// IsEmpty reports whether the set has no objects.
func (p *PointsToSet) IsEmpty() bool { return p.bits.IsEmpty() }

// Objects returns the member CSObjs in an unspecified order.
func (p *PointsToSet) Objects() []*CSObj {
	out := make([]*CSObj, 0, p.bits.Len())
	for _, idx := range p.bits.AppendTo(nil) {
		out = append(out, p.mgr.objAt(idx))
	}
	return out
}

// Diff returns a new set containing exactly the objects in other that are
// not already in p -- i.e. `delta ⊆ (new ∖ old)` from spec.md §4.2.
func (p *PointsToSet) Diff(other *PointsToSet) *PointsToSet {
	d := p.mgr.MakePointsToSet()
	d.bits.Copy(&other.bits)
	d.bits.DifferenceWith(&p.bits)
	return d
}

// Merge adds other into p, returning only the subset of objects that were
// newly added (nil if none) -- the authoritative "merge delta into p's
// set" step of the solver's main loop (spec.md §4.2 step 2).
func (p *PointsToSet) Merge(other *PointsToSet) *PointsToSet {
	if other == nil {
		return nil
	}
	newOnes := p.Diff(other)
	if newOnes.IsEmpty() {
		return nil
	}
	p.AddSet(newOnes)
	return newOnes
}

// Filter returns a new set containing exactly the objects of p for which
// keep returns true. Used by sanitizer-style parameter filters (spec.md
// §4.5) to drop specific objects from a structural PFG edge.
func (p *PointsToSet) Filter(keep func(*CSObj) bool) *PointsToSet {
	out := p.mgr.MakePointsToSet()
	for _, o := range p.Objects() {
		if keep(o) {
			out.Add(o)
		}
	}
	return out
}

func (p *PointsToSet) String() string {
	objs := p.Objects()
	parts := make([]string, len(objs))
	for i, o := range objs {
		parts[i] = o.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
