package taint

import "github.com/o2lab/taint/internal/cs"

// SourceNode resolves sp to the OFG var-node the taint object was first
// written to, for TFG construction (spec.md §4.6 step 1, "OFG var-node of
// the source variable of every taint object").
func SourceNode(mgr *cs.Manager, sp SourcePoint) (cs.Pointer, bool) {
	switch s := sp.(type) {
	case CallSourcePoint:
		actual := s.Site.Invoke.Actual(s.Index)
		if actual == nil {
			return nil, false
		}
		return mgr.GetCSVar(s.Site.Ctx, actual), true
	case ParamSourcePoint:
		formal := formalVar(s.Method.Method, s.Index)
		if formal == nil {
			return nil, false
		}
		return mgr.GetCSVar(s.Method.Ctx, formal), true
	default:
		return nil, false
	}
}

// SinkNode resolves sp to the OFG var-node of the sink call's indexed
// actual (spec.md §4.6 step 2).
func SinkNode(mgr *cs.Manager, sp SinkPoint) (cs.Pointer, bool) {
	actual := sp.Site.Invoke.Actual(sp.Index)
	if actual == nil {
		return nil, false
	}
	return mgr.GetCSVar(sp.Site.Ctx, actual), true
}
