package taint

import "sync"

// FlowSet is the set of TaintFlows witnessed so far (spec.md §4.5,
// "set semantics: duplicates suppressed").
type FlowSet struct {
	mu    sync.Mutex
	seen  map[TaintFlow]bool
	flows []TaintFlow
}

func NewFlowSet() *FlowSet {
	return &FlowSet{seen: make(map[TaintFlow]bool)}
}

// Add records f, reporting whether it was newly observed.
func (s *FlowSet) Add(f TaintFlow) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[f] {
		return false
	}
	s.seen[f] = true
	s.flows = append(s.flows, f)
	return true
}

// Flows returns every distinct TaintFlow observed so far, in observation
// order.
func (s *FlowSet) Flows() []TaintFlow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TaintFlow(nil), s.flows...)
}
