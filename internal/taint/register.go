package taint

import (
	"github.com/o2lab/taint/internal/classes"
	"github.com/o2lab/taint/internal/config"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/plugin"
)

// Plugin bundles everything a driver needs to wire the taint analysis
// into a Solve call and to read results back out afterward.
type Plugin struct {
	Manager  *Manager
	Flows    *FlowSet
	Transfer *Handler
}

// Register builds the Taint Manager and every configured source, sink,
// transfer and sanitizer handler, installing them into table. Sanitizer
// filters must be registered before the solver runs (they gate structural
// edges the solver installs as soon as the first matching call edge is
// discovered), so Register is meant to be called once, before pta.Solve.
func Register(table *plugin.Table, hierarchy classes.Hierarchy, h *heap.Model, rules *config.Rules) *Plugin {
	mgr := NewManager(h)
	flows := NewFlowSet()

	transfer := NewHandler(mgr)

	RegisterSanitizers(table, hierarchy, mgr, rules.Sanitizers)
	RegisterSources(table, hierarchy, mgr, rules.Sources)
	RegisterSinks(table, hierarchy, mgr, flows, rules.Sinks)
	transfer.RegisterTransfers(table, hierarchy, rules.Transfers)

	return &Plugin{Manager: mgr, Flows: flows, Transfer: transfer}
}
