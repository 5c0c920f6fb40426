package taint

import (
	log "github.com/sirupsen/logrus"

	"github.com/o2lab/taint/internal/classes"
	"github.com/o2lab/taint/internal/config"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/plugin"
)

// RegisterSanitizers installs the hook-filter implementation of
// ParamSanitizer (spec.md §4.5, design note §9): a filter on the
// structural PFG edge feeding the sanitized formal that drops taint
// objects outright, so the sanitized formal's own points-to set never
// observes one, satisfying the strict "sanitizer removal" property
// (spec.md §8) rather than merely the weaker "excluded from further
// transfer" reading.
func RegisterSanitizers(table *plugin.Table, hierarchy classes.Hierarchy, mgr *Manager, rules []config.SanitizerRule) {
	for _, rule := range rules {
		method, ok := hierarchy.ResolveMethod(rule.Method)
		if !ok {
			log.Warnf("taint: sanitizer rule references unresolvable method %q, skipping", rule.Method)
			continue
		}
		table.RegisterParamFilter(method.Signature, rule.Index, func(in *cs.PointsToSet) *cs.PointsToSet {
			return in.Filter(func(o *cs.CSObj) bool { return !mgr.IsTaint(o.Obj) })
		})
	}
}
