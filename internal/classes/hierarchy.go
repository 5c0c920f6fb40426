// Package classes declares the class-hierarchy/type-system collaborator
// the solver dispatches through. The hierarchy itself (parsing bytecode,
// building the subtype lattice) is out of scope (spec.md §1); this package
// only states the interface the core core needs.
package classes

import "github.com/o2lab/taint/internal/ir"

// Hierarchy resolves method signatures and virtual dispatch targets. A real
// implementation is backed by the parsed class files; tests use a small
// in-memory Hierarchy built over hand-written *ir.Method values.
type Hierarchy interface {
	// ResolveMethod looks up a method by its full signature string. ok is
	// false when the signature does not name a method known to the
	// hierarchy (§6: "Method signatures not resolvable... -> warn and
	// skip").
	ResolveMethod(signature string) (m *ir.Method, ok bool)

	// Dispatch resolves a virtual call on an object of dynamic type t
	// against the reference ref, returning the concrete overriding method.
	Dispatch(t ir.Type, ref *ir.MethodRef) (m *ir.Method, ok bool)

	// IsSubtype reports whether sub is assignable to sup, used by CAST
	// edges in the PFG (§4.2) to drop objects incompatible with a cast
	// target.
	IsSubtype(sub, sup ir.Type) bool
}
