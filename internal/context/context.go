// Package context implements Contexts and the pluggable ContextSelector
// (spec.md §2, "Context Selector: picks heap/method/call-site contexts
// (k-CFA, object-sensitivity, ...)"). Contexts are immutable label chains,
// k-truncated the way gopta's k-CFA implementation truncates call-site
// chains (see its Config.K / Config.CallSiteSensitive / Config.Origin
// fields in the teacher repo).
package context

import (
	"fmt"
	"strings"

	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
)

// Context is an immutable, k-truncated chain of labels abstracting calling
// or allocation history.
type Context struct {
	labels []string
}

// Empty is the distinguished empty context (spec.md §3 invariant 5): the
// one used for context-insensitive mock objects, in particular taint
// objects.
var Empty = Context{}

func (c Context) IsEmpty() bool { return len(c.labels) == 0 }

func (c Context) String() string {
	if c.IsEmpty() {
		return "[]"
	}
	return "[" + strings.Join(c.labels, "·") + "]"
}

// Append returns a new context with label appended, truncated to the last
// k labels.
func (c Context) Append(label string, k int) Context {
	if k <= 0 {
		return Empty
	}
	labels := make([]string, 0, len(c.labels)+1)
	labels = append(labels, c.labels...)
	labels = append(labels, label)
	if len(labels) > k {
		labels = labels[len(labels)-k:]
	}
	return Context{labels: labels}
}

// Selector picks contexts for new call edges and new allocations. It is the
// sole point of variation between k-CFA, k-object-sensitivity, and
// context-insensitive analysis.
type Selector interface {
	// SelectMethodContext picks the context under which callee runs, given
	// the caller's context, the call site, and -- for instance calls -- the
	// receiver object and the heap context it was allocated under.
	// recvObj is nil for static dispatch.
	SelectMethodContext(callerCtx Context, site *ir.Invoke, recvObj heap.Obj, recvHeapCtx Context) Context

	// SelectHeapContext picks the heap context for an object allocated by
	// site while running under methodCtx.
	SelectHeapContext(methodCtx Context, site *ir.NewStmt) Context
}

// Insensitive always selects the empty context: plain 0-CFA/Andersen-style
// analysis.
type Insensitive struct{}

func (Insensitive) SelectMethodContext(Context, *ir.Invoke, heap.Obj, Context) Context {
	return Empty
}

func (Insensitive) SelectHeapContext(Context, *ir.NewStmt) Context { return Empty }

// CallSiteSensitive implements k-CFA: the method context is the caller's
// context with the call site appended, truncated to K. Heap contexts track
// the allocating method's context (call-site-sensitive heap abstraction).
type CallSiteSensitive struct {
	K int
}

func (s CallSiteSensitive) SelectMethodContext(callerCtx Context, site *ir.Invoke, _ heap.Obj, _ Context) Context {
	return callerCtx.Append(siteLabel(site), s.K)
}

func (s CallSiteSensitive) SelectHeapContext(methodCtx Context, _ *ir.NewStmt) Context {
	return methodCtx
}

// ObjectSensitive implements k-object-sensitivity: the method context for
// an instance call is the receiver's heap context with the receiver object
// appended, truncated to K; static calls fall back to the caller's
// context. Heap contexts chain the enclosing method context with the
// allocated type's name, so two allocation sites of the same type share a
// label.
type ObjectSensitive struct {
	K int
}

func (s ObjectSensitive) SelectMethodContext(callerCtx Context, _ *ir.Invoke, recvObj heap.Obj, recvHeapCtx Context) Context {
	if recvObj == nil {
		return callerCtx
	}
	return recvHeapCtx.Append(recvObj.String(), s.K)
}

func (s ObjectSensitive) SelectHeapContext(methodCtx Context, site *ir.NewStmt) Context {
	return methodCtx.Append(siteLabel2(site), s.K)
}

// siteLabel distinguishes call sites by their own identity (the same
// *ir.Invoke pointer internal/cs.Manager.GetCSCallSite canonicalizes on),
// not by the callee's signature -- two distinct call sites in one method
// that happen to invoke the same signature (a loop body calling foo()
// twice, or two separate call expressions both targeting foo()) must get
// distinct labels, or call-site-sensitivity collapses them onto the same
// context.
func siteLabel(site *ir.Invoke) string {
	return fmt.Sprintf("%p:%s", site, site.Ref.Signature)
}

func siteLabel2(site *ir.NewStmt) string {
	return site.Type.String()
}
