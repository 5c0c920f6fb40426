// Package ir defines the normalized three-address IR that the rest of the
// analysis consumes. The real front-end (bytecode parser, class hierarchy,
// type system) lives outside this module; ir only states the contract it
// must satisfy (method/statement shapes, signature strings) so the solver
// never has to know where a Method came from.
package ir

import "fmt"

// Type is the analysis-level view of a declared type. Real front-ends back
// this with their own type representation; the core only ever compares
// Types by identity or asks the class-hierarchy collaborator about them.
type Type interface {
	String() string
}

// NamedType is a Type identified purely by name, comparable by value. It
// backs configuration-supplied type names (source/transfer `type:` rules,
// §6) where no front-end type is available to resolve against.
type NamedType string

func (t NamedType) String() string { return string(t) }

// Var is a local variable, parameter or the distinguished return slot of a
// Method. Vars are compared by pointer identity.
type Var struct {
	Name  string
	Type  Type
	Owner *Method // nil when the front-end does not track it
}

func (v *Var) String() string {
	if v == nil {
		return "<nil>"
	}
	return v.Name
}

// Field is a declared instance or static field.
type Field struct {
	Name      string
	Type      Type
	Declaring Type
	Static    bool
}

func (f *Field) String() string { return fmt.Sprintf("%s.%s", f.Declaring, f.Name) }

// MethodRef names a callee by signature, the way the IR refers to a call
// target before (or without) resolution through the class hierarchy.
//
// Signature format: "<classType: returnType name(paramTypes)>", per §6.
type MethodRef struct {
	Signature string
}

func (r *MethodRef) String() string { return r.Signature }

// Method is a resolved method body: parameters, optional receiver, and the
// statement list the solver walks when the method becomes reachable.
type Method struct {
	Signature     string
	DeclaringType Type
	This          *Var // nil for static methods
	Params        []*Var
	Ret           *Var // nil for void methods
	Body          []Stmt
	IsConstructor bool
	IsStatic      bool
	// IsApplication marks a method as belonging to the program under
	// analysis rather than a library/framework dependency; consulted by
	// the TFG Builder's onlyApp pruning policy (spec.md §4.6 step 4).
	IsApplication bool
}

func (m *Method) String() string { return m.Signature }

// ParamCount is the number of formal arguments, not counting the receiver.
func (m *Method) ParamCount() int { return len(m.Params) }

// StmtKind tags the shape of a Stmt, per the Solver <-> IR contract (§6).
type StmtKind int

const (
	Copy StmtKind = iota
	Cast
	LoadField
	StoreField
	LoadArray
	StoreArray
	InvokeKind
	New
	Return
)

func (k StmtKind) String() string {
	switch k {
	case Copy:
		return "Copy"
	case Cast:
		return "Cast"
	case LoadField:
		return "LoadField"
	case StoreField:
		return "StoreField"
	case LoadArray:
		return "LoadArray"
	case StoreArray:
		return "StoreArray"
	case InvokeKind:
		return "Invoke"
	case New:
		return "New"
	case Return:
		return "Return"
	default:
		return "?"
	}
}

// Stmt is one IR statement. Concrete statements below implement it; the
// solver type-switches on them (see internal/pta).
type Stmt interface {
	Kind() StmtKind
	String() string
}

// CopyStmt: LHS = RHS.
type CopyStmt struct {
	LHS, RHS *Var
}

func (s *CopyStmt) Kind() StmtKind { return Copy }
func (s *CopyStmt) String() string { return fmt.Sprintf("%s = %s", s.LHS, s.RHS) }

// CastStmt: LHS = (CastType) RHS.
type CastStmt struct {
	LHS, RHS *Var
	CastType Type
}

func (s *CastStmt) Kind() StmtKind { return Cast }
func (s *CastStmt) String() string {
	return fmt.Sprintf("%s = (%s) %s", s.LHS, s.CastType, s.RHS)
}

// LoadFieldStmt: LHS = Base.FieldRef, or LHS = FieldRef when Base == nil
// (a static-field load).
type LoadFieldStmt struct {
	LHS      *Var
	Base     *Var
	FieldRef *Field
}

func (s *LoadFieldStmt) Kind() StmtKind { return LoadField }
func (s *LoadFieldStmt) String() string {
	if s.Base == nil {
		return fmt.Sprintf("%s = %s", s.LHS, s.FieldRef)
	}
	return fmt.Sprintf("%s = %s.%s", s.LHS, s.Base, s.FieldRef.Name)
}

// StoreFieldStmt: Base.FieldRef = RHS, or FieldRef = RHS when Base == nil.
type StoreFieldStmt struct {
	Base     *Var
	FieldRef *Field
	RHS      *Var
	// Synthetic is set on statements manufactured by the transfer handler's
	// back-propagation rewrite (§4.4); their temp vars carry the
	// "%taint-temp-*" name prefix.
	Synthetic bool
}

func (s *StoreFieldStmt) Kind() StmtKind { return StoreField }
func (s *StoreFieldStmt) String() string {
	if s.Base == nil {
		return fmt.Sprintf("%s = %s", s.FieldRef, s.RHS)
	}
	return fmt.Sprintf("%s.%s = %s", s.Base, s.FieldRef.Name, s.RHS)
}

// LoadArrayStmt: LHS = Base[*]. Indices are collapsed (§3).
type LoadArrayStmt struct {
	LHS, Base *Var
}

func (s *LoadArrayStmt) Kind() StmtKind { return LoadArray }
func (s *LoadArrayStmt) String() string { return fmt.Sprintf("%s = %s[*]", s.LHS, s.Base) }

// StoreArrayStmt: Base[*] = RHS.
type StoreArrayStmt struct {
	Base, RHS *Var
}

func (s *StoreArrayStmt) Kind() StmtKind { return StoreArray }
func (s *StoreArrayStmt) String() string { return fmt.Sprintf("%s[*] = %s", s.Base, s.RHS) }

// Invoke is a call site: a base (nil for static calls), a callee reference,
// actual arguments and an optional result slot.
type Invoke struct {
	Base    *Var // nil for static dispatch
	Ref     *MethodRef
	Args    []*Var
	Result  *Var // nil if the call's value is discarded
	Virtual bool // true when Base resolves the callee via dynamic dispatch
}

func (iv *Invoke) String() string {
	return fmt.Sprintf("invoke %s(%v)", iv.Ref, iv.Args)
}

// Actual returns the actual CSVar-eligible Var bound to the convention used
// throughout §4.4/§4.5: BASE=-1, RESULT=-2, n>=0 is Args[n].
const (
	Base   = -1
	Result = -2
)

func (iv *Invoke) Actual(index int) *Var {
	switch {
	case index == Base:
		return iv.Base
	case index == Result:
		return iv.Result
	case index >= 0 && index < len(iv.Args):
		return iv.Args[index]
	default:
		return nil
	}
}

// InvokeStmt wraps an Invoke as a statement in a method body.
type InvokeStmt struct {
	Call *Invoke
}

func (s *InvokeStmt) Kind() StmtKind { return InvokeKind }
func (s *InvokeStmt) String() string { return s.Call.String() }

// NewStmt allocates an object of Type and binds it to LHS. Its own pointer
// identity is the allocation site used by the heap model (§3, §4.?).
type NewStmt struct {
	LHS  *Var
	Type Type
}

func (s *NewStmt) Kind() StmtKind { return New }
func (s *NewStmt) String() string { return fmt.Sprintf("%s = new %s", s.LHS, s.Type) }

// ReturnStmt: return Value (Value is nil for a void return).
type ReturnStmt struct {
	Value *Var
}

func (s *ReturnStmt) Kind() StmtKind { return Return }
func (s *ReturnStmt) String() string { return fmt.Sprintf("return %s", s.Value) }
