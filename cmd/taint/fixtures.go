package main

import (
	"github.com/o2lab/taint/internal/classes"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/reflection"
	"github.com/o2lab/taint/internal/testutil"
)

// Demo types and signatures. These are exactly what testdata/demo-rules.yml
// names in its source/sink/sanitizer rules -- change one without the other
// and the rule silently stops resolving (config.Load logs a warning rather
// than failing).
const (
	demoType   = testutil.Type("Demo")
	stringType = testutil.Type("String")
	voidType   = testutil.Type("void")
)

// loadProgram builds the fixed demo program this driver analyzes in place
// of a real front-end's output (see main.go's package doc). It wires two
// flows: an unsanitized one from source() through wrap() to sink(), and a
// second one that passes through clean() first, which testdata/demo-rules.yml
// registers as a sanitizer on its own parameter.
func loadProgram() (classes.Hierarchy, *heap.Model, []*ir.Method) {
	h := testutil.NewHierarchy()

	sourceSig := testutil.Signature(demoType, stringType, "source")
	sinkSig := testutil.Signature(demoType, voidType, "sink", stringType)
	wrapSig := testutil.Signature(demoType, stringType, "wrap", stringType)
	cleanSig := testutil.Signature(demoType, stringType, "clean", stringType)

	source := h.Method(sourceSig, demoType, nil, nil, testutil.Var("ret", stringType), nil)
	source.IsStatic = true

	sink := h.Method(sinkSig, demoType, nil, []*ir.Var{testutil.Var("p0", stringType)}, nil, nil)
	sink.IsStatic = true

	wrapParam := testutil.Var("p0", stringType)
	wrapRet := testutil.Var("ret", stringType)
	wrap := h.Method(wrapSig, demoType, nil, []*ir.Var{wrapParam}, wrapRet, []ir.Stmt{
		&ir.CopyStmt{LHS: wrapRet, RHS: wrapParam},
	})
	wrap.IsStatic = true

	cleanParam := testutil.Var("p0", stringType)
	cleanRet := testutil.Var("ret", stringType)
	clean := h.Method(cleanSig, demoType, nil, []*ir.Var{cleanParam}, cleanRet, []ir.Stmt{
		&ir.CopyStmt{LHS: cleanRet, RHS: cleanParam},
	})
	clean.IsStatic = true

	tainted := testutil.Var("tainted", stringType)
	wrapped := testutil.Var("wrapped", stringType)
	cleaned := testutil.Var("cleaned", stringType)
	scrubbed := testutil.Var("scrubbed", stringType)

	mainSig := testutil.Signature(demoType, voidType, "main")
	main := h.Method(mainSig, demoType, nil, nil, nil, []ir.Stmt{
		&ir.InvokeStmt{Call: &ir.Invoke{Ref: &ir.MethodRef{Signature: sourceSig}, Result: tainted}},
		&ir.InvokeStmt{Call: &ir.Invoke{Ref: &ir.MethodRef{Signature: wrapSig}, Args: []*ir.Var{tainted}, Result: wrapped}},
		&ir.InvokeStmt{Call: &ir.Invoke{Ref: &ir.MethodRef{Signature: sinkSig}, Args: []*ir.Var{wrapped}}},

		&ir.InvokeStmt{Call: &ir.Invoke{Ref: &ir.MethodRef{Signature: sourceSig}, Result: cleaned}},
		&ir.InvokeStmt{Call: &ir.Invoke{Ref: &ir.MethodRef{Signature: cleanSig}, Args: []*ir.Var{cleaned}, Result: scrubbed}},
		&ir.InvokeStmt{Call: &ir.Invoke{Ref: &ir.MethodRef{Signature: sinkSig}, Args: []*ir.Var{scrubbed}}},
	})
	main.IsStatic = true
	main.IsApplication = true

	// wrap/clean pass their own points-to through structural parameter
	// edges, so no override/dispatch table entry is needed for either --
	// both calls above are already statically resolved by signature. The
	// hierarchy only needs an override entry for genuinely virtual calls,
	// none of which this fixture uses.
	_ = source
	_ = sink

	heapModel := heap.NewModel()
	return h, heapModel, []*ir.Method{main}
}

// reflectionConfig names reflective call shapes this demo program never
// actually invokes; the plugin still registers cleanly against an empty
// hierarchy match.
func reflectionConfig() reflection.Config {
	return reflection.Config{
		ForNameSignature:     "<java.lang.Class: java.lang.Class forName(java.lang.String)>",
		NewInstanceSignature: "<java.lang.Class: java.lang.Object newInstance()>",
		ClassType:  testutil.Type("java.lang.Class"),
		ObjectType: testutil.Type("java.lang.Object"),
	}
}
