package translator

import (
	"fmt"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

// visitLogical implements and, or, xor, implies (spec section 4.4). and/or
// delegate to the dialect's three-valued-logic combinators so NULL
// (FHIRPath empty) propagates per spec instead of collapsing to false.
func (t *Translator) visitLogical(op *ast.Operator) (*fragment.Fragment, error) {
	if len(op.Children) != 2 {
		return nil, t.validationErr(fhirpatherr.ErrWrongArgumentCount, "logical_operator_arity", op.SourceText,
			"logical operator %q requires exactly 2 operands, got %d", op.Symbol, len(op.Children))
	}
	left, err := t.translateChild(op.Children[0])
	if err != nil {
		return nil, err
	}
	right, err := t.translateChild(op.Children[1])
	if err != nil {
		return nil, err
	}

	var expr string
	switch op.Symbol {
	case "and":
		expr = t.dialect.GenerateLogicalCombine(left.Expression, "AND", right.Expression)
	case "or":
		expr = t.dialect.GenerateLogicalCombine(left.Expression, "OR", right.Expression)
	case "xor":
		expr = t.visitXor(left, right)
	case "implies":
		expr = t.visitImplies(left, right)
	default:
		return nil, t.translationErr(fhirpatherr.ErrUnsupportedOperator, "unsupported_logical_operator", op.SourceText,
			"operator %q has no logical handler", op.Symbol)
	}

	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	f.SetMetadata("operator", op.Symbol)
	for _, d := range append(left.Dependencies, right.Dependencies...) {
		f.AddDependency(d)
	}
	return f, nil
}

// visitXor: {} xor anything = FALSE, both-empty = FALSE (spec section 4.4).
func (t *Translator) visitXor(left, right *fragment.Fragment) string {
	if left.MetadataBool("is_empty_collection") || right.MetadataBool("is_empty_collection") {
		return "FALSE"
	}
	return t.dialect.GenerateXor(left.Expression, right.Expression)
}

// visitImplies follows FHIRPath's exact empty-operand table rather than
// the logically-equivalent "(NOT a) OR b" rewrite, which would not
// reproduce the spec's {} handling:
//
//	{} implies false   -> {}
//	{} implies truthy  -> truthy evaluates to true
//	true implies {}    -> {}
//	false implies *    -> true
func (t *Translator) visitImplies(left, right *fragment.Fragment) string {
	leftEmpty := left.MetadataBool("is_empty_collection")
	rightEmpty := right.MetadataBool("is_empty_collection")
	switch {
	case leftEmpty && rightEmpty:
		return "NULL"
	case leftEmpty:
		// {} implies b: NULL if b isn't statically truthy, else TRUE.
		return fmt.Sprintf("CASE WHEN %s THEN TRUE ELSE NULL END", right.Expression)
	case rightEmpty:
		// a implies {}: TRUE if a is false, NULL if a is true.
		return fmt.Sprintf("CASE WHEN %s THEN NULL ELSE TRUE END", left.Expression)
	default:
		return fmt.Sprintf("(NOT (%s) OR (%s))", left.Expression, right.Expression)
	}
}
