package translator

import (
	"fmt"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

// VisitOperator dispatches unary/binary/comparison/logical/union/
// arithmetic operator nodes per spec section 4.4.
func (t *Translator) VisitOperator(op *ast.Operator) (*fragment.Fragment, error) {
	switch op.Kind {
	case ast.KindUnion:
		return t.visitUnion(op)
	case ast.KindUnary:
		return t.visitUnary(op)
	case ast.KindArithmetic:
		return t.visitArithmetic(op)
	case ast.KindComparison:
		return t.visitComparison(op)
	case ast.KindLogical:
		return t.visitLogical(op)
	default:
		// Generic two-child binary dispatch: currently only string
		// concatenation ("&") reaches here.
		if op.Symbol == "&" {
			return t.visitConcat(op)
		}
		return nil, t.translationErr(fhirpatherr.ErrUnsupportedOperator, "unsupported_binary_operator", op.SourceText,
			"operator %q has no binary handler", op.Symbol)
	}
}

// visitUnary handles not, unary +, unary -.
func (t *Translator) visitUnary(op *ast.Operator) (*fragment.Fragment, error) {
	if len(op.Children) != 1 {
		return nil, t.validationErr(fhirpatherr.ErrWrongArgumentCount, "unary_operator_arity", op.SourceText,
			"unary operator %q requires exactly 1 operand, got %d", op.Symbol, len(op.Children))
	}
	child, err := t.translateChild(op.Children[0])
	if err != nil {
		return nil, err
	}
	var expr string
	switch op.Symbol {
	case "not":
		expr = t.dialect.GenerateBooleanNot(child.Expression)
	case "+":
		expr = child.Expression
	case "-":
		expr = fmt.Sprintf("(-%s)", child.Expression)
	default:
		return nil, t.translationErr(fhirpatherr.ErrUnsupportedOperator, "unsupported_unary_operator", op.SourceText,
			"operator %q has no unary handler", op.Symbol)
	}
	f, err := t.newFragment(expr, child.SourceTable)
	if err != nil {
		return nil, err
	}
	for _, d := range child.Dependencies {
		f.AddDependency(d)
	}
	return f, nil
}

// visitConcat implements "&": COALESCE each operand against '' (empty
// FHIRPath collection concatenates as empty string, not NULL), then
// dialect concat. Operands are not cast to string first.
func (t *Translator) visitConcat(op *ast.Operator) (*fragment.Fragment, error) {
	if len(op.Children) != 2 {
		return nil, t.validationErr(fhirpatherr.ErrWrongArgumentCount, "concat_operator_arity", op.SourceText,
			"concat operator requires exactly 2 operands, got %d", len(op.Children))
	}
	left, err := t.translateChild(op.Children[0])
	if err != nil {
		return nil, err
	}
	right, err := t.translateChild(op.Children[1])
	if err != nil {
		return nil, err
	}
	coercedLeft := fmt.Sprintf("COALESCE(%s, '')", left.Expression)
	coercedRight := fmt.Sprintf("COALESCE(%s, '')", right.Expression)
	expr := t.dialect.StringConcat(coercedLeft, coercedRight)
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	for _, d := range append(left.Dependencies, right.Dependencies...) {
		f.AddDependency(d)
	}
	return f, nil
}
