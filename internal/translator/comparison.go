package translator

import (
	"fmt"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

// visitComparison implements =, !=, <, >, <=, >=, ~, !~ (spec section
// 4.4). requires_unnest is always false on the result: comparisons
// reduce to scalar booleans even when an operand required unnest.
func (t *Translator) visitComparison(op *ast.Operator) (*fragment.Fragment, error) {
	if len(op.Children) != 2 {
		return nil, t.validationErr(fhirpatherr.ErrWrongArgumentCount, "comparison_operator_arity", op.SourceText,
			"comparison operator %q requires exactly 2 operands, got %d", op.Symbol, len(op.Children))
	}
	left, err := t.translateChild(op.Children[0])
	if err != nil {
		return nil, err
	}
	right, err := t.translateChild(op.Children[1])
	if err != nil {
		return nil, err
	}

	if left.MetadataBool("is_empty_collection") || right.MetadataBool("is_empty_collection") {
		return t.buildComparisonResult("FALSE", left, right, op.Symbol)
	}

	if left.MetadataBool("is_collection") || right.MetadataBool("is_collection") {
		if op.Symbol != "=" && op.Symbol != "!=" {
			return nil, t.validationErr(fhirpatherr.ErrUnsupportedOperator, "collection_comparison_requires_equality", op.SourceText,
				"only = and != are defined for collection-valued operands, got %q", op.Symbol)
		}
		leftSerialized := t.dialect.SerializeJSONValue(left.Expression)
		rightSerialized := t.dialect.SerializeJSONValue(right.Expression)
		sqlOp := "="
		if op.Symbol == "!=" {
			sqlOp = "!="
		}
		expr := t.dialect.GenerateComparison(leftSerialized, sqlOp, rightSerialized)
		return t.buildComparisonResult(expr, left, right, op.Symbol)
	}

	switch op.Symbol {
	case "~", "!~":
		return t.visitEquivalence(op, left, right)
	case "=", "!=":
		expr := t.dialect.GenerateComparison(left.Expression, op.Symbol, right.Expression)
		return t.buildComparisonResult(expr, left, right, op.Symbol)
	case "<", ">", "<=", ">=":
		return t.visitOrderedComparison(op, left, right)
	default:
		return nil, t.translationErr(fhirpatherr.ErrUnsupportedOperator, "unsupported_comparison_operator", op.SourceText,
			"operator %q has no comparison handler", op.Symbol)
	}
}

func (t *Translator) buildComparisonResult(expr string, left, right *fragment.Fragment, symbol string) (*fragment.Fragment, error) {
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	f.SetMetadata("operator", symbol)
	for _, d := range append(left.Dependencies, right.Dependencies...) {
		f.AddDependency(d)
	}
	return f, nil
}

// visitOrderedComparison wraps the left side in a safe decimal cast when
// the right side is an integer or decimal literal (otherwise the right
// side, when the left is one); no other safe casts are applied. It routes
// reduced-precision temporal literals through three-valued range
// semantics instead of naive SQL ordering.
func (t *Translator) visitOrderedComparison(op *ast.Operator, left, right *fragment.Fragment) (*fragment.Fragment, error) {
	leftType := left.MetadataString("literal_type")
	rightType := right.MetadataString("literal_type")
	if isTemporalType(leftType) && isTemporalType(rightType) {
		return t.visitTemporalRangeComparison(op, left, right)
	}

	leftExpr := left.Expression
	rightExpr := right.Expression
	if rightType == string(ast.LiteralInteger) || rightType == string(ast.LiteralDecimal) {
		leftExpr = t.dialect.SafeCastToDecimal(leftExpr)
	} else if leftType == string(ast.LiteralInteger) || leftType == string(ast.LiteralDecimal) {
		rightExpr = t.dialect.SafeCastToDecimal(rightExpr)
	}

	expr := t.dialect.GenerateComparison(leftExpr, op.Symbol, rightExpr)
	return t.buildComparisonResult(expr, left, right, op.Symbol)
}

func isTemporalType(literalType string) bool {
	return literalType == string(ast.LiteralDate) || literalType == string(ast.LiteralDateTime) || literalType == string(ast.LiteralTime)
}

// visitTemporalRangeComparison implements [start,end) interval semantics
// for comparisons between reduced-precision temporal literals, returning
// TRUE/FALSE/NULL never collapsed to an always-true/false result (spec
// section 4.4 and section 8's temporal boundary-case invariant).
func (t *Translator) visitTemporalRangeComparison(op *ast.Operator, left, right *fragment.Fragment) (*fragment.Fragment, error) {
	leftLow := t.dialect.GenerateTemporalBoundary(left.Expression, left.MetadataString("literal_type"), 0, "low", false)
	leftHigh := t.dialect.GenerateTemporalBoundary(left.Expression, left.MetadataString("literal_type"), 0, "high", false)
	rightLow := t.dialect.GenerateTemporalBoundary(right.Expression, right.MetadataString("literal_type"), 0, "low", false)
	rightHigh := t.dialect.GenerateTemporalBoundary(right.Expression, right.MetadataString("literal_type"), 0, "high", false)

	var trueCond, falseCond string
	switch op.Symbol {
	case "<":
		trueCond = fmt.Sprintf("%s < %s", leftHigh, rightLow)
		falseCond = fmt.Sprintf("%s >= %s", leftLow, rightHigh)
	case "<=":
		trueCond = fmt.Sprintf("%s <= %s", leftHigh, rightLow)
		falseCond = fmt.Sprintf("%s > %s", leftLow, rightHigh)
	case ">":
		trueCond = fmt.Sprintf("%s > %s", leftLow, rightHigh)
		falseCond = fmt.Sprintf("%s <= %s", leftHigh, rightLow)
	case ">=":
		trueCond = fmt.Sprintf("%s >= %s", leftLow, rightHigh)
		falseCond = fmt.Sprintf("%s < %s", leftHigh, rightLow)
	default:
		return nil, t.translationErr(fhirpatherr.ErrUnsupportedOperator, "unsupported_temporal_range_operator", op.SourceText,
			"operator %q has no temporal-range handler", op.Symbol)
	}
	expr := fmt.Sprintf("CASE WHEN %s THEN TRUE WHEN %s THEN FALSE ELSE NULL END", trueCond, falseCond)
	return t.buildComparisonResult(expr, left, right, op.Symbol)
}

// visitEquivalence implements ~ and !~: strings compare case-insensitively,
// other types use equality semantics, and NULL-NULL yields true for ~ and
// false for !~ via an explicit three-branch CASE.
func (t *Translator) visitEquivalence(op *ast.Operator, left, right *fragment.Fragment) (*fragment.Fragment, error) {
	leftExpr, rightExpr := left.Expression, right.Expression
	if left.MetadataString("literal_type") == string(ast.LiteralString) || right.MetadataString("literal_type") == string(ast.LiteralString) {
		leftExpr = fmt.Sprintf("LOWER(%s)", leftExpr)
		rightExpr = fmt.Sprintf("LOWER(%s)", rightExpr)
	}
	bothNullValue := "TRUE"
	oneNullValue := "FALSE"
	presentCmp := fmt.Sprintf("%s = %s", leftExpr, rightExpr)
	if op.Symbol == "!~" {
		bothNullValue = "FALSE"
		oneNullValue = "TRUE"
		presentCmp = fmt.Sprintf("%s != %s", leftExpr, rightExpr)
	}
	expr := fmt.Sprintf(
		"CASE WHEN %s IS NULL AND %s IS NULL THEN %s WHEN %s IS NULL OR %s IS NULL THEN %s ELSE %s END",
		leftExpr, rightExpr, bothNullValue, leftExpr, rightExpr, oneNullValue, presentCmp,
	)
	return t.buildComparisonResult(expr, left, right, op.Symbol)
}
