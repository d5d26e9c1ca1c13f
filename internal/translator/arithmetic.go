package translator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

// operandType is the minimal type lattice arithmetic promotion needs.
type operandType string

const (
	typeInteger  operandType = "integer"
	typeDecimal  operandType = "decimal"
	typeQuantity operandType = "quantity"
	typeTemporal operandType = "temporal"
	typeUnknown  operandType = "unknown"
)

var decimalLiteralPattern = regexp.MustCompile(`^-?\d+\.\d+$`)
var integerLiteralPattern = regexp.MustCompile(`^-?\d+$`)

// inferOperandType follows the precedence spec section 4.4 specifies:
// node metadata, literal-type attribute, value-level type, SQL data
// type, FHIR type, then (last resort, literal nodes only) a text regex.
func (t *Translator) inferOperandType(node ast.Node, f *fragment.Fragment) operandType {
	if mt := f.MetadataString("operand_type"); mt != "" {
		return operandType(mt)
	}
	if lit, ok := ast.Unwrap(node).(*ast.Literal); ok {
		switch lit.Type {
		case ast.LiteralInteger:
			return typeInteger
		case ast.LiteralDecimal:
			return typeDecimal
		case ast.LiteralDate, ast.LiteralDateTime, ast.LiteralTime:
			return typeTemporal
		}
		if integerLiteralPattern.MatchString(lit.Value) {
			return typeInteger
		}
		if decimalLiteralPattern.MatchString(lit.Value) {
			return typeDecimal
		}
	}
	if f.MetadataString("literal_type") == string(ast.LiteralInteger) {
		return typeInteger
	}
	if f.MetadataString("literal_type") == string(ast.LiteralDecimal) {
		return typeDecimal
	}
	if f.MetadataString("result_type") == "Quantity" {
		return typeQuantity
	}
	if integerLiteralPattern.MatchString(f.Expression) {
		return typeInteger
	}
	if decimalLiteralPattern.MatchString(f.Expression) {
		return typeDecimal
	}
	return typeUnknown
}

// visitArithmetic implements +, -, *, /, div, mod with integer/decimal
// promotion and NULL-safe guards (spec section 4.4).
func (t *Translator) visitArithmetic(op *ast.Operator) (*fragment.Fragment, error) {
	if len(op.Children) != 2 {
		return nil, t.validationErr(fhirpatherr.ErrWrongArgumentCount, "arithmetic_operator_arity", op.SourceText,
			"arithmetic operator %q requires exactly 2 operands, got %d", op.Symbol, len(op.Children))
	}
	leftNode, rightNode := op.Children[0], op.Children[1]
	left, err := t.translateChild(leftNode)
	if err != nil {
		return nil, err
	}
	right, err := t.translateChild(rightNode)
	if err != nil {
		return nil, err
	}

	leftType := t.inferOperandType(leftNode, left)
	rightType := t.inferOperandType(rightNode, right)

	if leftType == typeTemporal || rightType == typeTemporal {
		return t.visitTemporalArithmetic(op, left, right, leftType, rightType)
	}

	var expr string
	var resultType operandType
	switch op.Symbol {
	case "+":
		expr = fmt.Sprintf("(%s + %s)", left.Expression, right.Expression)
		resultType = promote(leftType, rightType)
	case "-":
		expr = fmt.Sprintf("(%s - %s)", left.Expression, right.Expression)
		resultType = promote(leftType, rightType)
	case "*":
		expr = fmt.Sprintf("(%s * %s)", left.Expression, right.Expression)
		resultType = promote(leftType, rightType)
	case "/":
		expr = t.dialect.GenerateDecimalDivision(left.Expression, right.Expression)
		resultType = typeDecimal
	case "div":
		decimalDiv := t.dialect.GenerateDecimalDivision(left.Expression, right.Expression)
		expr = t.dialect.SafeCastToInteger(decimalDiv)
		resultType = typeInteger
	case "mod":
		expr = t.dialect.GenerateModulo(left.Expression, right.Expression)
		resultType = promote(leftType, rightType)
	default:
		return nil, t.translationErr(fhirpatherr.ErrUnsupportedOperator, "unsupported_arithmetic_operator", op.SourceText,
			"operator %q has no arithmetic handler", op.Symbol)
	}

	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.SetMetadata("operand_type", string(resultType))
	f.SetMetadata("operator", op.Symbol)
	for _, d := range append(left.Dependencies, right.Dependencies...) {
		f.AddDependency(d)
	}
	return f, nil
}

func promote(a, b operandType) operandType {
	if a == typeDecimal || b == typeDecimal {
		return typeDecimal
	}
	if a == typeInteger && b == typeInteger {
		return typeInteger
	}
	return typeDecimal
}

// visitTemporalArithmetic handles date/dateTime/time +/- quantity('N
// unit') by building a dialect interval expression. Month/year amounts
// must be integers; millisecond amounts become fractional seconds.
func (t *Translator) visitTemporalArithmetic(op *ast.Operator, left, right *fragment.Fragment, leftType, rightType operandType) (*fragment.Fragment, error) {
	temporalSide, quantitySide := left, right
	sign := op.Symbol
	if leftType != typeTemporal {
		temporalSide, quantitySide = right, left
	}
	amount, unit, err := parseQuantityLiteral(quantitySide.Expression)
	if err != nil {
		return nil, t.translationErr(fhirpatherr.ErrUnparseableQuantity, "unparseable_quantity_literal", op.SourceText, err.Error())
	}
	if (unit == "month" || unit == "year" || unit == "months" || unit == "years") && strings.Contains(amount, ".") {
		return nil, t.validationErr(fhirpatherr.ErrInvalidPrecision, "month_year_interval_requires_integer", op.SourceText,
			"month/year temporal arithmetic requires an integer amount, got %q", amount)
	}
	if unit == "millisecond" || unit == "milliseconds" {
		unit = "second"
		amount = amount + "e-3"
	}
	intervalExpr := t.dialect.GenerateIntervalExpr(amount, unit)
	var expr string
	switch sign {
	case "+":
		expr = fmt.Sprintf("(%s + %s)", temporalSide.Expression, intervalExpr)
	case "-":
		expr = fmt.Sprintf("(%s - %s)", temporalSide.Expression, intervalExpr)
	default:
		return nil, t.validationErr(fhirpatherr.ErrUnsupportedOperator, "unsupported_temporal_operator", op.SourceText,
			"temporal arithmetic only supports + and -, got %q", sign)
	}
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.SetMetadata("operand_type", string(typeTemporal))
	return f, nil
}

// parseQuantityLiteral extracts the numeric amount and unit from a
// quantity('N unit') SQL-literal-shaped expression produced by the
// literal visitor for a FHIRPath quantity literal (e.g. "3 'days'").
func parseQuantityLiteral(sqlLiteral string) (amount, unit string, err error) {
	trimmed := strings.Trim(sqlLiteral, "'")
	parts := strings.Fields(trimmed)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("cannot parse quantity literal %q", sqlLiteral)
	}
	return parts[0], strings.Trim(parts[1], "'"), nil
}
