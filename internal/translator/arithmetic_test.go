package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
)

func lit(sourceText, value string, t ast.LiteralType) *ast.Literal {
	return ast.NewLiteral(sourceText, value, t)
}

func TestVisitArithmetic_IntegerPlusIntegerStaysInteger(t *testing.T) {
	tr := newTestTranslator()
	op := ast.NewOperator("1 + 2", "+", lit("1", "1", ast.LiteralInteger), lit("2", "2", ast.LiteralInteger))
	f, err := tr.visitArithmetic(op)
	require.NoError(t, err)
	assert.Equal(t, "integer", f.MetadataString("operand_type"))
	assert.Equal(t, "(1 + 2)", f.Expression)
}

func TestVisitArithmetic_IntegerPlusDecimalPromotesToDecimal(t *testing.T) {
	tr := newTestTranslator()
	op := ast.NewOperator("1 + 2.5", "+", lit("1", "1", ast.LiteralInteger), lit("2.5", "2.5", ast.LiteralDecimal))
	f, err := tr.visitArithmetic(op)
	require.NoError(t, err)
	assert.Equal(t, "decimal", f.MetadataString("operand_type"))
}

func TestVisitArithmetic_DivisionAlwaysDecimal(t *testing.T) {
	tr := newTestTranslator()
	op := ast.NewOperator("4 / 2", "/", lit("4", "4", ast.LiteralInteger), lit("2", "2", ast.LiteralInteger))
	f, err := tr.visitArithmetic(op)
	require.NoError(t, err)
	assert.Equal(t, "decimal", f.MetadataString("operand_type"))
	assert.Equal(t, "(4 / 2)", f.Expression)
}

func TestVisitArithmetic_IntegerDivisionCastsToInteger(t *testing.T) {
	tr := newTestTranslator()
	op := ast.NewOperator("5 div 2", "div", lit("5", "5", ast.LiteralInteger), lit("2", "2", ast.LiteralInteger))
	f, err := tr.visitArithmetic(op)
	require.NoError(t, err)
	assert.Equal(t, "integer", f.MetadataString("operand_type"))
	assert.Equal(t, "SAFE_CAST((5 / 2) AS INT)", f.Expression)
}

func TestVisitArithmetic_WrongArityErrors(t *testing.T) {
	tr := newTestTranslator()
	op := ast.NewOperator("1 +", "+", lit("1", "1", ast.LiteralInteger))
	_, err := tr.visitArithmetic(op)
	require.Error(t, err)
}

func TestVisitTemporalArithmetic_DateTimePlusQuantity(t *testing.T) {
	tr := newTestTranslator()
	op := ast.NewOperator("@2020-01-01 + 3 'days'", "+",
		lit("@2020-01-01", "2020-01-01", ast.LiteralDate), nil)
	temporal, err := tr.newFragment("DATE '2020-01-01'", "resource")
	require.NoError(t, err)
	quantity, err := tr.newFragment("3 'days'", "resource")
	require.NoError(t, err)

	f, err := tr.visitTemporalArithmetic(op, temporal, quantity, typeTemporal, typeQuantity)
	require.NoError(t, err)
	assert.Equal(t, "(DATE '2020-01-01' + INTERVAL '3' days)", f.Expression)
}

func TestVisitTemporalArithmetic_MillisecondsConvertToFractionalSeconds(t *testing.T) {
	tr := newTestTranslator()
	op := ast.NewOperator("@T10:00:00 + 500 'milliseconds'", "+", nil, nil)
	temporal, err := tr.newFragment("TIME '10:00:00'", "resource")
	require.NoError(t, err)
	quantity, err := tr.newFragment("500 'milliseconds'", "resource")
	require.NoError(t, err)

	f, err := tr.visitTemporalArithmetic(op, temporal, quantity, typeTemporal, typeQuantity)
	require.NoError(t, err)
	assert.Equal(t, "(TIME '10:00:00' + INTERVAL '500e-3' second)", f.Expression)
}

func TestVisitTemporalArithmetic_MonthYearRequiresInteger(t *testing.T) {
	tr := newTestTranslator()
	op := ast.NewOperator("@2020-01-01 + 1.5 'years'", "+", nil, nil)
	temporal, err := tr.newFragment("DATE '2020-01-01'", "resource")
	require.NoError(t, err)
	quantity, err := tr.newFragment("1.5 'years'", "resource")
	require.NoError(t, err)

	_, err = tr.visitTemporalArithmetic(op, temporal, quantity, typeTemporal, typeQuantity)
	require.Error(t, err)
}

func TestParseQuantityLiteral(t *testing.T) {
	amount, unit, err := parseQuantityLiteral("3 'days'")
	require.NoError(t, err)
	assert.Equal(t, "3", amount)
	assert.Equal(t, "days", unit)
}

func TestParseQuantityLiteral_Malformed(t *testing.T) {
	_, _, err := parseQuantityLiteral("not-a-quantity")
	require.Error(t, err)
}
