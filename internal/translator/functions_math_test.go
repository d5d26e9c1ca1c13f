package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

func numericTarget(t *testing.T) *fragment.Fragment {
	t.Helper()
	f, err := fragment.NewWithSource("n_col", "cte_1")
	require.NoError(t, err)
	return f
}

func TestSimpleMathFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*Translator, *ast.FunctionCall, *fragment.Fragment) (*fragment.Fragment, error)
		want string
	}{
		{"abs", fnAbs, "ABS(n_col)"},
		{"ceiling", fnCeiling, "CEILING(n_col)"},
		{"floor", fnFloor, "FLOOR(n_col)"},
		{"truncate", fnTruncate, "TRUNCATE(n_col)"},
		{"exp", fnExp, "EXP(n_col)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTranslator()
			call := ast.NewFunctionCall("n."+tt.name+"()", tt.name, nil)
			f, err := tt.fn(tr, call, numericTarget(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Expression)
		})
	}
}

func TestFnRound_WithAndWithoutPrecision(t *testing.T) {
	tr := newTestTranslator()
	f, err := fnRound(tr, ast.NewFunctionCall("n.round()", "round", nil), numericTarget(t))
	require.NoError(t, err)
	assert.Equal(t, "ROUND(n_col)", f.Expression)

	tr2 := newTestTranslator()
	call := ast.NewFunctionCall("n.round(2)", "round", nil, lit("2", "2", ast.LiteralInteger))
	f2, err := fnRound(tr2, call, numericTarget(t))
	require.NoError(t, err)
	assert.Equal(t, "ROUND(n_col, 2)", f2.Expression)
}

func TestFnSqrt_GuardsNegativeDomain(t *testing.T) {
	tr := newTestTranslator()
	f, err := fnSqrt(tr, ast.NewFunctionCall("n.sqrt()", "sqrt", nil), numericTarget(t))
	require.NoError(t, err)
	assert.Equal(t, "CASE WHEN n_col < 0 THEN NULL ELSE SQRT(n_col) END", f.Expression)
}

func TestFnLn_GuardsNonPositiveDomain(t *testing.T) {
	tr := newTestTranslator()
	f, err := fnLn(tr, ast.NewFunctionCall("n.ln()", "ln", nil), numericTarget(t))
	require.NoError(t, err)
	assert.Equal(t, "CASE WHEN n_col <= 0 THEN NULL ELSE LN(n_col) END", f.Expression)
}

func TestFnLog_GuardsBaseAndArgument(t *testing.T) {
	tr := newTestTranslator()
	call := ast.NewFunctionCall("n.log(2)", "log", nil, lit("2", "2", ast.LiteralInteger))
	f, err := fnLog(tr, call, numericTarget(t))
	require.NoError(t, err)
	assert.Equal(t, "CASE WHEN n_col <= 0 OR 2 <= 0 OR 2 = 1 THEN NULL ELSE (LN(n_col) / LN(2)) END", f.Expression)
}

func TestFnPower_GuardsFractionalExponentOfNegativeBase(t *testing.T) {
	tr := newTestTranslator()
	call := ast.NewFunctionCall("n.power(0.5)", "power", nil, lit("0.5", "0.5", ast.LiteralDecimal))
	f, err := fnPower(tr, call, numericTarget(t))
	require.NoError(t, err)
	assert.Equal(t, "CASE WHEN n_col < 0 AND 0.5 != FLOOR(0.5) THEN NULL ELSE POWER(n_col, 0.5) END", f.Expression)
}

func TestMathFunctions_WrongArityErrors(t *testing.T) {
	tr := newTestTranslator()
	call := ast.NewFunctionCall("n.abs(1)", "abs", nil, lit("1", "1", ast.LiteralInteger))
	_, err := fnAbs(tr, call, numericTarget(t))
	require.Error(t, err)

	tr2 := newTestTranslator()
	call2 := ast.NewFunctionCall("n.log()", "log", nil)
	_, err = fnLog(tr2, call2, numericTarget(t))
	require.Error(t, err)
}
