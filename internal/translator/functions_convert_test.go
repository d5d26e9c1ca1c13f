package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

func convertTarget(t *testing.T) *fragment.Fragment {
	t.Helper()
	f, err := fragment.NewWithSource("v_col", "cte_1")
	require.NoError(t, err)
	return f
}

func TestSimpleConversionFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*Translator, *ast.FunctionCall, *fragment.Fragment) (*fragment.Fragment, error)
		want string
	}{
		{"toboolean", fnToBoolean, "SAFE_CAST(v_col AS BOOL)"},
		{"tointeger", fnToInteger, "SAFE_CAST(v_col AS INT)"},
		{"todecimal", fnToDecimal, "SAFE_CAST(v_col AS DECIMAL)"},
		{"tostring", fnToString, "JSON_EXTRACT_STRING(v_col, '$')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTranslator()
			call := ast.NewFunctionCall("v."+tt.name+"()", tt.name, nil)
			f, err := tt.fn(tr, call, convertTarget(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Expression)
		})
	}
}

func TestFnToDateTime_TagsLiteralType(t *testing.T) {
	tr := newTestTranslator()
	f, err := fnToDateTime(tr, ast.NewFunctionCall("v.toDateTime()", "todatetime", nil), convertTarget(t))
	require.NoError(t, err)
	assert.Equal(t, "SAFE_CAST(v_col AS TIMESTAMP)", f.Expression)
	assert.Equal(t, "datetime", f.MetadataString("literal_type"))
}

func TestFnToTime_TagsLiteralType(t *testing.T) {
	tr := newTestTranslator()
	f, err := fnToTime(tr, ast.NewFunctionCall("v.toTime()", "totime", nil), convertTarget(t))
	require.NoError(t, err)
	assert.Equal(t, "SAFE_CAST(v_col AS TIMESTAMP)", f.Expression)
	assert.Equal(t, "time", f.MetadataString("literal_type"))
}

func TestFnToQuantity_DisabledByDefaultReturnsNull(t *testing.T) {
	tr := newTestTranslator()
	f, err := fnToQuantity(tr, ast.NewFunctionCall("v.toQuantity()", "toquantity", nil), convertTarget(t))
	require.NoError(t, err)
	assert.Equal(t, "NULL", f.Expression)
}

func TestFnToQuantity_DefaultsUnitToDimensionlessOne(t *testing.T) {
	tr := newTestTranslatorWithToQuantityExtension()
	f, err := fnToQuantity(tr, ast.NewFunctionCall("v.toQuantity()", "toquantity", nil), convertTarget(t))
	require.NoError(t, err)
	assert.Contains(t, f.Expression, "'unit', 1")
	assert.Equal(t, "Quantity", f.MetadataString("result_type"))
}

func TestFnToQuantity_WithExplicitUnit(t *testing.T) {
	tr := newTestTranslatorWithToQuantityExtension()
	call := ast.NewFunctionCall("v.toQuantity('mg')", "toquantity", nil, lit("'mg'", "mg", ast.LiteralString))
	f, err := fnToQuantity(tr, call, convertTarget(t))
	require.NoError(t, err)
	assert.Contains(t, f.Expression, "'unit', 'mg'")
}

func TestConvertsToChecks(t *testing.T) {
	tests := []struct {
		targetType string
		want       string
	}{
		{"boolean", "(SAFE_CAST(v_col AS BOOL) IS NOT NULL)"},
		{"integer", "(SAFE_CAST(v_col AS INT) IS NOT NULL)"},
		{"decimal", "(SAFE_CAST(v_col AS DECIMAL) IS NOT NULL)"},
		{"string", "(JSON_EXTRACT_STRING(v_col, '$') IS NOT NULL)"},
	}
	for _, tt := range tests {
		t.Run(tt.targetType, func(t *testing.T) {
			tr := newTestTranslator()
			call := ast.NewFunctionCall("v.convertsTo"+tt.targetType+"()", "convertsto"+tt.targetType, nil)
			f, err := convertsToCheck(tt.targetType)(tr, call, convertTarget(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Expression)
		})
	}
}

func TestConvertsToDateTime_AcceptsPartialPrecisionViaRegex(t *testing.T) {
	tr := newTestTranslator()
	call := ast.NewFunctionCall("v.convertsToDateTime()", "convertstodatetime", nil)
	f, err := convertsToCheck("datetime")(tr, call, convertTarget(t))
	require.NoError(t, err)
	assert.Contains(t, f.Expression, "SAFE_CAST(v_col AS TIMESTAMP) IS NOT NULL")
	assert.Contains(t, f.Expression, "REGEXP_MATCH(v_col,")
}

func TestConvertsToTime_AcceptsPartialPrecisionViaRegex(t *testing.T) {
	tr := newTestTranslator()
	call := ast.NewFunctionCall("v.convertsToTime()", "convertstotime", nil)
	f, err := convertsToCheck("time")(tr, call, convertTarget(t))
	require.NoError(t, err)
	assert.Contains(t, f.Expression, "SAFE_CAST(v_col AS TIMESTAMP) IS NOT NULL")
	assert.Contains(t, f.Expression, "REGEXP_MATCH(v_col,")
}
