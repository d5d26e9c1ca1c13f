package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
)

func TestVisitLiteral(t *testing.T) {
	tests := []struct {
		name     string
		lit      *ast.Literal
		expected string
	}{
		{"string", ast.NewLiteral("'hi'", "hi", ast.LiteralString), "'hi'"},
		{"string with embedded quote", ast.NewLiteral("'o''brien'", "o'brien", ast.LiteralString), "'o''brien'"},
		{"integer", ast.NewLiteral("42", "42", ast.LiteralInteger), "42"},
		{"decimal", ast.NewLiteral("3.14", "3.14", ast.LiteralDecimal), "3.14"},
		{"boolean true", ast.NewLiteral("true", "true", ast.LiteralBoolean), "TRUE"},
		{"boolean false", ast.NewLiteral("false", "false", ast.LiteralBoolean), "FALSE"},
		{"date", ast.NewLiteral("@2020-01-01", "2020-01-01", ast.LiteralDate), "DATE '2020-01-01'"},
		{"empty collection", ast.NewLiteral("{}", "", ast.LiteralEmptyCollection), "NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTranslator()
			f, err := tr.VisitLiteral(tt.lit)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.Expression)
			assert.True(t, f.MetadataBool("is_literal"))
		})
	}
}

func TestVisitLiteral_EmptyCollectionMetadata(t *testing.T) {
	tr := newTestTranslator()
	f, err := tr.VisitLiteral(ast.NewLiteral("{}", "", ast.LiteralEmptyCollection))
	require.NoError(t, err)
	assert.True(t, f.MetadataBool("is_empty_collection"))
}

func TestVisitLiteral_SetsPendingValue(t *testing.T) {
	tr := newTestTranslator()
	_, err := tr.VisitLiteral(ast.NewLiteral("42", "42", ast.LiteralInteger))
	require.NoError(t, err)
	raw, sql, ok := tr.ctx.TakePendingLiteralValue()
	require.True(t, ok)
	assert.Equal(t, "42", raw)
	assert.Equal(t, "42", sql)
}
