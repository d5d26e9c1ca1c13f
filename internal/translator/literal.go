package translator

import (
	"strings"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

// VisitLiteral dispatches on literal_type (spec section 4.2). Callers
// detect a child's literal-ness from the returned fragment's
// "is_literal"/"literal_type" metadata rather than a separate
// side-channel; see functions_convert.go and functions_boundary.go.
func (t *Translator) VisitLiteral(l *ast.Literal) (*fragment.Fragment, error) {
	sqlExpr, err := t.literalSQL(l)
	if err != nil {
		return nil, err
	}
	f, err := t.newFragment(sqlExpr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.SetMetadata("is_literal", true)
	f.SetMetadata("literal_type", string(l.Type))
	if l.Type == ast.LiteralEmptyCollection {
		f.SetMetadata("is_empty_collection", true)
	}
	return f, nil
}

func (t *Translator) literalSQL(l *ast.Literal) (string, error) {
	switch l.Type {
	case ast.LiteralString:
		return quoteSQLString(l.Value), nil
	case ast.LiteralInteger, ast.LiteralDecimal:
		// Preserve the literal's exact textual precision rather than
		// round-tripping through a float.
		return l.Value, nil
	case ast.LiteralBoolean:
		if l.Value == "true" {
			return "TRUE", nil
		}
		return "FALSE", nil
	case ast.LiteralDate:
		return t.dialect.GenerateDateLiteral(l.Value), nil
	case ast.LiteralDateTime:
		return t.dialect.GenerateDateTimeLiteral(l.Value), nil
	case ast.LiteralTime:
		return t.dialect.GenerateTimeLiteral(l.Value), nil
	case ast.LiteralEmptyCollection:
		// Sentinel; consumers substitute FALSE/NULL/[] as appropriate
		// for the position the empty collection appears in.
		return "NULL", nil
	default:
		return "", t.translationErr(fhirpatherr.ErrMalformedLiteral, "unknown_literal_type", l.SourceText, "literal has unrecognized type %q", l.Type)
	}
}

// quoteSQLString single-quotes s, doubling any embedded single quotes
// per spec section 4.2 ("double embedded quotes").
func quoteSQLString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
