package translator

import (
	"fmt"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
	"github.com/fhirsql/fhirpath2sql/internal/typeoracle"
)

// VisitTypeOperation implements is/as/ofType (spec section 4.5). Type
// operations are significant: each gets its own fragment, appended to
// the chain.
func (t *Translator) VisitTypeOperation(op *ast.TypeOperation) (*fragment.Fragment, error) {
	canonical, ok := t.oracle.CanonicalTypeName(op.TargetType)
	if !ok {
		return nil, t.validationErr(fhirpatherr.ErrUnknownFHIRType, "unknown_type_in_type_operation", op.SourceText,
			"%q is not a recognized FHIR type", op.TargetType)
	}

	target, err := t.translateChild(op.Target)
	if err != nil {
		return nil, err
	}

	meta, _ := t.oracle.TypeMetadata(canonical)

	var expr string
	switch op.Op {
	case "is":
		expr = t.typeIsExpr(target, canonical, meta)
	case "as":
		expr, err = t.typeAsExpr(op, target, canonical, meta)
		if err != nil {
			return nil, err
		}
	case "ofType":
		expr = t.typeOfTypeExpr(target, canonical, meta)
	default:
		return nil, t.translationErr(fhirpatherr.ErrUnsupportedOperator, "unsupported_type_operation", op.SourceText,
			"operation %q is not one of is/as/ofType", op.Op)
	}

	f, err := t.newFragment(expr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	f.SetMetadata("target_type", canonical)
	f.SetMetadata("function", op.Op)
	for _, d := range target.Dependencies {
		f.AddDependency(d)
	}
	return t.appendFragment(f), nil
}

func (t *Translator) typeIsExpr(target *fragment.Fragment, canonical string, meta typeoracle.TypeMetadata) string {
	if meta.IsPrimitive {
		return t.dialect.GenerateTypeCheck(target.Expression, canonical)
	}
	discriminator, ok := t.oracle.TypeDiscriminator(canonical)
	if !ok || len(discriminator.RequiredFields) == 0 {
		return t.dialect.GenerateTypeCheck(target.Expression, canonical)
	}
	cond := t.discriminatorCondition(target.Expression, discriminator.RequiredFields)
	return fmt.Sprintf("CASE WHEN %s THEN TRUE ELSE FALSE END", cond)
}

func (t *Translator) typeAsExpr(op *ast.TypeOperation, target *fragment.Fragment, canonical string, meta typeoracle.TypeMetadata) (string, error) {
	if meta.IsPrimitive {
		return t.dialect.GenerateTypeCast(target.Expression, canonical), nil
	}
	variantTarget := canonical
	if canonical == "Age" || canonical == "Duration" {
		variantTarget = "Quantity"
	}
	field, ok := t.oracle.ResolvePolymorphicFieldForType("value", variantTarget)
	if !ok {
		return "", t.translationErr(fhirpatherr.ErrCastToComplexTypeNoFields, "cast_to_complex_type_without_variants", op.SourceText,
			"no polymorphic variant field resolves %q to %q", "value", canonical)
	}
	rewritten := t.dialect.ExtractJSONObject(target.Expression, "$."+field)
	if discriminator, ok := t.oracle.TypeDiscriminator(canonical); ok && len(discriminator.RequiredFields) > 0 {
		cond := t.discriminatorCondition(rewritten, discriminator.RequiredFields)
		return fmt.Sprintf("CASE WHEN %s THEN %s ELSE NULL END", cond, rewritten), nil
	}
	return rewritten, nil
}

func (t *Translator) typeOfTypeExpr(target *fragment.Fragment, canonical string, meta typeoracle.TypeMetadata) string {
	if field, ok := t.oracle.ResolvePolymorphicFieldForType("value", canonical); ok {
		return t.dialect.ExtractJSONObject(target.Expression, "$."+field)
	}
	return t.dialect.GenerateCollectionTypeFilter(target.Expression, canonical)
}

func (t *Translator) discriminatorCondition(expr string, requiredFields []string) string {
	conds := make([]string, 0, len(requiredFields))
	for _, field := range requiredFields {
		conds = append(conds, t.dialect.CheckJSONExists(expr, "$."+field))
	}
	out := conds[0]
	for _, c := range conds[1:] {
		out = out + " AND " + c
	}
	return out
}
