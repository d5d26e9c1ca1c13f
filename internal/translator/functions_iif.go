package translator

import (
	"fmt"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

func init() {
	registerFunction("iif", fnIif)
}

// fnIif implements the criterion/true-result/false-result conditional.
// An empty-collection target short-circuits straight to the false/
// otherwise branch without even translating the criterion (spec section
// 4.7: "{}.iif(true, 'a', 'b') -> 'b'"). Otherwise two static checks
// happen at translation time rather than at SQL evaluation time (spec
// section 4.7, section 8):
//   - the criterion must statically resolve to a boolean-producing
//     expression (a comparison, logical combination, or boolean literal);
//     a criterion built from a provably multi-item collection can never
//     satisfy this and is rejected.
//   - the target iif() is being called against must not be a statically
//     multi-item collection -- iif operates on a single item of context.
func fnIif(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgRange(call, 2, 3); err != nil {
		return nil, err
	}
	if target.MetadataBool("is_empty_collection") {
		return fnIifFalseBranch(t, call, target)
	}
	if isStaticallyMultiItem(target) {
		return nil, t.evaluationErr(fhirpatherr.ErrIifOnMultiItemCollection, "iif_on_multi_item_collection", call.SourceText,
			"iif() cannot be evaluated against a statically multi-item collection")
	}

	criterion, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	if !isStaticallyBoolean(criterion) {
		return nil, t.validationErr(fhirpatherr.ErrIifCriterionNotBoolean, "iif_criterion_must_be_boolean", call.Arguments[0].Text(),
			"iif() criterion must statically resolve to a boolean expression")
	}

	trueResult, err := t.translateChild(call.Arguments[1])
	if err != nil {
		return nil, err
	}
	falseExpr := "NULL"
	var falseResult *fragment.Fragment
	if len(call.Arguments) == 3 {
		falseResult, err = t.translateChild(call.Arguments[2])
		if err != nil {
			return nil, err
		}
		falseExpr = falseResult.Expression
	}

	expr := fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", criterion.Expression, trueResult.Expression, falseExpr)
	f, err := t.newFragment(expr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, criterion, trueResult, falseResult)
	return f, nil
}

// fnIifFalseBranch translates only the otherwise argument (or NULL when
// omitted), used when the target is statically known to be empty.
func fnIifFalseBranch(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	falseExpr := "NULL"
	var falseResult *fragment.Fragment
	if len(call.Arguments) == 3 {
		var err error
		falseResult, err = t.translateChild(call.Arguments[2])
		if err != nil {
			return nil, err
		}
		falseExpr = falseResult.Expression
	}
	f, err := t.newFragment(falseExpr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, falseResult)
	return f, nil
}

func isStaticallyMultiItem(f *fragment.Fragment) bool {
	return f.MetadataBool("is_collection") && !f.MetadataBool("is_empty_collection")
}

func isStaticallyBoolean(f *fragment.Fragment) bool {
	if f.MetadataString("literal_type") == string(ast.LiteralBoolean) {
		return true
	}
	switch f.MetadataString("operator") {
	case "=", "!=", "<", ">", "<=", ">=", "~", "!~", "and", "or", "xor", "implies", "not":
		return true
	}
	return f.MetadataBool("is_boolean_result")
}
