package translator

import (
	"fmt"
	"regexp"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

func init() {
	registerFunction("toboolean", fnToBoolean)
	registerFunction("tointeger", fnToInteger)
	registerFunction("tostring", fnToString)
	registerFunction("todecimal", fnToDecimal)
	registerFunction("todatetime", fnToDateTime)
	registerFunction("totime", fnToTime)
	registerFunction("toquantity", fnToQuantity)
	registerFunction("convertstoboolean", convertsToCheck("boolean"))
	registerFunction("convertstointeger", convertsToCheck("integer"))
	registerFunction("convertstostring", convertsToCheck("string"))
	registerFunction("convertstodecimal", convertsToCheck("decimal"))
	registerFunction("convertstodatetime", convertsToCheck("datetime"))
	registerFunction("convertstotime", convertsToCheck("time"))
}

func fnToBoolean(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.SafeCastToBoolean(target.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnToInteger(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.SafeCastToInteger(target.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnToDecimal(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.SafeCastToDecimal(target.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnToString(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.ExtractJSONString(target.Expression, "$")
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnToDateTime(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.SafeCastToTimestamp(target.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	f.SetMetadata("literal_type", "datetime")
	mergeDeps(f, target)
	return f, nil
}

func fnToTime(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	// No dedicated safe-cast-to-time primitive exists; a timestamp cast
	// that fails collapses to NULL the same way, and callers needing just
	// the time-of-day portion extract it downstream.
	expr := t.dialect.SafeCastToTimestamp(target.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	f.SetMetadata("literal_type", "time")
	mergeDeps(f, target)
	return f, nil
}

// quantityPattern splits a "<number> '<ucum-unit>'" or "<number> <calendar-unit>"
// literal into numeric and unit groups (spec section 7's Quantity literal
// construction).
var quantityPattern = regexp.MustCompile(`^\s*(-?[0-9]+(?:\.[0-9]+)?)\s*'?([^']*)'?\s*$`)

// fnToQuantity constructs a {value, unit} JSON object from the target's
// safe decimal cast, with the unit argument or, when omitted, "1" (the
// UCUM dimensionless unit). A quantity-shaped string target such as
// "5 'mg'" does not cast to decimal and yields NULL. This extends
// toQuantity() beyond its unimplemented-in-the-source default of
// NULL/FALSE (spec section 9 Open Question), so it only runs when the
// caller opts in via Config.EnableToQuantityExtension; otherwise
// toQuantity() returns NULL unconditionally, preserving that default.
func fnToQuantity(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgRange(call, 0, 1); err != nil {
		return nil, err
	}
	if !t.toQuantityExtEnabled {
		f, err := scalarFragment(t, "NULL")
		if err != nil {
			return nil, err
		}
		mergeDeps(f, target)
		return f, nil
	}
	unitLiteral := "1"
	if len(call.Arguments) == 1 {
		unitFrag, err := t.translateChild(call.Arguments[0])
		if err != nil {
			return nil, err
		}
		unitLiteral = unitFrag.Expression
	}
	valueExpr := t.dialect.SafeCastToDecimal(target.Expression)
	expr := fmt.Sprintf(
		"CASE WHEN %s IS NULL THEN NULL ELSE %s END",
		valueExpr,
		t.dialect.WrapJSONArray(fmt.Sprintf("JSON_OBJECT('value', %s, 'unit', %s)", valueExpr, unitLiteral)),
	)
	f, err := t.newFragment(expr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	f.SetMetadata("result_type", "Quantity")
	mergeDeps(f, target)
	return f, nil
}

// partialDateTimePattern matches a FHIR date/dateTime at any precision
// (year only, year-month, full date, or a full timestamp with an optional
// time and offset) -- spec section 4.5: convertsToDateTime('2015') is TRUE
// even though '2015' alone is not a valid SQL timestamp literal.
var partialDateTimePattern = quoteSQLString(
	`^[0-9]{4}(-[0-9]{2}(-[0-9]{2}(T[0-9]{2}(:[0-9]{2}(:[0-9]{2}(\.[0-9]+)?)?)?(Z|[+-][0-9]{2}:[0-9]{2})?)?)?)?$`,
)

// partialTimePattern matches a FHIR time at any precision (hour, hour-
// minute, or full hour-minute-second with optional fraction).
var partialTimePattern = quoteSQLString(
	`^[0-9]{2}(:[0-9]{2}(:[0-9]{2}(\.[0-9]+)?)?)?$`,
)

// convertsToCheck builds a convertsTo<Type>() handler: true when the
// corresponding toX() cast would not collapse to NULL. datetime and time
// additionally accept partial-precision strings a safe timestamp cast
// alone would reject, via a regex pattern test (spec section 4.5).
func convertsToCheck(targetType string) functionHandler {
	return func(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
		if err := t.requireArgCount(call, 0); err != nil {
			return nil, err
		}
		var expr string
		switch targetType {
		case "boolean":
			expr = fmt.Sprintf("(%s IS NOT NULL)", t.dialect.SafeCastToBoolean(target.Expression))
		case "integer":
			expr = fmt.Sprintf("(%s IS NOT NULL)", t.dialect.SafeCastToInteger(target.Expression))
		case "decimal":
			expr = fmt.Sprintf("(%s IS NOT NULL)", t.dialect.SafeCastToDecimal(target.Expression))
		case "datetime":
			castExpr := t.dialect.SafeCastToTimestamp(target.Expression)
			regexExpr := t.dialect.GenerateRegexMatch(target.Expression, partialDateTimePattern)
			expr = fmt.Sprintf("(%s IS NOT NULL OR %s)", castExpr, regexExpr)
		case "time":
			castExpr := t.dialect.SafeCastToTimestamp(target.Expression)
			regexExpr := t.dialect.GenerateRegexMatch(target.Expression, partialTimePattern)
			expr = fmt.Sprintf("(%s IS NOT NULL OR %s)", castExpr, regexExpr)
		case "string":
			expr = fmt.Sprintf("(%s IS NOT NULL)", t.dialect.ExtractJSONString(target.Expression, "$"))
		}
		f, err := scalarFragment(t, expr)
		if err != nil {
			return nil, err
		}
		mergeDeps(f, target)
		return f, nil
	}
}
