package translator

import (
	"fmt"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

func init() {
	registerFunction("abs", fnAbs)
	registerFunction("ceiling", fnCeiling)
	registerFunction("floor", fnFloor)
	registerFunction("round", fnRound)
	registerFunction("truncate", fnTruncate)
	registerFunction("sqrt", fnSqrt)
	registerFunction("exp", fnExp)
	registerFunction("ln", fnLn)
	registerFunction("log", fnLog)
	registerFunction("power", fnPower)
}

func mathFunction(t *Translator, target *fragment.Fragment, name string, extra ...string) (*fragment.Fragment, error) {
	args := append([]string{target.Expression}, extra...)
	expr := t.dialect.GenerateMathFunction(name, args...)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnAbs(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	return mathFunction(t, target, "abs")
}

func fnCeiling(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	return mathFunction(t, target, "ceiling")
}

func fnFloor(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	return mathFunction(t, target, "floor")
}

func fnRound(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgRange(call, 0, 1); err != nil {
		return nil, err
	}
	if len(call.Arguments) == 0 {
		return mathFunction(t, target, "round")
	}
	precision, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	f, err := mathFunction(t, target, "round", precision.Expression)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, precision)
	return f, nil
}

func fnTruncate(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	return mathFunction(t, target, "truncate")
}

// domainGuardedMathFunction wraps a math function whose domain excludes
// part of the real line (sqrt of a negative number, ln of a non-positive
// one; log builds its own guard) in a CASE
// that yields SQL NULL -- FHIRPath empty -- instead of letting the
// underlying SQL function raise (spec section 4.5's math domain guards).
func domainGuardedMathFunction(t *Translator, target *fragment.Fragment, name, guardCond string) (*fragment.Fragment, error) {
	inner := t.dialect.GenerateMathFunction(name, target.Expression)
	expr := fmt.Sprintf("CASE WHEN %s THEN NULL ELSE %s END", guardCond, inner)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnSqrt(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	return domainGuardedMathFunction(t, target, "sqrt", fmt.Sprintf("%s < 0", target.Expression))
}

func fnExp(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	return mathFunction(t, target, "exp")
}

func fnLn(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	return domainGuardedMathFunction(t, target, "ln", fmt.Sprintf("%s <= 0", target.Expression))
}

func fnLog(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	base, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	guard := fmt.Sprintf("%s <= 0 OR %s <= 0 OR %s = 1", target.Expression, base.Expression, base.Expression)
	// log(x, base) = ln(x) / ln(base) (spec section 4.5): no dialect has a
	// dedicated two-argument log primitive, so this composes from ln twice
	// rather than delegating to a "log" math function name.
	lnX := t.dialect.GenerateMathFunction("ln", target.Expression)
	lnBase := t.dialect.GenerateMathFunction("ln", base.Expression)
	inner := t.dialect.GenerateDecimalDivision(lnX, lnBase)
	expr := fmt.Sprintf("CASE WHEN %s THEN NULL ELSE %s END", guard, inner)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, base)
	return f, nil
}

func fnPower(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	exponent, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	// A negative base raised to a fractional exponent has no real result;
	// FHIRPath defines power() as returning {} in that case rather than
	// raising (spec section 4.5).
	guard := fmt.Sprintf("%s < 0 AND %s != FLOOR(%s)", target.Expression, exponent.Expression, exponent.Expression)
	inner := t.dialect.GenerateMathFunction("power", target.Expression, exponent.Expression)
	expr := fmt.Sprintf("CASE WHEN %s THEN NULL ELSE %s END", guard, inner)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, exponent)
	return f, nil
}
