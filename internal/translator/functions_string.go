package translator

import (
	"fmt"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

func init() {
	registerFunction("substring", fnSubstring)
	registerFunction("indexof", fnIndexOf)
	registerFunction("length", fnLength)
	registerFunction("replace", fnReplace)
	registerFunction("split", fnSplit)
	registerFunction("upper", fnUpper)
	registerFunction("lower", fnLower)
	registerFunction("trim", fnTrim)
	registerFunction("contains", fnContains)
	registerFunction("startswith", fnStartsWith)
	registerFunction("endswith", fnEndsWith)
	registerFunction("matches", fnMatches)
	registerFunction("replacematches", fnReplaceMatches)
	registerFunction("tochars", fnToChars)
	registerFunction("join", fnJoin)
}

func scalarFragment(t *Translator, expr string) (*fragment.Fragment, error) {
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	return f, nil
}

// fnSubstring converts FHIRPath's 0-based start to the dialect's 1-based
// offset, then guards the result (spec section 4.5): a NULL target, start,
// or length yields NULL; a negative start or a zero length yields '' rather
// than reaching the underlying SQL substring function at all.
func fnSubstring(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgRange(call, 1, 2); err != nil {
		return nil, err
	}
	start, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	lengthArg := ""
	var lengthFrag *fragment.Fragment
	if len(call.Arguments) == 2 {
		lengthFrag, err = t.translateChild(call.Arguments[1])
		if err != nil {
			return nil, err
		}
		lengthArg = lengthFrag.Expression
	}
	var inner string
	if lengthArg == "" {
		inner = t.dialect.GenerateStringFunction("substring", target.Expression, fmt.Sprintf("%s + 1", start.Expression))
	} else {
		inner = t.dialect.GenerateStringFunction("substring", target.Expression, fmt.Sprintf("%s + 1", start.Expression), lengthArg)
	}
	nullGuard := fmt.Sprintf("%s IS NULL OR %s IS NULL", target.Expression, start.Expression)
	emptyGuard := fmt.Sprintf("%s < 0", start.Expression)
	if lengthArg != "" {
		nullGuard += fmt.Sprintf(" OR %s IS NULL", lengthArg)
		emptyGuard += fmt.Sprintf(" OR %s = 0", lengthArg)
	}
	expr := fmt.Sprintf("CASE WHEN %s THEN NULL WHEN %s THEN '' ELSE %s END", nullGuard, emptyGuard, inner)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, start, lengthFrag)
	return f, nil
}

func fnIndexOf(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	needle, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	expr := fmt.Sprintf("(%s - 1)", t.dialect.GenerateStringFunction("instr", target.Expression, needle.Expression))
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, needle)
	return f, nil
}

func fnLength(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateStringFunction("length", target.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnReplace(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 2); err != nil {
		return nil, err
	}
	pattern, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	replacement, err := t.translateChild(call.Arguments[1])
	if err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateStringFunction("replace", target.Expression, pattern.Expression, replacement.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, pattern, replacement)
	return f, nil
}

func fnSplit(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	delimiter, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	expr := t.dialect.SplitString(target.Expression, delimiter.Expression)
	f, err := t.newFragment(expr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	f.IsAggregate = true
	mergeDeps(f, target, delimiter)
	return f, nil
}

func fnUpper(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return caseConversion(t, call, target, true)
}

func fnLower(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return caseConversion(t, call, target, false)
}

func caseConversion(t *Translator, call *ast.FunctionCall, target *fragment.Fragment, upper bool) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateCaseConversion(target.Expression, upper)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnTrim(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateTrim(target.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnContains(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	sub, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateSubstringCheck(target.Expression, sub.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, sub)
	return f, nil
}

func fnStartsWith(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	prefix, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	expr := t.dialect.GeneratePrefixCheck(target.Expression, prefix.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, prefix)
	return f, nil
}

func fnEndsWith(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	suffix, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateSuffixCheck(target.Expression, suffix.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, suffix)
	return f, nil
}

func fnMatches(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	pattern, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateRegexMatch(target.Expression, pattern.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, pattern)
	return f, nil
}

func fnReplaceMatches(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 2); err != nil {
		return nil, err
	}
	pattern, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	replacement, err := t.translateChild(call.Arguments[1])
	if err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateRegexReplace(target.Expression, pattern.Expression, replacement.Expression)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, pattern, replacement)
	return f, nil
}

func fnToChars(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateCharArray(target.Expression)
	f, err := t.newFragment(expr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	f.IsAggregate = true
	mergeDeps(f, target)
	return f, nil
}

func fnJoin(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgRange(call, 0, 1); err != nil {
		return nil, err
	}
	separator := "''"
	if len(call.Arguments) == 1 {
		sep, err := t.translateChild(call.Arguments[0])
		if err != nil {
			return nil, err
		}
		separator = sep.Expression
	}
	expr := t.dialect.GenerateStringJoin(target.Expression, separator, target.IsAggregate)
	f, err := scalarFragment(t, expr)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}
