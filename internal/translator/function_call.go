package translator

import (
	"strings"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

// functionHandler implements one FHIRPath function's SQL generation. It
// receives the already-translated target fragment (spec section 4.5's
// "_resolve_function_target" concern is reduced, in this Go port, to
// translating the explicit Target AST edge the parser supplies rather
// than re-parsing source text) plus the call's raw argument AST nodes.
type functionHandler func(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error)

var functionDispatch = map[string]functionHandler{}

func registerFunction(name string, h functionHandler) {
	functionDispatch[name] = h
}

// VisitFunctionCall is the single dispatcher spec section 4.5 describes,
// routing on the lowercased function name. Function calls are
// significant operations: each gets its own fragment, appended to the
// translator's running list.
func (t *Translator) VisitFunctionCall(call *ast.FunctionCall) (*fragment.Fragment, error) {
	name := strings.ToLower(call.Name)
	handler, ok := functionDispatch[name]
	if !ok {
		return nil, t.validationErr(fhirpatherr.ErrUnknownFunction, "unknown_function", call.SourceText,
			"unknown FHIRPath function %q", call.Name)
	}

	target, err := t.resolveFunctionTarget(call)
	if err != nil {
		return nil, err
	}

	result, err := handler(t, call, target)
	if err != nil {
		return nil, err
	}
	result.SetMetadata("function", name)
	return t.appendFragment(result), nil
}

// VisitConditional treats the where/select/exists condition-node family
// identically to the corresponding function call, for parsers that emit
// a dedicated node instead of a FunctionCall.
func (t *Translator) VisitConditional(c *ast.Conditional) (*fragment.Fragment, error) {
	call := ast.NewFunctionCall(c.SourceText, c.ConditionType, c.Target, c.Condition)
	return t.VisitFunctionCall(call)
}

// VisitAggregation treats the count/sum/avg/min/max/distinct shorthand
// identically to the corresponding function call.
func (t *Translator) VisitAggregation(a *ast.Aggregation) (*fragment.Fragment, error) {
	if !a.IsValidFunction() {
		return nil, t.validationErr(fhirpatherr.ErrUnknownFunction, "unknown_aggregation_function", a.SourceText,
			"unknown aggregation shorthand %q", a.Function)
	}
	call := ast.NewFunctionCall(a.SourceText, a.Function, a.Target)
	return t.VisitFunctionCall(call)
}

// resolveFunctionTarget translates the call's target expression, falling
// back to the current resource root when the target is implicit (spec
// section 4.5: "falls back to current context").
func (t *Translator) resolveFunctionTarget(call *ast.FunctionCall) (*fragment.Fragment, error) {
	if call.Target != nil {
		return t.translateChild(call.Target)
	}
	if col, _, active := t.ctx.CurrentElementColumn(); active {
		return t.newFragment(col, t.ctx.CurrentTable)
	}
	return t.newFragment(t.ctx.CurrentTable+".resource", t.ctx.CurrentTable)
}

// requireArgCount validates call.Arguments has exactly n entries.
func (t *Translator) requireArgCount(call *ast.FunctionCall, n int) error {
	if len(call.Arguments) != n {
		return t.validationErr(fhirpatherr.ErrWrongArgumentCount, "wrong_argument_count", call.SourceText,
			"%s() requires exactly %d argument(s), got %d", call.Name, n, len(call.Arguments))
	}
	return nil
}

// requireArgRange validates call.Arguments has between min and max entries.
func (t *Translator) requireArgRange(call *ast.FunctionCall, min, max int) error {
	n := len(call.Arguments)
	if n < min || n > max {
		return t.validationErr(fhirpatherr.ErrWrongArgumentCount, "wrong_argument_count", call.SourceText,
			"%s() requires %d-%d argument(s), got %d", call.Name, min, max, n)
	}
	return nil
}
