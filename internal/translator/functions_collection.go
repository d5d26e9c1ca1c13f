package translator

import (
	"fmt"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/context"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

func init() {
	registerFunction("where", fnWhere)
	registerFunction("select", fnSelect)
	registerFunction("exists", fnExists)
	registerFunction("empty", fnEmpty)
	registerFunction("first", fnFirst)
	registerFunction("last", fnLast)
	registerFunction("skip", fnSkip)
	registerFunction("take", fnTake)
	registerFunction("tail", fnTail)
	registerFunction("single", fnSingle)
	registerFunction("count", fnCount)
	registerFunction("sum", aggregateReduce("sum"))
	registerFunction("avg", aggregateReduce("avg"))
	registerFunction("min", aggregateReduce("min"))
	registerFunction("max", aggregateReduce("max"))
	registerFunction("distinct", fnDistinct)
	registerFunction("isdistinct", fnIsDistinct)
	registerFunction("intersect", fnIntersect)
	registerFunction("exclude", fnExclude)
	registerFunction("subsetof", fnSubsetOf)
	registerFunction("supersetof", fnSupersetOf)
	registerFunction("combine", fnCombine)
	registerFunction("aggregate", fnAggregate)
	registerFunction("repeat", fnRepeat)
	registerFunction("all", fnAll)
	registerFunction("alltrue", fnAllTrue)
	registerFunction("anytrue", fnAnyTrue)
	registerFunction("allfalse", fnAllFalse)
	registerFunction("anyfalse", fnAnyFalse)
}

// withLambdaScope translates a single lambda-body argument with $this
// (and, when requested, $index/$total) bound in a fresh scope, restoring
// the enclosing scope afterward regardless of outcome.
func (t *Translator) withLambdaScope(target *fragment.Fragment, bindIndexTotal bool, body ast.Node) (*fragment.Fragment, error) {
	t.ctx.PushVariableScope(false)
	defer func() { _ = t.ctx.PopVariableScope() }()

	t.ctx.BindVariable("$this", context.VariableBinding{
		Expression: target.Expression, SourceTable: target.SourceTable, RequiresUnnest: target.RequiresUnnest,
	})
	if bindIndexTotal {
		t.ctx.BindVariable("$index", context.VariableBinding{Expression: "item_idx", SourceTable: target.SourceTable})
		t.ctx.BindVariable("$total", context.VariableBinding{Expression: "total_count", SourceTable: target.SourceTable})
	}
	return t.translateChild(body)
}

// lastUnnestOf reports the chain's most recent unnest step when target is
// exactly its result column -- i.e. target is a freshly unnested
// collection rather than a value derived from one further downstream.
func lastUnnestOf(t *Translator, target *fragment.Fragment) *fragment.Fragment {
	unnest := t.lastUnnestFragment()
	if unnest == nil || unnest.SourceTable != target.SourceTable || unnest.MetadataString("result_alias") != target.Expression {
		return nil
	}
	return unnest
}

// thisBindingExpr is the value $this binds to inside a where()/exists()
// lambda over an unnested collection: the raw alias for complex-typed
// elements, or that alias unwrapped to a scalar for primitive-typed ones
// (spec section 4.5).
func (t *Translator) thisBindingExpr(target, unnest *fragment.Fragment) string {
	if unnest.MetadataBool("element_is_primitive") {
		return t.dialect.ExtractPrimitiveValue(target.Expression, "$")
	}
	return target.Expression
}

// translateWithThisBoundToUnnest binds $this to unnest's result column
// (via thisBindingExpr) and translates body in that scope.
func (t *Translator) translateWithThisBoundToUnnest(target, unnest *fragment.Fragment, body ast.Node) (*fragment.Fragment, error) {
	t.ctx.PushVariableScope(false)
	defer func() { _ = t.ctx.PopVariableScope() }()
	t.ctx.BindVariable("$this", context.VariableBinding{
		Expression: t.thisBindingExpr(target, unnest), SourceTable: target.SourceTable, RequiresUnnest: target.RequiresUnnest,
	})
	return t.translateChild(body)
}

// fnWhere filters a collection to items matching a criterion lambda (spec
// section 4.5). When target is already the result column of the chain's
// most recent unnest step, $this binds directly to that column and the
// criterion becomes a where_filter metadata key the CTE assembler
// materializes as a WHERE clause on the unnest's own CTE (spec section 8
// scenario 2), instead of wrapping the collection in a fresh inline
// subquery.
func fnWhere(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	if unnest := lastUnnestOf(t, target); unnest != nil {
		cond, err := t.translateWithThisBoundToUnnest(target, unnest, call.Arguments[0])
		if err != nil {
			return nil, err
		}
		f, err := t.newFragment(target.Expression, target.SourceTable)
		if err != nil {
			return nil, err
		}
		f.SetMetadata("is_collection", true)
		f.SetMetadata("where_filter", cond.Expression)
		mergeDeps(f, target, cond)
		return f, nil
	}

	cond, err := t.withLambdaScope(target, false, call.Arguments[0])
	if err != nil {
		return nil, err
	}
	cteName := t.ctx.NextCTEName()
	expr := fmt.Sprintf(
		"(SELECT %s FROM (SELECT value FROM %s WHERE %s) AS filtered)",
		t.dialect.AggregateToJSONArray("value"), target.SourceTable, cond.Expression,
	)
	f, err := t.newFragment(expr, cteName)
	if err != nil {
		return nil, err
	}
	f.IsAggregate = true
	f.SetMetadata("is_collection", true)
	mergeDeps(f, target, cond)
	return f, nil
}

func fnSelect(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	projection, err := t.withLambdaScope(target, false, call.Arguments[0])
	if err != nil {
		return nil, err
	}
	cteName := t.ctx.NextCTEName()
	expr := fmt.Sprintf(
		"(SELECT %s FROM (SELECT %s AS value FROM %s) AS projected)",
		t.dialect.AggregateToJSONArray("value"), projection.Expression, target.SourceTable,
	)
	f, err := t.newFragment(expr, cteName)
	if err != nil {
		return nil, err
	}
	f.IsAggregate = true
	f.SetMetadata("is_collection", true)
	mergeDeps(f, target, projection)
	return f, nil
}

func fnExists(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgRange(call, 0, 1); err != nil {
		return nil, err
	}
	if len(call.Arguments) == 0 {
		expr := t.dialect.GenerateAggregateFunction("exists", target.Expression)
		f, err := t.newFragment(expr, t.ctx.CurrentTable)
		if err != nil {
			return nil, err
		}
		f.RequiresUnnest = false
		mergeDeps(f, target)
		return f, nil
	}

	// Same unnest-detection branch as fnWhere: an EXISTS over the
	// unnest's own source table with the criterion applied directly,
	// rather than materializing a filtered array first only to ask
	// whether it's non-empty.
	if unnest := lastUnnestOf(t, target); unnest != nil {
		cond, err := t.translateWithThisBoundToUnnest(target, unnest, call.Arguments[0])
		if err != nil {
			return nil, err
		}
		expr := fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)", unnest.SourceTable, cond.Expression)
		f, err := t.newFragment(expr, t.ctx.CurrentTable)
		if err != nil {
			return nil, err
		}
		f.RequiresUnnest = false
		mergeDeps(f, target, cond)
		return f, nil
	}

	filtered, err := fnWhere(t, call, target)
	if err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateAggregateFunction("exists", filtered.Expression)
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	mergeDeps(f, filtered)
	return f, nil
}

func fnEmpty(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateAggregateFunction("empty", target.Expression)
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	mergeDeps(f, target)
	return f, nil
}

func fnFirst(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return sliceFunction(t, call, target, "first")
}

func fnLast(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return sliceFunction(t, call, target, "last")
}

func fnTail(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return sliceFunction(t, call, target, "skip")
}

func sliceFunction(t *Translator, call *ast.FunctionCall, target *fragment.Fragment, kind string) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	var expr string
	switch kind {
	case "first":
		expr = t.dialect.GenerateArrayFirst(target.Expression)
	case "last":
		expr = t.dialect.GenerateArrayLast(target.Expression)
	case "skip":
		expr = t.dialect.GenerateArraySkip(target.Expression, "1")
	}
	f, err := t.newFragment(expr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnSkip(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	n, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateArraySkip(target.Expression, n.Expression)
	f, err := t.newFragment(expr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, n)
	return f, nil
}

func fnTake(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	n, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateArrayTake(target.Expression, n.Expression)
	f, err := t.newFragment(expr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target, n)
	return f, nil
}

func fnSingle(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	lengthExpr := t.dialect.GetJSONArrayLength(target.Expression)
	expr := fmt.Sprintf(
		"CASE WHEN %s > 1 THEN NULL ELSE %s END",
		lengthExpr, t.dialect.GenerateArrayFirst(target.Expression),
	)
	f, err := t.newFragment(expr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	mergeDeps(f, target)
	return f, nil
}

func fnCount(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.GetJSONArrayLength(target.Expression)
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	mergeDeps(f, target)
	return f, nil
}

// aggregateReduce builds the sum/avg/min/max numeric aggregation shorthands
// (spec section 3's Aggregation node): each reduces a collection to a
// single scalar, so, like count(), the result never requires unnest.
func aggregateReduce(name string) functionHandler {
	return func(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
		if err := t.requireArgCount(call, 0); err != nil {
			return nil, err
		}
		expr := t.dialect.GenerateAggregateFunction(name, target.Expression)
		f, err := t.newFragment(expr, t.ctx.CurrentTable)
		if err != nil {
			return nil, err
		}
		f.RequiresUnnest = false
		mergeDeps(f, target)
		return f, nil
	}
}

func fnDistinct(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateDistinct(target.Expression)
	f, err := t.newFragment(expr, target.SourceTable)
	if err != nil {
		return nil, err
	}
	f.IsAggregate = true
	f.SetMetadata("is_collection", true)
	mergeDeps(f, target)
	return f, nil
}

func fnIsDistinct(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateIsDistinct(target.Expression)
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	mergeDeps(f, target)
	return f, nil
}

func setOperation(t *Translator, call *ast.FunctionCall, target *fragment.Fragment, sqlSetOp string) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	other, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	cteName := t.ctx.NextCTEName()
	expr := fmt.Sprintf(
		"(SELECT %s FROM ((SELECT value FROM %s) %s (SELECT value FROM %s)) AS set_result)",
		t.dialect.AggregateToJSONArray("value"), target.SourceTable, sqlSetOp, other.SourceTable,
	)
	f, err := t.newFragment(expr, cteName)
	if err != nil {
		return nil, err
	}
	f.IsAggregate = true
	f.SetMetadata("is_collection", true)
	mergeDeps(f, target, other)
	return f, nil
}

func fnIntersect(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return setOperation(t, call, target, "INTERSECT")
}

func fnExclude(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return setOperation(t, call, target, "EXCEPT")
}

func subsetSupersetCheck(t *Translator, call *ast.FunctionCall, target *fragment.Fragment, flip bool) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	other, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	small, big := target, other
	if flip {
		small, big = other, target
	}
	expr := fmt.Sprintf(
		"NOT EXISTS (SELECT value FROM %s EXCEPT SELECT value FROM %s)",
		small.SourceTable, big.SourceTable,
	)
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	mergeDeps(f, target, other)
	return f, nil
}

func fnSubsetOf(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return subsetSupersetCheck(t, call, target, false)
}

func fnSupersetOf(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return subsetSupersetCheck(t, call, target, true)
}

// fnCombine: union of two collections without deduplication, operand
// count fixed at two (spec section 9 Open Question: FHIRPath's combine
// only ever takes one argument, so a 3+ operand chain is a left fold of
// pairwise combine() calls rather than a single flattened n-ary union).
func fnCombine(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	other, err := t.translateChild(call.Arguments[0])
	if err != nil {
		return nil, err
	}
	cteName := t.ctx.NextCTEName()
	expr := fmt.Sprintf(
		"(SELECT %s FROM ((SELECT value FROM %s) UNION ALL (SELECT value FROM %s)) AS combined)",
		t.dialect.AggregateToJSONArray("value"), target.SourceTable, other.SourceTable,
	)
	f, err := t.newFragment(expr, cteName)
	if err != nil {
		return nil, err
	}
	f.IsAggregate = true
	f.SetMetadata("is_collection", true)
	mergeDeps(f, target, other)
	return f, nil
}

// fnAggregate implements aggregate(aggregator [, init]) with $this and
// $total bound in the lambda scope; $total starts at init (or NULL).
func fnAggregate(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgRange(call, 1, 2); err != nil {
		return nil, err
	}
	initExpr := "NULL"
	if len(call.Arguments) == 2 {
		initFrag, err := t.translateChild(call.Arguments[1])
		if err != nil {
			return nil, err
		}
		initExpr = initFrag.Expression
	}

	t.ctx.PushVariableScope(false)
	t.ctx.BindVariable("$this", context.VariableBinding{Expression: "value", SourceTable: target.SourceTable})
	t.ctx.BindVariable("$total", context.VariableBinding{Expression: "acc.running_total", SourceTable: target.SourceTable})
	body, err := t.translateChild(call.Arguments[0])
	_ = t.ctx.PopVariableScope()
	if err != nil {
		return nil, err
	}

	cteName := t.ctx.NextCTEName()
	expr := fmt.Sprintf(
		"(WITH RECURSIVE acc(running_total, remaining) AS ("+
			"SELECT %s, (SELECT %s FROM %s) "+
			"UNION ALL "+
			"SELECT %s, %s FROM acc, LATERAL (SELECT value FROM %s LIMIT 1) AS value "+
			"WHERE %s > 0) "+
			"SELECT running_total FROM acc ORDER BY running_total DESC LIMIT 1)",
		initExpr, t.dialect.AggregateToJSONArray("value"), target.SourceTable,
		body.Expression, "remaining", target.SourceTable,
		t.dialect.GetJSONArrayLength("remaining"),
	)
	f, err := t.newFragment(expr, cteName)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	mergeDeps(f, target, body)
	return f, nil
}

// fnRepeat implements the recursive-closure traversal repeat(projection)
// as a recursive CTE, capped at Config.RepeatDepthLimit to guarantee
// termination against cyclic resource graphs (spec section 4.5).
func fnRepeat(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	projection, err := t.withLambdaScope(target, false, call.Arguments[0])
	if err != nil {
		return nil, err
	}
	cteName := t.ctx.NextCTEName()
	expr := fmt.Sprintf(
		"(WITH RECURSIVE %s_closure(value, depth) AS ("+
			"SELECT value, 1 FROM %s "+
			"UNION ALL "+
			"SELECT %s, depth + 1 FROM %s_closure WHERE depth < %d) "+
			"SELECT %s FROM %s_closure)",
		cteName, target.SourceTable,
		projection.Expression, cteName, t.repeatCap,
		t.dialect.AggregateToJSONArray("DISTINCT value"), cteName,
	)
	f, err := t.newFragment(expr, cteName)
	if err != nil {
		return nil, err
	}
	f.IsAggregate = true
	f.SetMetadata("is_collection", true)
	mergeDeps(f, target, projection)
	return f, nil
}

func fnAll(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 1); err != nil {
		return nil, err
	}
	cond, err := t.withLambdaScope(target, false, call.Arguments[0])
	if err != nil {
		return nil, err
	}
	expr := t.dialect.GenerateAllCheck(target.SourceTable, cond.Expression)
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	mergeDeps(f, target, cond)
	return f, nil
}

func quantifierFunction(t *Translator, call *ast.FunctionCall, target *fragment.Fragment, kind string) (*fragment.Fragment, error) {
	if err := t.requireArgCount(call, 0); err != nil {
		return nil, err
	}
	var expr string
	switch kind {
	case "allTrue":
		expr = t.dialect.GenerateAllTrue(target.Expression)
	case "anyTrue":
		expr = t.dialect.GenerateAnyTrue(target.Expression)
	case "allFalse":
		expr = t.dialect.GenerateAllFalse(target.Expression)
	case "anyFalse":
		expr = t.dialect.GenerateAnyFalse(target.Expression)
	}
	f, err := t.newFragment(expr, t.ctx.CurrentTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = false
	mergeDeps(f, target)
	return f, nil
}

func fnAllTrue(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return quantifierFunction(t, call, target, "allTrue")
}
func fnAnyTrue(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return quantifierFunction(t, call, target, "anyTrue")
}
func fnAllFalse(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return quantifierFunction(t, call, target, "allFalse")
}
func fnAnyFalse(t *Translator, call *ast.FunctionCall, target *fragment.Fragment) (*fragment.Fragment, error) {
	return quantifierFunction(t, call, target, "anyFalse")
}

func mergeDeps(f *fragment.Fragment, sources ...*fragment.Fragment) {
	for _, s := range sources {
		if s == nil {
			continue
		}
		f.AddDependency(s.SourceTable)
		for _, d := range s.Dependencies {
			f.AddDependency(d)
		}
	}
}
