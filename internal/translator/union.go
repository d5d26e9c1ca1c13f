package translator

import (
	"fmt"
	"strings"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/context"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

// visitUnion implements | / union (spec section 4.4). Operands are
// collected from the left-associative chain BEFORE any of them is
// translated -- this ordering is correctness-critical (spec section 9):
// translating eagerly while descending would force naive recursion into
// retranslating shared prefixes and blow up exponentially in the operand
// count. Collecting first keeps this linear in the number of operands.
func (t *Translator) visitUnion(op *ast.Operator) (*fragment.Fragment, error) {
	operands := collectUnionOperands(op)

	basePath := t.ctx.ParentPath()
	baseScopes := t.ctx.SnapshotVariableScopes()

	branches := make([]string, 0, len(operands))
	var deps []string
	for i, operand := range operands {
		t.ctx.RestoreVariableScopes(baseScopes)
		restorePath(t.ctx, basePath)

		f, err := t.translateChild(operand)
		if err != nil {
			return nil, err
		}
		branches = append(branches, fmt.Sprintf(
			"SELECT %d AS op_idx, ROW_NUMBER() OVER () AS item_idx, %s AS value FROM %s",
			i, f.Expression, f.SourceTable,
		))
		deps = append(deps, f.Dependencies...)
		deps = append(deps, f.SourceTable)
	}

	t.ctx.RestoreVariableScopes(baseScopes)
	restorePath(t.ctx, basePath)

	unionSQL := strings.Join(branches, " UNION ALL ")
	aggExpr := t.dialect.AggregateToJSONArray("value ORDER BY op_idx, item_idx")
	expr := fmt.Sprintf("(SELECT %s FROM (%s) AS union_operands)", aggExpr, unionSQL)

	cteName := t.ctx.NextCTEName()
	f, err := t.newFragment(expr, cteName)
	if err != nil {
		return nil, err
	}
	f.IsAggregate = true
	f.SetMetadata("operator", op.Symbol)
	for _, d := range dedupe(deps) {
		f.AddDependency(d)
	}
	return t.appendFragment(f), nil
}

// collectUnionOperands flattens a left-associative chain of union-kind
// operator nodes sharing the same symbol family into a flat operand
// list, in source order.
func collectUnionOperands(op *ast.Operator) []ast.Node {
	var operands []ast.Node
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		unwrapped := ast.Unwrap(n)
		if inner, ok := unwrapped.(*ast.Operator); ok && inner.Kind == ast.KindUnion {
			for _, child := range inner.Children {
				walk(child)
			}
			return
		}
		operands = append(operands, unwrapped)
	}
	walk(op)
	return operands
}

func restorePath(c *context.Context, base []string) {
	for {
		if len(c.ParentPath()) <= len(base) {
			break
		}
		if _, ok := c.PopPath(); !ok {
			break
		}
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
