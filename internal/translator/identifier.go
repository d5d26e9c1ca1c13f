package translator

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/fhirpatherr"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
)

// VisitIdentifier implements spec section 4.3: path navigation,
// variable-scope resolution, array-aware traversal (emitting an unnest
// fragment for each array-cardinality component), and
// polymorphic-property COALESCE expansion.
func (t *Translator) VisitIdentifier(id *ast.Identifier) (*fragment.Fragment, error) {
	if id.IsVariable() {
		return t.visitVariableReference(id)
	}

	components := id.Components
	if len(components) == 0 {
		components = strings.Split(id.SourceText, ".")
	}
	// Leading components matching the current resource type are skipped
	// (e.g. "Patient.name" inside a Patient-rooted translation is
	// equivalent to "name").
	if len(components) > 0 && components[0] == t.ctx.CurrentResourceType {
		components = components[1:]
	}
	if len(components) == 0 {
		// Bare resource-type reference: the identity path.
		return t.newFragment(t.ctx.CurrentTable+".resource", t.ctx.CurrentTable)
	}

	if col, elemType, active := t.ctx.CurrentElementColumn(); active {
		return t.visitFromElementColumn(id, col, elemType, components)
	}

	return t.translateIdentifierComponents(id, components)
}

func (t *Translator) visitVariableReference(id *ast.Identifier) (*fragment.Fragment, error) {
	head := id.SourceText
	rest := ""
	if idx := strings.Index(head, "."); idx >= 0 {
		rest = head[idx+1:]
		head = head[:idx]
	}
	binding, ok := t.ctx.GetVariable(head)
	if !ok {
		return nil, t.validationErr(fhirpatherr.ErrUnboundVariable, "unbound_variable_reference", id.SourceText,
			"variable %q is not bound in the current scope", head)
	}
	expr := binding.Expression
	if rest != "" {
		path := "$." + strings.ReplaceAll(rest, ".", ".")
		expr = t.dialect.ExtractJSONField(expr, path)
	}
	f, err := t.newFragment(expr, binding.SourceTable)
	if err != nil {
		return nil, err
	}
	f.RequiresUnnest = binding.RequiresUnnest
	f.IsAggregate = binding.IsAggregate
	for _, d := range binding.Dependencies {
		f.AddDependency(d)
	}
	return f, nil
}

// translateIdentifierComponents walks components against the TypeOracle.
// Each array-declared component triggers an unnest fragment (new CTE
// step, appended to the chain); non-array components that follow become
// plain JSON extraction off the most recent unnest's alias.
func (t *Translator) translateIdentifierComponents(id *ast.Identifier, components []string) (*fragment.Fragment, error) {
	parentType := t.ctx.CurrentResourceType
	sourceExpr := t.ctx.CurrentTable + ".resource"
	sourceTable := t.ctx.CurrentTable

	pathSoFar := ""
	for i, comp := range components {
		t.ctx.PushPath(comp)
		if pathSoFar == "" {
			pathSoFar = comp
		} else {
			pathSoFar = pathSoFar + "." + comp
		}

		resolved, polymorphic := t.resolvePolymorphicComponent(sourceExpr, comp)
		elementType, _ := t.oracle.ElementType(parentType, pathSoFar)
		isArray := t.oracle.IsArrayElement(parentType, pathSoFar) || t.isPrimitiveCollectionFallback(parentType, pathSoFar)

		var extracted string
		if polymorphic {
			extracted = resolved
		} else {
			extracted = t.dialect.ExtractJSONField(sourceExpr, "$."+comp)
		}

		if isArray {
			alias := t.generateUnnestAlias(comp)
			unnestFrag, err := t.newFragment(
				t.dialect.UnnestJSONArray(sourceExpr, "$."+comp, alias),
				t.ctx.NextCTEName(),
			)
			if err != nil {
				return nil, err
			}
			unnestFrag.RequiresUnnest = true
			unnestFrag.AddDependency(sourceTable)
			unnestFrag.SetMetadata("source_path", pathSoFar)
			unnestFrag.SetMetadata("result_alias", alias)
			unnestFrag.SetMetadata("array_column", comp)
			unnestFrag.SetMetadata("projection_expression", extracted)
			unnestFrag.SetMetadata("unnest_level", i+1)
			if elemMeta, ok := t.oracle.TypeMetadata(elementType); ok {
				unnestFrag.SetMetadata("element_is_primitive", elemMeta.IsPrimitive)
			}
			t.appendFragment(unnestFrag)
			t.ctx.RegisterColumnAlias(pathSoFar, alias)

			sourceExpr = alias
			sourceTable = unnestFrag.SourceTable
			parentType = elementType
			pathSoFar = ""
			continue
		}

		sourceExpr = extracted
		parentType = elementType
	}

	f, err := t.newFragment(sourceExpr, sourceTable)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// visitFromElementColumn extracts from the active current-element column
// rather than the resource root, per the state machine in spec section
// 4.6: "identifiers extract from that column per array cardinality".
func (t *Translator) visitFromElementColumn(id *ast.Identifier, col, elemType string, components []string) (*fragment.Fragment, error) {
	sourceExpr := col
	parentType := elemType
	pathSoFar := ""
	for _, comp := range components {
		t.ctx.PushPath(comp)
		if pathSoFar == "" {
			pathSoFar = comp
		} else {
			pathSoFar = pathSoFar + "." + comp
		}
		isArray := t.oracle.IsArrayElement(parentType, pathSoFar)
		elementType, _ := t.oracle.ElementType(parentType, pathSoFar)
		if isArray {
			alias := t.generateUnnestAlias(comp)
			unnestFrag, err := t.newFragment(
				t.dialect.UnnestJSONArray(sourceExpr, "$."+comp, alias),
				t.ctx.NextCTEName(),
			)
			if err != nil {
				return nil, err
			}
			unnestFrag.RequiresUnnest = true
			unnestFrag.SetMetadata("from_element_column", true)
			unnestFrag.SetMetadata("source_path", pathSoFar)
			unnestFrag.SetMetadata("result_alias", alias)
			if elemMeta, ok := t.oracle.TypeMetadata(elementType); ok {
				unnestFrag.SetMetadata("element_is_primitive", elemMeta.IsPrimitive)
			}
			t.appendFragment(unnestFrag)
			sourceExpr = alias
			parentType = elementType
			pathSoFar = ""
			t.ctx.ClearCurrentElementColumn()
			continue
		}
		if elementMeta, ok := t.oracle.TypeMetadata(elementType); ok && elementMeta.IsPrimitive {
			sourceExpr = t.dialect.ExtractPrimitiveValue(sourceExpr, "$."+comp)
		} else {
			sourceExpr = t.dialect.ExtractJSONObject(sourceExpr, "$."+comp)
		}
		parentType = elementType
	}
	if _, _, active := t.ctx.CurrentElementColumn(); active {
		t.ctx.ClearCurrentElementColumn()
	}
	return t.newFragment(sourceExpr, t.ctx.CurrentTable)
}

// resolvePolymorphicComponent consults the TypeOracle for a polymorphic
// base property (e.g. "value" under Observation). When no disambiguating
// type cast is in scope it emits a COALESCE over every declared variant;
// the translator never hardcodes variant names itself (spec section 9),
// except the narrow Age/Duration -> Quantity alias the original
// implementation carries for arithmetic convenience.
func (t *Translator) resolvePolymorphicComponent(sourceExpr, comp string) (expr string, isPolymorphic bool) {
	variants, ok := t.oracle.ResolvePolymorphicProperty(comp)
	if !ok || len(variants) == 0 {
		return "", false
	}
	extracted := make([]string, 0, len(variants))
	for _, v := range variants {
		extracted = append(extracted, t.dialect.ExtractJSONField(sourceExpr, "$."+v))
	}
	return fmt.Sprintf("COALESCE(%s)", strings.Join(extracted, ", ")), true
}

// isPrimitiveCollectionFallback is a last-resort, hardcoded field-name
// heuristic for when the TypeOracle cannot answer IsArrayElement
// (Open Question decision: StructureDefinition-backed answers always
// take precedence; this only fires when the oracle is silent).
var primitiveCollectionFields = map[string]bool{
	"coding": true, "identifier": true, "telecom": true, "address": true,
	"name": true, "extension": true, "contained": true, "given": true,
}

func (t *Translator) isPrimitiveCollectionFallback(parentType, path string) bool {
	if _, ok := t.oracle.ElementType(parentType, path); ok {
		return false
	}
	last := path
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		last = path[idx+1:]
	}
	return primitiveCollectionFields[last]
}

// generateUnnestAlias sanitizes comp into a CTE-friendly alias and
// disambiguates repeated components by an incrementing count, per spec
// section 4.3 ("sanitized component name + '_item', disambiguated by
// count").
func (t *Translator) generateUnnestAlias(comp string) string {
	base := strcase.ToSnake(comp) + "_item"
	t.aliasCounters[base]++
	n := t.aliasCounters[base]
	if n == 1 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, n)
}

