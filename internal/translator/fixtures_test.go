package translator

import (
	"fmt"
	"strings"

	"github.com/fhirsql/fhirpath2sql/internal/dialect"
	"github.com/fhirsql/fhirpath2sql/internal/typeoracle"
)

// fakeDialect is a deterministic, pure stand-in for a real Dialect
// implementation. It favors simple, greppable output over anything a
// real database would accept, since tests assert against its exact
// shape rather than executing it.
type fakeDialect struct{}

func (fakeDialect) Name() string { return "fake" }

func (fakeDialect) ExtractJSONField(col, path string) string {
	return fmt.Sprintf("JSON_EXTRACT(%s, '%s')", col, path)
}
func (fakeDialect) ExtractJSONObject(col, path string) string {
	return fmt.Sprintf("JSON_EXTRACT_OBJECT(%s, '%s')", col, path)
}
func (fakeDialect) ExtractPrimitiveValue(col, path string) string {
	return fmt.Sprintf("JSON_EXTRACT_SCALAR(%s, '%s')", col, path)
}
func (fakeDialect) ExtractJSONString(expr, path string) string {
	return fmt.Sprintf("JSON_EXTRACT_STRING(%s, '%s')", expr, path)
}
func (fakeDialect) GetJSONType(expr string) string       { return fmt.Sprintf("JSON_TYPE(%s)", expr) }
func (fakeDialect) GetJSONArrayLength(expr string) string { return fmt.Sprintf("JSON_ARRAY_LENGTH(%s)", expr) }
func (fakeDialect) IsJSONArray(expr string) string       { return fmt.Sprintf("IS_ARRAY(%s)", expr) }
func (fakeDialect) WrapJSONArray(expr string) string     { return fmt.Sprintf("JSON_ARRAY(%s)", expr) }
func (fakeDialect) EmptyJSONArray() string               { return "JSON_ARRAY()" }
func (fakeDialect) CheckJSONExists(col, path string) string {
	return fmt.Sprintf("JSON_EXISTS(%s, '%s')", col, path)
}
func (fakeDialect) JSONArrayContains(arr, needle string) string {
	return fmt.Sprintf("ARRAY_CONTAINS(%s, %s)", arr, needle)
}

func (fakeDialect) UnnestJSONArray(col, path, alias string) string {
	return fmt.Sprintf("UNNEST(%s, '%s') AS %s", col, path, alias)
}
func (fakeDialect) EnumerateJSONArray(expr, valueAlias, indexAlias string) string {
	return fmt.Sprintf("ENUMERATE(%s) AS (%s, %s)", expr, valueAlias, indexAlias)
}
func (fakeDialect) AggregateToJSONArray(exprWithOrderBy string) string {
	return fmt.Sprintf("JSON_AGG(%s)", exprWithOrderBy)
}
func (fakeDialect) SerializeJSONValue(expr string) string { return fmt.Sprintf("TO_JSON(%s)", expr) }
func (fakeDialect) ProjectJSONArray(arr string, components []string) string {
	return fmt.Sprintf("PROJECT(%s, [%s])", arr, strings.Join(components, ", "))
}
func (fakeDialect) GenerateArrayFirst(arr string) string { return fmt.Sprintf("ARRAY_FIRST(%s)", arr) }
func (fakeDialect) GenerateArrayLast(arr string) string  { return fmt.Sprintf("ARRAY_LAST(%s)", arr) }
func (fakeDialect) GenerateArraySkip(arr, n string) string {
	return fmt.Sprintf("ARRAY_SKIP(%s, %s)", arr, n)
}
func (fakeDialect) GenerateArrayTake(arr, n string) string {
	return fmt.Sprintf("ARRAY_TAKE(%s, %s)", arr, n)
}

func (fakeDialect) GenerateComparison(left, op, right string) string {
	return fmt.Sprintf("(%s %s %s)", left, op, right)
}
func (fakeDialect) GenerateLogicalCombine(left, op, right string) string {
	return fmt.Sprintf("(%s %s %s)", left, op, right)
}
func (fakeDialect) GenerateXor(left, right string) string {
	return fmt.Sprintf("(%s XOR %s)", left, right)
}
func (fakeDialect) GenerateBooleanNot(expr string) string { return fmt.Sprintf("(NOT %s)", expr) }
func (fakeDialect) GenerateTypeCheck(expr, fhirType string) string {
	return fmt.Sprintf("IS_TYPE(%s, '%s')", expr, fhirType)
}
func (fakeDialect) GenerateTypeCast(expr, fhirType string) string {
	return fmt.Sprintf("CAST_TYPE(%s, '%s')", expr, fhirType)
}
func (fakeDialect) GenerateCollectionTypeFilter(arr, fhirType string) string {
	return fmt.Sprintf("FILTER_TYPE(%s, '%s')", arr, fhirType)
}

func (fakeDialect) SafeCastToInteger(expr string) string   { return fmt.Sprintf("SAFE_CAST(%s AS INT)", expr) }
func (fakeDialect) SafeCastToDecimal(expr string) string   { return fmt.Sprintf("SAFE_CAST(%s AS DECIMAL)", expr) }
func (fakeDialect) SafeCastToDate(expr string) string      { return fmt.Sprintf("SAFE_CAST(%s AS DATE)", expr) }
func (fakeDialect) SafeCastToTimestamp(expr string) string { return fmt.Sprintf("SAFE_CAST(%s AS TIMESTAMP)", expr) }
func (fakeDialect) SafeCastToBoolean(expr string) string   { return fmt.Sprintf("SAFE_CAST(%s AS BOOL)", expr) }
func (fakeDialect) CastToDouble(expr string) string        { return fmt.Sprintf("CAST(%s AS DOUBLE)", expr) }

func (fakeDialect) GenerateDateLiteral(value string) string     { return fmt.Sprintf("DATE '%s'", value) }
func (fakeDialect) GenerateDateTimeLiteral(value string) string { return fmt.Sprintf("TIMESTAMP '%s'", value) }
func (fakeDialect) GenerateTimeLiteral(value string) string     { return fmt.Sprintf("TIME '%s'", value) }
func (fakeDialect) GenerateCurrentDate() string                 { return "CURRENT_DATE" }
func (fakeDialect) GenerateCurrentTimestamp() string            { return "CURRENT_TIMESTAMP" }
func (fakeDialect) GenerateCurrentTime() string                 { return "CURRENT_TIME" }
func (fakeDialect) GenerateTemporalBoundary(expr, fhirType string, precision int, kind string, hasTimezone bool) string {
	return fmt.Sprintf("TEMPORAL_BOUNDARY(%s, '%s', %d, '%s', %v)", expr, fhirType, precision, kind, hasTimezone)
}
func (fakeDialect) GenerateDecimalBoundary(expr string, precision int, kind string) string {
	return fmt.Sprintf("DECIMAL_BOUNDARY(%s, %d, '%s')", expr, precision, kind)
}
func (fakeDialect) GenerateIntervalExpr(amount string, unit string) string {
	return fmt.Sprintf("INTERVAL '%s' %s", amount, unit)
}

func (fakeDialect) GenerateMathFunction(name string, args ...string) string {
	return fmt.Sprintf("%s(%s)", strings.ToUpper(name), strings.Join(args, ", "))
}
func (fakeDialect) GenerateDecimalDivision(numerator, denominator string) string {
	return fmt.Sprintf("(%s / %s)", numerator, denominator)
}
func (fakeDialect) GenerateIntegerDivision(numerator, denominator string) string {
	return fmt.Sprintf("DIV(%s, %s)", numerator, denominator)
}
func (fakeDialect) GenerateModulo(left, right string) string {
	return fmt.Sprintf("MOD(%s, %s)", left, right)
}
func (fakeDialect) StringConcat(left, right string) string { return fmt.Sprintf("(%s || %s)", left, right) }
func (fakeDialect) GenerateStringFunction(name string, args ...string) string {
	return fmt.Sprintf("%s(%s)", strings.ToUpper(name), strings.Join(args, ", "))
}
func (fakeDialect) GenerateSubstringCheck(s, sub string) string {
	return fmt.Sprintf("CONTAINS(%s, %s)", s, sub)
}
func (fakeDialect) GeneratePrefixCheck(s, prefix string) string {
	return fmt.Sprintf("STARTS_WITH(%s, %s)", s, prefix)
}
func (fakeDialect) GenerateSuffixCheck(s, suffix string) string {
	return fmt.Sprintf("ENDS_WITH(%s, %s)", s, suffix)
}
func (fakeDialect) GenerateCaseConversion(s string, upper bool) string {
	if upper {
		return fmt.Sprintf("UPPER(%s)", s)
	}
	return fmt.Sprintf("LOWER(%s)", s)
}
func (fakeDialect) GenerateTrim(s string) string       { return fmt.Sprintf("TRIM(%s)", s) }
func (fakeDialect) GenerateCharArray(s string) string  { return fmt.Sprintf("TO_CHAR_ARRAY(%s)", s) }
func (fakeDialect) GenerateRegexMatch(s, pattern string) string {
	return fmt.Sprintf("REGEXP_MATCH(%s, %s)", s, pattern)
}
func (fakeDialect) GenerateRegexReplace(s, pattern, replacement string) string {
	return fmt.Sprintf("REGEXP_REPLACE(%s, %s, %s)", s, pattern, replacement)
}
func (fakeDialect) SplitString(s, delimiter string) string {
	return fmt.Sprintf("SPLIT(%s, %s)", s, delimiter)
}
func (fakeDialect) GenerateStringJoin(collection, separator string, isJSON bool) string {
	return fmt.Sprintf("STRING_JOIN(%s, %s, %v)", collection, separator, isJSON)
}
func (fakeDialect) GenerateArrayToString(arr, separator string) string {
	return fmt.Sprintf("ARRAY_TO_STRING(%s, %s)", arr, separator)
}

func (fakeDialect) GenerateAggregateFunction(name, expr string) string {
	return fmt.Sprintf("%s(%s)", strings.ToUpper(name), expr)
}
func (fakeDialect) GenerateAllCheck(sourceTable, condition string) string {
	return fmt.Sprintf("ALL_CHECK(%s, %s)", sourceTable, condition)
}
func (fakeDialect) GenerateAllTrue(arr string) string  { return fmt.Sprintf("ALL_TRUE(%s)", arr) }
func (fakeDialect) GenerateAnyTrue(arr string) string  { return fmt.Sprintf("ANY_TRUE(%s)", arr) }
func (fakeDialect) GenerateAllFalse(arr string) string { return fmt.Sprintf("ALL_FALSE(%s)", arr) }
func (fakeDialect) GenerateAnyFalse(arr string) string { return fmt.Sprintf("ANY_FALSE(%s)", arr) }
func (fakeDialect) GenerateDistinct(expr string) string { return fmt.Sprintf("DISTINCT(%s)", expr) }
func (fakeDialect) GenerateIsDistinct(expr string) string {
	return fmt.Sprintf("IS_DISTINCT(%s)", expr)
}
func (fakeDialect) IsFinite(expr string) string { return fmt.Sprintf("IS_FINITE(%s)", expr) }

var _ dialect.Dialect = fakeDialect{}

// fakeOracle answers a tiny, hand-built slice of the Patient/HumanName
// StructureDefinition shape: enough surface for path navigation, array
// cardinality, and polymorphic-property tests without pulling in a real
// FHIR definitions registry (explicitly out of scope for this package).
type fakeOracle struct{}

type elementEntry struct {
	elementType string
	isArray     bool
}

var fakeElements = map[string]map[string]elementEntry{
	"Patient": {
		"name":        {elementType: "HumanName", isArray: true},
		"active":      {elementType: "boolean", isArray: false},
		"birthDate":   {elementType: "date", isArray: false},
		"identifier":  {elementType: "Identifier", isArray: true},
		"deceased":    {elementType: "", isArray: false}, // polymorphic base, resolved separately
	},
	"HumanName": {
		"family": {elementType: "string", isArray: false},
		"given":  {elementType: "string", isArray: true},
		"use":    {elementType: "string", isArray: false},
	},
	"Observation": {
		"value":  {elementType: "", isArray: false}, // polymorphic base
		"status": {elementType: "code", isArray: false},
	},
}

var fakeTypeMeta = map[string]typeoracle.TypeMetadata{
	"boolean":     {IsPrimitive: true, BaseType: ""},
	"string":      {IsPrimitive: true, BaseType: ""},
	"date":        {IsPrimitive: true, BaseType: ""},
	"code":        {IsPrimitive: true, BaseType: "string"},
	"integer":     {IsPrimitive: true, BaseType: ""},
	"decimal":     {IsPrimitive: true, BaseType: ""},
	"HumanName":   {IsComplex: true},
	"Identifier":  {IsComplex: true},
	"Quantity":    {IsComplex: true},
	"Patient":     {IsResource: true},
	"Observation": {IsResource: true},
}

var fakePolymorphic = map[string][]string{
	"deceased": {"deceasedBoolean", "deceasedDateTime"},
	"value":    {"valueQuantity", "valueString", "valueBoolean", "valueInteger"},
}

var fakeDiscriminators = map[string]typeoracle.Discriminator{
	"HumanName": {RequiredFields: []string{"family"}},
	"Quantity":  {RequiredFields: []string{"value", "unit"}},
}

func (fakeOracle) CanonicalTypeName(name string) (string, bool) {
	switch name {
	case "bool":
		return "boolean", true
	}
	if _, ok := fakeTypeMeta[name]; ok {
		return name, true
	}
	return "", false
}

func (fakeOracle) TypeMetadata(canonical string) (typeoracle.TypeMetadata, bool) {
	m, ok := fakeTypeMeta[canonical]
	return m, ok
}

func (fakeOracle) ElementType(parentType, path string) (string, bool) {
	last := path
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		last = path[idx+1:]
	}
	entry, ok := fakeElements[parentType][last]
	if !ok || entry.elementType == "" {
		return "", false
	}
	return entry.elementType, true
}

func (fakeOracle) IsArrayElement(parentType, path string) bool {
	last := path
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		last = path[idx+1:]
	}
	return fakeElements[parentType][last].isArray
}

func (fakeOracle) ResolvePolymorphicProperty(base string) ([]string, bool) {
	v, ok := fakePolymorphic[base]
	return v, ok
}

func (fakeOracle) ResolvePolymorphicFieldForType(base, targetType string) (string, bool) {
	for _, v := range fakePolymorphic[base] {
		if strings.EqualFold(v, base+targetType) {
			return v, true
		}
	}
	return "", false
}

func (fakeOracle) TypeDiscriminator(canonical string) (typeoracle.Discriminator, bool) {
	d, ok := fakeDiscriminators[canonical]
	return d, ok
}

var _ typeoracle.Oracle = fakeOracle{}

func newTestTranslator() *Translator {
	return New(Config{
		Dialect:           fakeDialect{},
		TypeOracle:        fakeOracle{},
		RootResourceTable: "resource",
		RootResourceType:  "Patient",
	})
}

func newTestTranslatorWithToQuantityExtension() *Translator {
	return New(Config{
		Dialect:                   fakeDialect{},
		TypeOracle:                fakeOracle{},
		RootResourceTable:         "resource",
		RootResourceType:          "Patient",
		EnableToQuantityExtension: true,
	})
}
