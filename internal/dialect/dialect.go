// Package dialect declares the database-specific SQL syntax primitives
// the translator depends on. The teacher this module is adapted from
// models a dialect as an enum with internal per-method switch statements;
// here the dialect is a capability interface instead, because concrete
// dialect implementations are explicitly out of scope for this module
// (spec section 1) while the capability surface they must expose is
// exactly specified (spec section 6). Implementations must be pure (no
// I/O) and safe for concurrent use by multiple translators.
package dialect

import "fmt"

// Kind names a known target database family. It is metadata a concrete
// Dialect implementation may expose (via Name below) for logging and
// error messages; the translator never switches on it directly.
type Kind int

const (
	KindUnspecified Kind = iota
	KindBigQuery
	KindSpanner
	KindPostgreSQL
	KindDuckDB
	KindClickHouse
)

func (k Kind) String() string {
	switch k {
	case KindBigQuery:
		return "BigQuery"
	case KindSpanner:
		return "Spanner"
	case KindPostgreSQL:
		return "PostgreSQL"
	case KindDuckDB:
		return "DuckDB"
	case KindClickHouse:
		return "ClickHouse"
	case KindUnspecified:
		return "Unspecified"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// IsValid reports whether k names one of the known database families.
func (k Kind) IsValid() bool {
	return k > KindUnspecified && k <= KindClickHouse
}

// Validate returns an error unless k names a known database family.
func (k Kind) Validate() error {
	if !k.IsValid() {
		return fmt.Errorf("dialect: invalid kind %s", k)
	}
	return nil
}

// Dialect is the full set of SQL-generation primitives the translator
// calls to stay free of database-specific syntax.
type Dialect interface {
	// Name identifies the dialect for diagnostics; it carries no
	// translation semantics.
	Name() string

	// --- JSON access ---
	ExtractJSONField(col, path string) string
	ExtractJSONObject(col, path string) string
	ExtractPrimitiveValue(col, path string) string
	ExtractJSONString(expr, path string) string
	GetJSONType(expr string) string
	GetJSONArrayLength(expr string) string
	IsJSONArray(expr string) string
	WrapJSONArray(expr string) string
	EmptyJSONArray() string
	CheckJSONExists(col, path string) string
	JSONArrayContains(arr, needle string) string

	// --- Array operations ---
	UnnestJSONArray(col, path, alias string) string
	EnumerateJSONArray(expr, valueAlias, indexAlias string) string
	AggregateToJSONArray(exprWithOrderBy string) string
	SerializeJSONValue(expr string) string
	ProjectJSONArray(arr string, components []string) string
	GenerateArrayFirst(arr string) string
	GenerateArrayLast(arr string) string
	GenerateArraySkip(arr, n string) string
	GenerateArrayTake(arr, n string) string

	// --- Comparisons & logic ---
	GenerateComparison(left, op, right string) string
	GenerateLogicalCombine(left, op, right string) string
	GenerateXor(left, right string) string
	GenerateBooleanNot(expr string) string
	GenerateTypeCheck(expr, fhirType string) string
	GenerateTypeCast(expr, fhirType string) string
	GenerateCollectionTypeFilter(arr, fhirType string) string

	// --- Casts (NULL on failure) ---
	SafeCastToInteger(expr string) string
	SafeCastToDecimal(expr string) string
	SafeCastToDate(expr string) string
	SafeCastToTimestamp(expr string) string
	SafeCastToBoolean(expr string) string
	CastToDouble(expr string) string

	// --- Temporal ---
	GenerateDateLiteral(value string) string
	GenerateDateTimeLiteral(value string) string
	GenerateTimeLiteral(value string) string
	GenerateCurrentDate() string
	GenerateCurrentTimestamp() string
	GenerateCurrentTime() string
	// GenerateTemporalBoundary emits the SQL for highBoundary/lowBoundary
	// applied to a temporal value. kind is "low" or "high".
	GenerateTemporalBoundary(expr, fhirType string, precision int, kind string, hasTimezone bool) string
	GenerateDecimalBoundary(expr string, precision int, kind string) string
	// GenerateIntervalExpr builds a dialect interval literal/expression
	// for temporal +/- quantity arithmetic (spec section 4.4).
	GenerateIntervalExpr(amount string, unit string) string

	// --- Math & strings ---
	GenerateMathFunction(name string, args ...string) string
	GenerateDecimalDivision(numerator, denominator string) string
	GenerateIntegerDivision(numerator, denominator string) string
	GenerateModulo(left, right string) string
	StringConcat(left, right string) string
	GenerateStringFunction(name string, args ...string) string
	GenerateSubstringCheck(s, sub string) string
	GeneratePrefixCheck(s, prefix string) string
	GenerateSuffixCheck(s, suffix string) string
	GenerateCaseConversion(s string, upper bool) string
	GenerateTrim(s string) string
	GenerateCharArray(s string) string
	GenerateRegexMatch(s, pattern string) string
	GenerateRegexReplace(s, pattern, replacement string) string
	SplitString(s, delimiter string) string
	GenerateStringJoin(collection, separator string, isJSON bool) string
	GenerateArrayToString(arr, separator string) string

	// --- Aggregates ---
	GenerateAggregateFunction(name, expr string) string
	GenerateAllCheck(sourceTable, condition string) string
	GenerateAllTrue(arr string) string
	GenerateAnyTrue(arr string) string
	GenerateAllFalse(arr string) string
	GenerateAnyFalse(arr string) string
	GenerateDistinct(expr string) string
	GenerateIsDistinct(expr string) string
	IsFinite(expr string) string
}
