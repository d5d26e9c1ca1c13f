// Package fhirpath2sql compiles FHIRPath expression ASTs into ordered
// SQL Fragment chains. The parser that produces those ASTs, the CTE
// assembler that consumes the resulting fragments, and concrete Dialect/
// TypeOracle implementations are explicitly out of scope: this module is
// the visitor-driven translation core between them.
package fhirpath2sql

import (
	"github.com/fhirsql/fhirpath2sql/internal/ast"
	"github.com/fhirsql/fhirpath2sql/internal/dialect"
	"github.com/fhirsql/fhirpath2sql/internal/fragment"
	"github.com/fhirsql/fhirpath2sql/internal/translator"
	"github.com/fhirsql/fhirpath2sql/internal/typeoracle"
)

// Node is the AST node interface a parser implements and a Translator
// consumes. See the ast subpackage for the closed set of concrete node
// types (Literal, Identifier, FunctionCall, Operator, Conditional,
// Aggregation, TypeOperation).
type Node = ast.Node

// Fragment is one logical step of a translated FHIRPath expression.
type Fragment = fragment.Fragment

// Dialect is the database-specific SQL syntax capability interface a
// Translator depends on. Concrete implementations live outside this
// module.
type Dialect = dialect.Dialect

// DialectKind names a known target database family; it is descriptive
// metadata only, never branched on by the Translator itself.
type DialectKind = dialect.Kind

const (
	DialectUnspecified = dialect.KindUnspecified
	DialectBigQuery    = dialect.KindBigQuery
	DialectSpanner     = dialect.KindSpanner
	DialectPostgreSQL  = dialect.KindPostgreSQL
	DialectDuckDB      = dialect.KindDuckDB
	DialectClickHouse  = dialect.KindClickHouse
)

// TypeOracle answers the FHIR StructureDefinition questions a Translator
// needs: canonical type names, primitive/complex/resource classification,
// element typing, array cardinality, and polymorphic property variants.
// Concrete implementations (backed by a StructureDefinition registry)
// live outside this module.
type TypeOracle = typeoracle.Oracle

// TypeMetadata describes one canonical FHIR type's classification.
type TypeMetadata = typeoracle.TypeMetadata

// Discriminator lists the fields a structural is/as check requires to be
// present for a complex-type match.
type Discriminator = typeoracle.Discriminator

// Config bundles everything a Translator needs.
type Config = translator.Config

// Translator is a visitor over the FHIRPath AST node set. It owns every
// FHIRPath function, operator, and type-operation semantic; Fragment,
// the Context it threads internally, TypeOracle, and Dialect are its
// collaborators.
//
// A Translator is not safe for concurrent use; construct one per
// goroutine, or serialize calls to Translate.
type Translator = translator.Translator

// New constructs a Translator from cfg. cfg.Dialect and cfg.TypeOracle
// must be non-nil.
func New(cfg Config) *Translator {
	return translator.New(cfg)
}
