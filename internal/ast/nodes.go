// Package ast defines the closed set of FHIRPath AST node variants the
// translator visits. Dispatch is a tagged union expressed as a Go
// interface plus a fixed set of concrete struct types: each node knows
// how to accept a Visitor, the Visitor has one method per variant, and
// there is no open-ended type switch scattered through the translator.
package ast

import "github.com/fhirsql/fhirpath2sql/internal/fragment"

// Node is implemented by every AST variant. Every node carries its
// original source text so the translator can attach it to diagnostics.
type Node interface {
	Accept(v Visitor) (*fragment.Fragment, error)
	Text() string
}

// Visitor is implemented by the translator. Every method returns exactly
// one Fragment describing the current step; significant operations also
// append earlier-step fragments to the translator's running list as a
// side effect of visiting their children.
type Visitor interface {
	VisitLiteral(*Literal) (*fragment.Fragment, error)
	VisitIdentifier(*Identifier) (*fragment.Fragment, error)
	VisitFunctionCall(*FunctionCall) (*fragment.Fragment, error)
	VisitOperator(*Operator) (*fragment.Fragment, error)
	VisitConditional(*Conditional) (*fragment.Fragment, error)
	VisitAggregation(*Aggregation) (*fragment.Fragment, error)
	VisitTypeOperation(*TypeOperation) (*fragment.Fragment, error)
}

// LiteralType enumerates the FHIRPath literal kinds spec section 3 lists.
type LiteralType string

const (
	LiteralString         LiteralType = "string"
	LiteralInteger        LiteralType = "integer"
	LiteralDecimal        LiteralType = "decimal"
	LiteralBoolean        LiteralType = "boolean"
	LiteralDate           LiteralType = "date"
	LiteralDateTime       LiteralType = "datetime"
	LiteralTime           LiteralType = "time"
	LiteralEmptyCollection LiteralType = "empty_collection"
	LiteralUnknown        LiteralType = "unknown"
)

// Literal is a constant value appearing in a FHIRPath expression.
type Literal struct {
	SourceText string
	Value      string
	Type       LiteralType
}

func NewLiteral(sourceText, value string, t LiteralType) *Literal {
	return &Literal{SourceText: sourceText, Value: value, Type: t}
}

func (l *Literal) Text() string { return l.SourceText }
func (l *Literal) Accept(v Visitor) (*fragment.Fragment, error) { return v.VisitLiteral(l) }

// InferLiteralType checks booleans before integers because a
// boolean value is also representable as an integer, so the boolean
// check must win when the raw value could be read either way.
func InferLiteralType(raw any) LiteralType {
	switch raw.(type) {
	case bool:
		return LiteralBoolean
	case int, int32, int64:
		return LiteralInteger
	case float32, float64:
		return LiteralDecimal
	case string:
		return LiteralString
	case nil:
		return LiteralEmptyCollection
	default:
		return LiteralUnknown
	}
}

// Identifier is a (possibly dotted) path navigation step, or a variable
// reference when Text begins with "$".
type Identifier struct {
	SourceText string
	Components []string
}

func NewIdentifier(sourceText string, components []string) *Identifier {
	return &Identifier{SourceText: sourceText, Components: components}
}

func (i *Identifier) Text() string { return i.SourceText }
func (i *Identifier) Accept(v Visitor) (*fragment.Fragment, error) { return v.VisitIdentifier(i) }

// IsVariable reports whether this identifier references a lambda/user
// variable ($this, $index, $total, or a user-defined %variable).
func (i *Identifier) IsVariable() bool {
	return len(i.SourceText) > 0 && (i.SourceText[0] == '$' || i.SourceText[0] == '%')
}

// FunctionCall is a named function invocation, optionally against an
// explicit target expression (the node preceding ".name(...)").
type FunctionCall struct {
	SourceText string
	Name       string
	Arguments  []Node
	Target     Node // nil when the target is implicit (current context)
}

func NewFunctionCall(sourceText, name string, target Node, args ...Node) *FunctionCall {
	return &FunctionCall{SourceText: sourceText, Name: name, Target: target, Arguments: args}
}

func (f *FunctionCall) Text() string { return f.SourceText }
func (f *FunctionCall) Accept(v Visitor) (*fragment.Fragment, error) { return v.VisitFunctionCall(f) }

// OperatorKind classifies an Operator node for dispatch.
type OperatorKind string

const (
	KindUnary      OperatorKind = "unary"
	KindBinary     OperatorKind = "binary"
	KindComparison OperatorKind = "comparison"
	KindLogical    OperatorKind = "logical"
	KindUnion      OperatorKind = "union"
	KindArithmetic OperatorKind = "arithmetic"
)

var comparisonSymbols = map[string]bool{"=": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true, "~": true, "!~": true}
var logicalSymbols = map[string]bool{"and": true, "or": true, "xor": true, "implies": true}
var unionSymbols = map[string]bool{"|": true, "union": true}
var unaryOnlySymbols = map[string]bool{"not": true}
var arithmeticSymbols = map[string]bool{"+": true, "-": true, "*": true, "/": true, "div": true, "mod": true}

// ClassifyOperator derives an OperatorKind from symbol and arity:
// comparison, then logical, then union, then unary-only, then
// arithmetic (two or more children), falling back to arity (one child ->
// unary, so a one-child "+" or "-" is unary; else binary).
func ClassifyOperator(symbol string, childCount int) OperatorKind {
	switch {
	case comparisonSymbols[symbol]:
		return KindComparison
	case logicalSymbols[symbol]:
		return KindLogical
	case unionSymbols[symbol]:
		return KindUnion
	case unaryOnlySymbols[symbol]:
		return KindUnary
	case arithmeticSymbols[symbol] && childCount != 1:
		return KindArithmetic
	case childCount == 1:
		return KindUnary
	default:
		return KindBinary
	}
}

// Operator is a unary, binary, comparison, logical, union or arithmetic
// operator application.
type Operator struct {
	SourceText string
	Symbol     string
	Kind       OperatorKind
	Children   []Node
}

func NewOperator(sourceText, symbol string, children ...Node) *Operator {
	return &Operator{SourceText: sourceText, Symbol: symbol, Kind: ClassifyOperator(symbol, len(children)), Children: children}
}

func (o *Operator) Text() string { return o.SourceText }
func (o *Operator) Accept(v Visitor) (*fragment.Fragment, error) { return v.VisitOperator(o) }

// Conditional represents the where/select/exists family when a parser
// emits a dedicated condition node instead of a FunctionCall. The
// translator treats it identically to the corresponding function call.
type Conditional struct {
	SourceText    string
	Target        Node
	Condition     Node
	ConditionType string // "where", "select", or "exists"
}

func NewConditional(sourceText string, target, condition Node, conditionType string) *Conditional {
	return &Conditional{SourceText: sourceText, Target: target, Condition: condition, ConditionType: conditionType}
}

func (c *Conditional) Text() string { return c.SourceText }
func (c *Conditional) Accept(v Visitor) (*fragment.Fragment, error) { return v.VisitConditional(c) }

// Aggregation represents a named aggregate shorthand (count, sum, avg,
// min, max, distinct) applied to a target collection.
type Aggregation struct {
	SourceText string
	Function   string
	Target     Node
}

var validAggregationFunctions = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true, "distinct": true,
}

func NewAggregation(sourceText, function string, target Node) *Aggregation {
	return &Aggregation{SourceText: sourceText, Function: function, Target: target}
}

// IsValidFunction reports whether Function is one of the recognized
// aggregation shorthands.
func (a *Aggregation) IsValidFunction() bool { return validAggregationFunctions[a.Function] }

func (a *Aggregation) Text() string { return a.SourceText }
func (a *Aggregation) Accept(v Visitor) (*fragment.Fragment, error) { return v.VisitAggregation(a) }

// TypeOperation represents is/as/ofType.
type TypeOperation struct {
	SourceText string
	Op         string // "is", "as", or "ofType"
	Target     Node
	TargetType string
}

func NewTypeOperation(sourceText, op string, target Node, targetType string) *TypeOperation {
	return &TypeOperation{SourceText: sourceText, Op: op, Target: target, TargetType: targetType}
}

func (t *TypeOperation) Text() string { return t.SourceText }
func (t *TypeOperation) Accept(v Visitor) (*fragment.Fragment, error) { return v.VisitTypeOperation(t) }

// Container wraps a parser's "enhanced" grammar nodes (InvocationExpression,
// TermExpression, UnionExpression, and similar single-child wrapper
// productions) that carry no translation semantics of their own. The
// translator tolerates them by recursing transparently into Child.
type Container struct {
	SourceText string
	Kind       string
	Child      Node
}

func NewContainer(sourceText, kind string, child Node) *Container {
	return &Container{SourceText: sourceText, Kind: kind, Child: child}
}

func (c *Container) Text() string { return c.SourceText }

func (c *Container) Accept(v Visitor) (*fragment.Fragment, error) {
	return c.Child.Accept(v)
}

// Unwrap recurses through any chain of single-child Container nodes and
// returns the first non-Container node reached.
func Unwrap(n Node) Node {
	for {
		c, ok := n.(*Container)
		if !ok {
			return n
		}
		n = c.Child
	}
}
