// Package fragment defines the immutable-by-convention value type the
// translator emits for each significant step of a FHIRPath expression
// chain. Fragments are handed off to a separately specified CTE assembler.
package fragment

import "fmt"

// Fragment represents one logical step of a translated FHIRPath
// expression: a SQL expression plus the bookkeeping the CTE assembler
// needs to wire fragments together (source table/CTE, unnest/aggregate
// flags, dependency ordering, and an open metadata bag).
//
// Fragments are append-only: once returned from a visitor method and
// appended to the translation's fragment list, nothing mutates their
// fields again.
type Fragment struct {
	Expression     string
	SourceTable    string
	RequiresUnnest bool
	IsAggregate    bool
	Dependencies   []string
	Metadata       map[string]any
}

// New constructs a Fragment, defaulting SourceTable to "resource" and
// validating the invariants spec section 3 requires of every fragment.
func New(expression string) (*Fragment, error) {
	return build(expression, "resource")
}

// NewWithSource constructs a Fragment against an explicit source table/CTE.
func NewWithSource(expression, sourceTable string) (*Fragment, error) {
	return build(expression, sourceTable)
}

func build(expression, sourceTable string) (*Fragment, error) {
	if expression == "" {
		return nil, fmt.Errorf("fragment: expression must be non-empty")
	}
	if sourceTable == "" {
		sourceTable = "resource"
	}
	return &Fragment{
		Expression:   expression,
		SourceTable:  sourceTable,
		Dependencies: nil,
		Metadata:     make(map[string]any),
	}, nil
}

// AddDependency appends dependency to Dependencies if not already present,
// preserving insertion order (spec section 3: "ordered, no dup").
func (f *Fragment) AddDependency(dependency string) {
	for _, d := range f.Dependencies {
		if d == dependency {
			return
		}
	}
	f.Dependencies = append(f.Dependencies, dependency)
}

// SetMetadata stores a metadata value under key.
func (f *Fragment) SetMetadata(key string, value any) {
	if f.Metadata == nil {
		f.Metadata = make(map[string]any)
	}
	f.Metadata[key] = value
}

// GetMetadata retrieves a metadata value, returning def if absent.
func (f *Fragment) GetMetadata(key string, def any) any {
	if v, ok := f.Metadata[key]; ok {
		return v
	}
	return def
}

// MetadataBool is a typed convenience wrapper over GetMetadata for the
// many boolean metadata flags the translator sets (is_empty_collection,
// is_collection, from_element_column, pass_through, has_cardinality_check).
func (f *Fragment) MetadataBool(key string) bool {
	v, _ := f.Metadata[key].(bool)
	return v
}

// MetadataString is a typed convenience wrapper over GetMetadata.
func (f *Fragment) MetadataString(key string) string {
	v, _ := f.Metadata[key].(string)
	return v
}

// Clone returns a deep-enough copy safe to mutate independently (new
// Dependencies slice and Metadata map, same underlying metadata values).
func (f *Fragment) Clone() *Fragment {
	c := *f
	c.Dependencies = append([]string(nil), f.Dependencies...)
	c.Metadata = make(map[string]any, len(f.Metadata))
	for k, v := range f.Metadata {
		c.Metadata[k] = v
	}
	return &c
}
