// Package typeoracle declares the read-only FHIR type oracle the
// translator consults. Implementations (backed by a StructureDefinition
// loader) are out of scope here; the translator is written entirely
// against this interface, per spec section 6.
package typeoracle

// TypeMetadata describes a canonical FHIR type.
type TypeMetadata struct {
	IsPrimitive bool
	IsComplex   bool
	IsResource  bool
	BaseType    string // "" if there is none
}

// Discriminator lists the structural fields required for a complex-type
// cast to be considered valid (spec section 4.5, "Type Discriminator table").
type Discriminator struct {
	RequiredFields []string
}

// Oracle is the read-only, pure interface the translator consults for
// everything it needs to know about the FHIR type system. Implementations
// must be safe for concurrent use by multiple translators.
type Oracle interface {
	// CanonicalTypeName resolves an alias or short name to its canonical
	// FHIR type name. Returns ("", false) if the name is not recognized.
	CanonicalTypeName(name string) (string, bool)

	// TypeMetadata returns classification metadata for a canonical type
	// name. Returns (TypeMetadata{}, false) if unknown.
	TypeMetadata(canonical string) (TypeMetadata, bool)

	// ElementType returns the declared type of a path element under a
	// parent type (e.g. ElementType("Patient", "name") -> "HumanName").
	// Returns ("", false) if unknown.
	ElementType(parentType, path string) (string, bool)

	// IsArrayElement reports whether the given path under parentType is
	// array-cardinality (0..* / 1..*).
	IsArrayElement(parentType, path string) bool

	// ResolvePolymorphicProperty returns the concrete variant property
	// names for a polymorphic base property (e.g. "value" ->
	// ["valueQuantity", "valueString", ...]). Returns (nil, false) if
	// base is not a recognized polymorphic property.
	ResolvePolymorphicProperty(base string) ([]string, bool)

	// ResolvePolymorphicFieldForType returns the concrete variant field
	// name for a specific target type (e.g. ("value", "Integer") ->
	// "valueInteger"). Returns ("", false) if no such variant exists.
	ResolvePolymorphicFieldForType(base, targetType string) (string, bool)

	// TypeDiscriminator returns the structural discriminator for a
	// canonical complex type. Returns (Discriminator{}, false) if the
	// type has no registered discriminator (e.g. primitives).
	TypeDiscriminator(canonical string) (Discriminator, bool)
}
