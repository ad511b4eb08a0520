package model

import "fmt"

// Cardinality is the number of dependents a principal may have.
type Cardinality int

const (
	CardinalityMany Cardinality = iota
	CardinalityOne
	CardinalityOptionalOne
)

func (c Cardinality) String() string {
	switch c {
	case CardinalityOne:
		return "one"
	case CardinalityOptionalOne:
		return "optional-one"
	default:
		return "many"
	}
}

// ParseCardinality parses "one", "optional-one" or "many".
func ParseCardinality(s string) (Cardinality, error) {
	switch s {
	case "many", "":
		return CardinalityMany, nil
	case "one":
		return CardinalityOne, nil
	case "optional-one", "optional_one":
		return CardinalityOptionalOne, nil
	}
	return CardinalityMany, fmt.Errorf("unknown cardinality %q", s)
}

// KeyPair is one (principal property, dependent property) equality of a
// composite foreign key.
type KeyPair struct {
	Principal string
	Dependent string
}

// Relationship describes a foreign-key association between two shapes.
// Navigation expansion refers to relationships by pointer; they are never
// copied after the model is built.
type Relationship struct {
	Name        string
	Principal   string
	Dependent   string
	Keys        []KeyPair
	Cardinality Cardinality

	// Required means every dependent row references an existing principal.
	Required bool

	// PrincipalSubtypes and DependentSubtypes restrict a hierarchy end of the
	// relationship to the listed subtypes.
	PrincipalSubtypes []string
	DependentSubtypes []string

	// NullKeysDistinct disables the all-null key match. By default two null
	// key parts compare equal, matching object identity semantics.
	NullKeysDistinct bool
}

// DependentIsMany reports whether the dependent end is a collection.
func (r *Relationship) DependentIsMany() bool {
	return r.Cardinality == CardinalityMany
}

// Target returns the shape reached by navigating in the given direction.
func (r *Relationship) Target(fromPrincipal bool) string {
	if fromPrincipal {
		return r.Dependent
	}
	return r.Principal
}

// TargetSubtypes returns the subtype restriction for the target end.
func (r *Relationship) TargetSubtypes(fromPrincipal bool) []string {
	if fromPrincipal {
		return r.DependentSubtypes
	}
	return r.PrincipalSubtypes
}
