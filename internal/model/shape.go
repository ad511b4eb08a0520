package model

import "slices"

// DefaultDiscriminatorColumn names the literal column appended to every
// branch of a flattened hierarchy when a shape does not choose its own.
const DefaultDiscriminatorColumn = "Discriminator"

// Property is a mapped scalar member of an entity shape.
type Property struct {
	Name     string
	Column   string
	Type     Type
	Nullable bool
}

// Navigation is a named reference from one shape to a related shape,
// backed by a relationship. FromPrincipal is true when the navigation
// starts at the principal end (typically a collection).
type Navigation struct {
	Name          string
	Relationship  string
	FromPrincipal bool
}

// SubtypeMapping maps one concrete subtype of a hierarchy to its own table.
// Properties lists the shape properties the subtype table carries; an empty
// list means all of them.
type SubtypeMapping struct {
	Name          string
	Schema        string
	Table         string
	Discriminator string
	Properties    []string
}

// Has reports whether the subtype's table carries the named property.
func (s SubtypeMapping) Has(prop string) bool {
	return len(s.Properties) == 0 || slices.Contains(s.Properties, prop)
}

// EntityShape describes a queryable entity. A shape with subtypes is a
// table-per-concrete-type hierarchy: it has no table of its own and is
// read as the union of its subtype tables.
//
// Properties are in canonical order. Every projection of the shape, and
// every union branch, lists columns in this order.
type EntityShape struct {
	Name                string
	Schema              string
	Table               string
	Properties          []Property
	Key                 []string
	Navigations         []Navigation
	Abstract            bool
	DiscriminatorColumn string
	Subtypes            []SubtypeMapping
}

// Property looks up a property by name.
func (s *EntityShape) Property(name string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Navigation looks up a navigation by name.
func (s *EntityShape) Navigation(name string) (Navigation, bool) {
	for _, n := range s.Navigations {
		if n.Name == name {
			return n, true
		}
	}
	return Navigation{}, false
}

// IsHierarchy reports whether the shape is mapped through subtype tables.
func (s *EntityShape) IsHierarchy() bool {
	return s.Abstract || len(s.Subtypes) > 0
}

// Discriminator returns the discriminator column name.
func (s *EntityShape) Discriminator() string {
	if s.DiscriminatorColumn == "" {
		return DefaultDiscriminatorColumn
	}
	return s.DiscriminatorColumn
}

// Subtype looks up a subtype mapping by name.
func (s *EntityShape) Subtype(name string) (SubtypeMapping, bool) {
	for _, st := range s.Subtypes {
		if st.Name == name {
			return st, true
		}
	}
	return SubtypeMapping{}, false
}

// KeyProperties returns the key properties in key order.
func (s *EntityShape) KeyProperties() []Property {
	out := make([]Property, 0, len(s.Key))
	for _, k := range s.Key {
		if p, ok := s.Property(k); ok {
			out = append(out, p)
		}
	}
	return out
}
