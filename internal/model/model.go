package model

import (
	"errors"
	"fmt"
	"slices"
)

// Model is the read-only table of entity shapes and relationships handed to
// every translation. It is built once and safe for concurrent use.
type Model struct {
	shapes    []*EntityShape
	byName    map[string]*EntityShape
	rels      []*Relationship
	relByName map[string]*Relationship
}

// New validates shapes and relationships and returns a Model holding private
// copies of them. Defaults are filled in: empty column names take the
// property name, empty subtype discriminators take the subtype name.
func New(shapes []EntityShape, rels []Relationship) (*Model, error) {
	m := &Model{
		byName:    make(map[string]*EntityShape, len(shapes)),
		relByName: make(map[string]*Relationship, len(rels)),
	}

	var errs []error
	for i := range shapes {
		s := cloneShape(shapes[i])
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("shape[%d]: name is required", i))
			continue
		}
		if _, dup := m.byName[s.Name]; dup {
			errs = append(errs, fmt.Errorf("shape %q: declared twice", s.Name))
			continue
		}
		m.shapes = append(m.shapes, s)
		m.byName[s.Name] = s
	}
	for i := range rels {
		r := cloneRelationship(rels[i])
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("relationship[%d]: name is required", i))
			continue
		}
		if _, dup := m.relByName[r.Name]; dup {
			errs = append(errs, fmt.Errorf("relationship %q: declared twice", r.Name))
			continue
		}
		m.rels = append(m.rels, r)
		m.relByName[r.Name] = r
	}

	errs = append(errs, m.Validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// Shape looks up an entity shape by name.
func (m *Model) Shape(name string) (*EntityShape, bool) {
	s, ok := m.byName[name]
	return s, ok
}

// Relationship looks up a relationship by name.
func (m *Model) Relationship(name string) (*Relationship, bool) {
	r, ok := m.relByName[name]
	return r, ok
}

// Shapes returns shapes in declaration order.
func (m *Model) Shapes() []*EntityShape {
	return slices.Clone(m.shapes)
}

// Relationships returns relationships in declaration order.
func (m *Model) Relationships() []*Relationship {
	return slices.Clone(m.rels)
}

// Validate checks cross references between shapes and relationships.
// A hierarchy without subtypes is not reported here; reading such a shape
// fails at translation time.
func (m *Model) Validate() []error {
	var errs []error
	for _, s := range m.shapes {
		errs = append(errs, validateShape(s)...)
		for _, n := range s.Navigations {
			r, ok := m.relByName[n.Relationship]
			if !ok {
				errs = append(errs, fmt.Errorf("shape %q: navigation %q references unknown relationship %q", s.Name, n.Name, n.Relationship))
				continue
			}
			owner := r.Dependent
			if n.FromPrincipal {
				owner = r.Principal
			}
			if owner != s.Name {
				errs = append(errs, fmt.Errorf("shape %q: navigation %q starts at %q in relationship %q", s.Name, n.Name, owner, r.Name))
			}
		}
	}
	for _, r := range m.rels {
		errs = append(errs, m.validateRelationship(r)...)
	}
	return errs
}

func validateShape(s *EntityShape) []error {
	var errs []error
	seen := make(map[string]bool, len(s.Properties))
	for _, p := range s.Properties {
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("shape %q: property %q declared twice", s.Name, p.Name))
		}
		seen[p.Name] = true
		if p.Type.Kind == KindInvalid {
			errs = append(errs, fmt.Errorf("shape %q: property %q has no type", s.Name, p.Name))
		}
	}
	if len(s.Key) == 0 {
		errs = append(errs, fmt.Errorf("shape %q: key is required", s.Name))
	}
	for _, k := range s.Key {
		if !seen[k] {
			errs = append(errs, fmt.Errorf("shape %q: key property %q not declared", s.Name, k))
		}
	}
	if !s.IsHierarchy() && s.Table == "" {
		errs = append(errs, fmt.Errorf("shape %q: table is required", s.Name))
	}
	if s.IsHierarchy() && seen[s.Discriminator()] {
		errs = append(errs, fmt.Errorf("shape %q: discriminator column %q collides with a property", s.Name, s.Discriminator()))
	}
	subtypes := make(map[string]bool, len(s.Subtypes))
	for _, st := range s.Subtypes {
		if subtypes[st.Name] {
			errs = append(errs, fmt.Errorf("shape %q: subtype %q declared twice", s.Name, st.Name))
		}
		subtypes[st.Name] = true
		if st.Table == "" {
			errs = append(errs, fmt.Errorf("shape %q: subtype %q has no table", s.Name, st.Name))
		}
		for _, p := range st.Properties {
			if !seen[p] {
				errs = append(errs, fmt.Errorf("shape %q: subtype %q lists unknown property %q", s.Name, st.Name, p))
			}
		}
		for _, k := range s.Key {
			if !st.Has(k) {
				errs = append(errs, fmt.Errorf("shape %q: subtype %q is missing key property %q", s.Name, st.Name, k))
			}
		}
	}
	return errs
}

func (m *Model) validateRelationship(r *Relationship) []error {
	var errs []error
	principal, ok := m.byName[r.Principal]
	if !ok {
		errs = append(errs, fmt.Errorf("relationship %q: unknown principal %q", r.Name, r.Principal))
	}
	dependent, ok := m.byName[r.Dependent]
	if !ok {
		errs = append(errs, fmt.Errorf("relationship %q: unknown dependent %q", r.Name, r.Dependent))
	}
	if len(r.Keys) == 0 {
		errs = append(errs, fmt.Errorf("relationship %q: at least one key pair is required", r.Name))
	}
	if principal == nil || dependent == nil {
		return errs
	}
	for _, k := range r.Keys {
		pp, ok := principal.Property(k.Principal)
		if !ok {
			errs = append(errs, fmt.Errorf("relationship %q: principal property %q not found on %q", r.Name, k.Principal, principal.Name))
			continue
		}
		dp, ok := dependent.Property(k.Dependent)
		if !ok {
			errs = append(errs, fmt.Errorf("relationship %q: dependent property %q not found on %q", r.Name, k.Dependent, dependent.Name))
			continue
		}
		if pp.Type.Underlying().Kind != dp.Type.Underlying().Kind {
			errs = append(errs, fmt.Errorf("relationship %q: key pair %s/%s has mismatched types %s and %s", r.Name, k.Principal, k.Dependent, pp.Type, dp.Type))
		}
	}
	for _, st := range r.PrincipalSubtypes {
		if _, ok := principal.Subtype(st); !ok {
			errs = append(errs, fmt.Errorf("relationship %q: unknown principal subtype %q", r.Name, st))
		}
	}
	for _, st := range r.DependentSubtypes {
		if _, ok := dependent.Subtype(st); !ok {
			errs = append(errs, fmt.Errorf("relationship %q: unknown dependent subtype %q", r.Name, st))
		}
	}
	return errs
}

func cloneShape(s EntityShape) *EntityShape {
	out := s
	out.Properties = slices.Clone(s.Properties)
	for i := range out.Properties {
		if out.Properties[i].Column == "" {
			out.Properties[i].Column = out.Properties[i].Name
		}
	}
	out.Key = slices.Clone(s.Key)
	out.Navigations = slices.Clone(s.Navigations)
	out.Subtypes = make([]SubtypeMapping, len(s.Subtypes))
	for i, st := range s.Subtypes {
		st.Properties = slices.Clone(st.Properties)
		if st.Discriminator == "" {
			st.Discriminator = st.Name
		}
		out.Subtypes[i] = st
	}
	return &out
}

func cloneRelationship(r Relationship) *Relationship {
	out := r
	out.Keys = slices.Clone(r.Keys)
	out.PrincipalSubtypes = slices.Clone(r.PrincipalSubtypes)
	out.DependentSubtypes = slices.Clone(r.DependentSubtypes)
	return &out
}
