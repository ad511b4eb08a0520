package modelspec

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/querylift/internal/model"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileString compiles CUE source text holding a model.
func CompileString(src, filename string) (*model.Model, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// Compile converts a CUE value with top-level entity and relationship
// structs into a Model.
func Compile(v cue.Value) (*model.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v, err := checkSchema(v)
	if err != nil {
		return nil, err
	}

	shapes, err := compileEntities(v.LookupPath(cue.ParsePath("entity")))
	if err != nil {
		return nil, err
	}
	rels, err := compileRelationships(v.LookupPath(cue.ParsePath("relationship")))
	if err != nil {
		return nil, err
	}

	m, err := model.New(shapes, rels)
	if err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return m, nil
}

func checkSchema(v cue.Value) (cue.Value, error) {
	schema := v.Context().CompileString(schemaSource, cue.Filename("querylift-model-schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("model schema: %w", err)
	}
	u := schema.LookupPath(cue.ParsePath("#Model")).Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return u, nil
}

func compileEntities(v cue.Value) ([]model.EntityShape, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var shapes []model.EntityShape
	for iter.Next() {
		s, err := compileEntity(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
	return shapes, nil
}

func compileEntity(name string, v cue.Value) (model.EntityShape, error) {
	s := model.EntityShape{Name: name}
	var err error
	if s.Schema, err = optString(v, "schema"); err != nil {
		return s, err
	}
	if s.Table, err = optString(v, "table"); err != nil {
		return s, err
	}
	if s.Abstract, err = optBool(v, "abstract"); err != nil {
		return s, err
	}
	if s.DiscriminatorColumn, err = optString(v, "discriminator"); err != nil {
		return s, err
	}
	if s.Key, err = optStrings(v, "key"); err != nil {
		return s, err
	}

	props, err := v.LookupPath(cue.ParsePath("properties")).Fields()
	if err != nil {
		return s, formatCUEError(err)
	}
	for props.Next() {
		p, err := compileProperty(name, props.Label(), props.Value())
		if err != nil {
			return s, err
		}
		s.Properties = append(s.Properties, p)
	}

	if navs := v.LookupPath(cue.ParsePath("navigations")); navs.Exists() {
		iter, err := navs.Fields()
		if err != nil {
			return s, formatCUEError(err)
		}
		for iter.Next() {
			n := model.Navigation{Name: iter.Label()}
			if n.Relationship, err = optString(iter.Value(), "relationship"); err != nil {
				return s, err
			}
			if n.FromPrincipal, err = optBool(iter.Value(), "fromPrincipal"); err != nil {
				return s, err
			}
			s.Navigations = append(s.Navigations, n)
		}
	}

	if subs := v.LookupPath(cue.ParsePath("subtypes")); subs.Exists() {
		iter, err := subs.Fields()
		if err != nil {
			return s, formatCUEError(err)
		}
		for iter.Next() {
			st := model.SubtypeMapping{Name: iter.Label()}
			sv := iter.Value()
			if st.Schema, err = optString(sv, "schema"); err != nil {
				return s, err
			}
			if st.Table, err = optString(sv, "table"); err != nil {
				return s, err
			}
			if st.Discriminator, err = optString(sv, "discriminator"); err != nil {
				return s, err
			}
			if st.Properties, err = optStrings(sv, "properties"); err != nil {
				return s, err
			}
			s.Subtypes = append(s.Subtypes, st)
		}
	}
	return s, nil
}

// compileProperty accepts "int32", "string?" or {type, column, nullable}.
func compileProperty(entity, name string, v cue.Value) (model.Property, error) {
	p := model.Property{Name: name}
	typeName, err := v.String()
	if err != nil {
		if typeName, err = optString(v, "type"); err != nil {
			return p, err
		}
		if p.Column, err = optString(v, "column"); err != nil {
			return p, err
		}
		if p.Nullable, err = optBool(v, "nullable"); err != nil {
			return p, err
		}
	}
	if base, ok := strings.CutSuffix(typeName, "?"); ok {
		typeName = base
		p.Nullable = true
	}
	t, err := model.ParseType(typeName)
	if err != nil {
		return p, &CompileError{
			Field:   fmt.Sprintf("entity.%s.properties.%s", entity, name),
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	p.Type = t
	return p, nil
}

func compileRelationships(v cue.Value) ([]model.Relationship, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var rels []model.Relationship
	for iter.Next() {
		r, err := compileRelationship(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, nil
}

func compileRelationship(name string, v cue.Value) (model.Relationship, error) {
	r := model.Relationship{Name: name}
	var err error
	if r.Principal, err = optString(v, "principal"); err != nil {
		return r, err
	}
	if r.Dependent, err = optString(v, "dependent"); err != nil {
		return r, err
	}
	card, err := optString(v, "cardinality")
	if err != nil {
		return r, err
	}
	if r.Cardinality, err = model.ParseCardinality(card); err != nil {
		return r, &CompileError{Field: "relationship." + name + ".cardinality", Message: err.Error(), Pos: v.Pos()}
	}
	if r.Required, err = optBool(v, "required"); err != nil {
		return r, err
	}
	if r.NullKeysDistinct, err = optBool(v, "nullKeysDistinct"); err != nil {
		return r, err
	}
	if r.PrincipalSubtypes, err = optStrings(v, "principalSubtypes"); err != nil {
		return r, err
	}
	if r.DependentSubtypes, err = optStrings(v, "dependentSubtypes"); err != nil {
		return r, err
	}

	keys, err := v.LookupPath(cue.ParsePath("keys")).List()
	if err != nil {
		return r, formatCUEError(err)
	}
	for keys.Next() {
		var kp model.KeyPair
		if kp.Principal, err = optString(keys.Value(), "principal"); err != nil {
			return r, err
		}
		if kp.Dependent, err = optString(keys.Value(), "dependent"); err != nil {
			return r, err
		}
		r.Keys = append(r.Keys, kp)
	}
	return r, nil
}

func optString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optBool(v cue.Value, field string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optStrings(v cue.Value, field string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
