package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/querylift/internal/binder"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/querysql"
)

// compiled is a printed plan. It is shared between cache readers and never
// modified after construction.
type compiled struct {
	sql         string
	args        []querysql.Arg
	columns     []string
	collections []binder.Collection
	hash        string
}

// cacheKey combines the structural hash with the parameter facts that
// change the printed text.
func (e *Engine) cacheKey(q queryir.Query, hash string) (string, error) {
	facts, err := queryir.ShapeFacts(q, !e.dialect.ParameterizedLimit())
	if err != nil {
		return "", err
	}
	data, err := ir.MarshalCanonical(facts)
	if err != nil {
		return "", err
	}
	return hash + ":" + string(data), nil
}

// bind returns a translation of c carrying the given parameter values.
func (c *compiled) bind(values map[string]ir.IRValue) (*Translation, error) {
	args := slices.Clone(c.args)
	for i, a := range args {
		if a.Name == "" {
			continue
		}
		v, ok := values[a.Name]
		if !ok {
			return nil, fmt.Errorf("parameter %q has no value", a.Name)
		}
		if a.Element >= 0 {
			arr, ok := v.(ir.IRArray)
			if !ok || a.Element >= len(arr) {
				return nil, fmt.Errorf("parameter %q has no element %d", a.Name, a.Element)
			}
			v = arr[a.Element]
		}
		args[i].Value = v
	}
	return &Translation{
		SQL:         c.sql,
		Args:        args,
		Columns:     slices.Clone(c.columns),
		Collections: slices.Clone(c.collections),
		Hash:        c.hash,
	}, nil
}
