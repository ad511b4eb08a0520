package queryir

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/qerr"
)

// ParamUse describes one named parameter of a query.
type ParamUse struct {
	Param

	// Paging is set when the parameter is a Paginate offset or limit.
	Paging bool
}

// Params returns the parameters of q in order of first appearance. Two
// occurrences of one name must carry the same value.
func Params(q Query) ([]ParamUse, error) {
	var (
		out   []ParamUse
		index = map[string]int{}
		err   error
	)
	Inspect(q, func(node any, path string) bool {
		p, ok := node.(Param)
		if !ok || err != nil {
			return err == nil
		}
		paging := strings.HasSuffix(path, ".Offset") || strings.HasSuffix(path, ".Limit")
		if i, seen := index[p.Name]; seen {
			if !reflect.DeepEqual(out[i].Value, p.Value) {
				err = qerr.Unsupported("Param", path, "parameter %q is bound to two different values", p.Name)
			}
			out[i].Paging = out[i].Paging || paging
			return true
		}
		index[p.Name] = len(out)
		out = append(out, ParamUse{Param: p, Paging: paging})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParamValues returns the current value of every parameter by name.
func ParamValues(q Query) (map[string]ir.IRValue, error) {
	uses, err := Params(q)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ir.IRValue, len(uses))
	for _, u := range uses {
		out[u.Name] = u.Value
	}
	return out, nil
}

// ShapeFacts returns the parameter facts that change the SQL generated for
// q: which parameters are null, how long each list parameter is and where
// its null elements are. Untyped parameters add the kind of their value,
// which the binder types them by. Paging parameters add whether they are
// zero, since an empty page may be folded away. When pagingValues is set,
// the values of paging parameters are included too.
func ShapeFacts(q Query, pagingValues bool) (ir.IRObject, error) {
	uses, err := Params(q)
	if err != nil {
		return nil, err
	}
	facts := make(ir.IRObject, len(uses))
	for _, u := range uses {
		f := ir.IRObject{"null": ir.IRBool(ir.IsNull(u.Value))}
		if arr, ok := u.Value.(ir.IRArray); ok {
			f["len"] = ir.IRInt(len(arr))
			mask := make([]byte, len(arr))
			for i, el := range arr {
				mask[i] = '0'
				if ir.IsNull(el) {
					mask[i] = '1'
				}
			}
			f["nulls"] = ir.IRString(mask)
		}
		if u.Type.Kind == model.KindInvalid {
			f["kind"] = ir.IRString(valueKind(u.Value))
		}
		if u.Paging {
			f["zero"] = ir.IRBool(u.Value == ir.IRInt(0))
		}
		if u.Paging && pagingValues {
			if u.Value == nil {
				return nil, fmt.Errorf("paging parameter %q has no value", u.Name)
			}
			f["value"] = u.Value
		}
		facts[u.Name] = f
	}
	return facts, nil
}

// valueKind names the kind of v. A list is named by its first non-null
// element.
func valueKind(v ir.IRValue) string {
	switch x := v.(type) {
	case nil, ir.IRNull:
		return "null"
	case ir.IRString:
		return "string"
	case ir.IRInt:
		return "int"
	case ir.IRBool:
		return "bool"
	case ir.IRFloat:
		return "float"
	case ir.IRDecimal:
		return "decimal"
	case ir.IRTime:
		return "time"
	case ir.IRGuid:
		return "guid"
	case ir.IRArray:
		for _, el := range x {
			if !ir.IsNull(el) {
				return "list:" + valueKind(el)
			}
		}
		return "list"
	case ir.IRObject:
		return "object"
	}
	return "unknown"
}
