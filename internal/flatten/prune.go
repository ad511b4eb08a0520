package flatten

import "github.com/roach88/querylift/internal/relational"

// Prune drops the columns of every flattened hierarchy union that nothing
// outside the union reads. At least one column is kept so each branch
// stays a valid select; row counts are unchanged.
func Prune(p relational.Plan) relational.Plan {
	used := map[string]map[string]bool{}
	relational.Inspect(p, func(n any) bool {
		if c, ok := n.(relational.Column); ok && c.Table != "" {
			if used[c.Table] == nil {
				used[c.Table] = map[string]bool{}
			}
			used[c.Table][c.Name] = true
		}
		return true
	})

	return relational.Rewriter{Plan: func(p relational.Plan) relational.Plan {
		s, ok := p.(*relational.Select)
		if !ok {
			return p
		}
		out := s.Clone()
		out.From = pruneTable(s.From, used)
		for i, j := range out.Joins {
			out.Joins[i].Table = pruneTable(j.Table, used)
		}
		return out
	}}.RewritePlan(p)
}

func pruneTable(t relational.Table, used map[string]map[string]bool) relational.Table {
	d, ok := t.(relational.Derived)
	if !ok || !d.Hierarchy {
		return t
	}
	set, ok := d.Plan.(*relational.SetOperation)
	if !ok {
		return t
	}
	var keep []int
	for i, name := range set.Outputs() {
		if used[d.Alias][name] {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(set.Outputs()) {
		return t
	}
	if len(keep) == 0 {
		keep = []int{0}
	}
	pruned := &relational.SetOperation{Kind: set.Kind}
	for _, b := range set.Branches {
		sel, ok := b.(*relational.Select)
		if !ok {
			return t
		}
		cp := sel.Clone()
		cp.Projection = nil
		for _, i := range keep {
			cp.Projection = append(cp.Projection, sel.Projection[i])
		}
		pruned.Branches = append(pruned.Branches, cp)
	}
	d.Plan = pruned
	return d
}
