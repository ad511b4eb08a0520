package engine

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querylift/internal/binder"
	"github.com/roach88/querylift/internal/querysql"
)

// Translation is the SQL for one query.
type Translation struct {
	// ID names this call to Translate. Cache hits get a fresh ID.
	ID string

	SQL  string
	Args []querysql.Arg

	// Columns are the output column names in order.
	Columns []string

	// Collections locates nested collections in the output row.
	Collections []binder.Collection

	// Hash is the structural hash of the query tree.
	Hash string
}

var _ sq.Sqlizer = (*Translation)(nil)

// ToSql returns the text and the driver values of the args.
func (t *Translation) ToSql() (string, []any, error) {
	args, err := querysql.DriverArgs(t.Args)
	if err != nil {
		return "", nil, err
	}
	return t.SQL, args, nil
}

// CollectionCounts returns how many collections use each strategy.
func (t *Translation) CollectionCounts() map[string]int {
	counts := make(map[string]int, len(t.Collections))
	for _, c := range t.Collections {
		counts[c.Strategy.String()]++
	}
	return counts
}
