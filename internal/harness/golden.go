package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/querylift/internal/engine"
	"github.com/roach88/querylift/internal/ir"
)

// Snapshot renders a translation as deterministic text for golden
// comparison:
//
//	-- sql
//	SELECT ...
//	-- args
//	1 name "Rex"
//	2 ids[1] 7
//	3 _ "it's"
//	-- columns
//	Id, Name
//	-- collections
//	Orders lateral [1,8) parent=[0] child=[1]
//
// Args name their parameter, "_" for a constant. A list element carries its
// index and a JSON_TABLE source is marked "json". The collections section is
// omitted when there are none.
func Snapshot(tr *engine.Translation) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("-- sql\n")
	buf.WriteString(tr.SQL)
	buf.WriteString("\n-- args\n")
	for _, a := range tr.Args {
		name := a.Name
		if name == "" {
			name = "_"
		}
		if a.Element >= 0 {
			name = fmt.Sprintf("%s[%d]", name, a.Element)
		}
		value, err := ir.MarshalIRValue(a.Value)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", a.Ordinal, err)
		}
		fmt.Fprintf(&buf, "%d %s %s", a.Ordinal, name, value)
		if a.JSON {
			buf.WriteString(" json")
		}
		buf.WriteByte('\n')
	}

	buf.WriteString("-- columns\n")
	buf.WriteString(strings.Join(tr.Columns, ", "))
	buf.WriteByte('\n')

	if len(tr.Collections) > 0 {
		buf.WriteString("-- collections\n")
		for _, c := range tr.Collections {
			fmt.Fprintf(&buf, "%s %s [%d,%d) parent=%v child=%v\n",
				c.Name, c.Strategy, c.Start, c.End, c.Parent, c.Child)
		}
	}
	return []byte(buf.String()), nil
}

// RunWithGolden runs a scenario, fails the test if any assertion fails, and
// compares the translation against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Scenarios that expect a translation error have no snapshot.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		t.Errorf("scenario %s failed:\n%s", scenario.Name, strings.Join(result.Errors, "\n"))
		return nil
	}
	if result.Translation == nil {
		return nil
	}
	return AssertGolden(t, scenario.Name, result.Translation)
}

// AssertGolden compares a translation you already have against a golden
// file.
func AssertGolden(t *testing.T, name string, tr *engine.Translation) error {
	t.Helper()

	snap, err := Snapshot(tr)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snap)
	return nil
}
