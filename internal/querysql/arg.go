package querysql

import (
	"fmt"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
)

// Arg is one placeholder value, in placeholder order.
type Arg struct {
	// Ordinal is the 1-based placeholder position.
	Ordinal int

	// Name is the query parameter the value came from, or "" for a constant
	// moved out of the SQL text.
	Name string

	// Element is the index of the value within a list parameter, or -1.
	Element int

	// JSON marks a list passed as JSON text to JSON_TABLE.
	JSON bool

	Type  model.Type
	Value ir.IRValue
}

// Driver returns the value handed to database/sql.
func (a Arg) Driver() (any, error) {
	if a.JSON {
		data, err := ir.MarshalIRValue(a.Value)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	return ir.DriverValue(a.Value)
}

// DriverArgs converts args for database/sql.
func DriverArgs(args []Arg) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := a.Driver()
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", a.Ordinal, err)
		}
		out[i] = v
	}
	return out, nil
}
