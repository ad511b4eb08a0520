package qerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "unsupported with path",
			err:  Unsupported("GroupBy", "Project.Input", "grouping must be followed by a projection"),
			want: "UNSUPPORTED_PATTERN: grouping must be followed by a projection (at Project.Input)",
		},
		{
			name: "unresolved",
			err:  Unresolved("Invoices", "unknown entity shape %q", "Invoices"),
			want: `MODEL_RESOLUTION: unknown entity shape "Invoices"`,
		},
		{
			name: "capability with version",
			err:  Capability("LATERAL", "mysql-8.0.14", "collection needs a correlated join"),
			want: "DIALECT_CAPABILITY: collection needs a correlated join (requires LATERAL, available from mysql-8.0.14)",
		},
		{
			name: "capability without version",
			err:  Capability("LATERAL", "", "no lateral"),
			want: "DIALECT_CAPABILITY: no lateral (requires LATERAL)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsHelpersThroughWrapping(t *testing.T) {
	err := fmt.Errorf("translate: %w", Unresolved("Orders.Buyer", "unknown navigation"))

	assert.True(t, IsModelResolution(err))
	assert.False(t, IsUnsupportedPattern(err))
	assert.False(t, IsDialectCapability(err))
	assert.False(t, IsModelResolution(errors.New("plain")))
}

func TestAtKeepsInnermostPath(t *testing.T) {
	inner := Unsupported("SetOp", "", "arity mismatch")

	located := At(inner, "Filter.Input")
	assert.Contains(t, located.Error(), "(at Filter.Input)")
	assert.Empty(t, inner.Path, "At must not mutate the original")

	relocated := At(located, "Project.Input")
	assert.Contains(t, relocated.Error(), "(at Filter.Input)")
}
