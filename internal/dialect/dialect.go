package dialect

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/qerr"
)

// Dialect is the read-only record of server version, capability overrides
// and syntax switches consulted by the planner and the printer. It is safe
// for concurrent use.
type Dialect struct {
	version            Version
	placeholder        string
	parameterizedLimit bool
	boolLiterals       bool
	noBackslashEscapes bool
	ansiQuotes         bool
	limitZeroDefect    bool
	overrides          map[Capability]bool
}

// Option configures a Dialect.
type Option func(*Dialect)

// Placeholder format names accepted by WithPlaceholder.
const (
	PlaceholderQuestion = "question"
	PlaceholderDollar   = "dollar"
	PlaceholderColon    = "colon"
	PlaceholderAtP      = "atp"
)

var placeholderFormats = map[string]sq.PlaceholderFormat{
	PlaceholderQuestion: sq.Question,
	PlaceholderDollar:   sq.Dollar,
	PlaceholderColon:    sq.Colon,
	PlaceholderAtP:      sq.AtP,
}

// WithPlaceholder selects the placeholder style: "question" (default),
// "dollar", "colon" or "atp".
func WithPlaceholder(name string) Option {
	return func(d *Dialect) {
		d.placeholder = name
	}
}

// WithParameterizedLimit controls whether LIMIT and OFFSET may be bound as
// parameters. When disabled, parameter values are inlined as integers.
func WithParameterizedLimit(enabled bool) Option {
	return func(d *Dialect) {
		d.parameterizedLimit = enabled
	}
}

// WithBoolLiterals selects TRUE/FALSE (true, the default) or 1/0.
func WithBoolLiterals(enabled bool) Option {
	return func(d *Dialect) {
		d.boolLiterals = enabled
	}
}

// WithNoBackslashEscapes mirrors the NO_BACKSLASH_ESCAPES sql_mode flag.
func WithNoBackslashEscapes(enabled bool) Option {
	return func(d *Dialect) {
		d.noBackslashEscapes = enabled
	}
}

// WithANSIQuotes mirrors the ANSI_QUOTES sql_mode flag; identifiers are
// then quoted with double quotes.
func WithANSIQuotes(enabled bool) Option {
	return func(d *Dialect) {
		d.ansiQuotes = enabled
	}
}

// WithLimitZeroDefect overrides the version default for the LIMIT 0 OFFSET 0
// workaround.
func WithLimitZeroDefect(enabled bool) Option {
	return func(d *Dialect) {
		d.limitZeroDefect = enabled
	}
}

// WithCapability forces a capability on or off regardless of version.
func WithCapability(c Capability, enabled bool) Option {
	return func(d *Dialect) {
		if d.overrides == nil {
			d.overrides = make(map[Capability]bool)
		}
		d.overrides[c] = enabled
	}
}

// New builds a dialect for the given server version string.
func New(version string, opts ...Option) (*Dialect, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return nil, err
	}
	d := &Dialect{
		version:            v,
		placeholder:        PlaceholderQuestion,
		parameterizedLimit: true,
		boolLiterals:       true,
		limitZeroDefect:    v.Flavor == FlavorMySQL,
	}
	for _, opt := range opts {
		opt(d)
	}
	if _, ok := placeholderFormats[d.placeholder]; !ok {
		return nil, fmt.Errorf("unknown placeholder format %q", d.placeholder)
	}
	for c := range d.overrides {
		if _, ok := minVersions[c]; !ok {
			return nil, fmt.Errorf("unknown capability %q", c)
		}
	}
	return d, nil
}

// MustNew is like New but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustNew(version string, opts ...Option) *Dialect {
	d, err := New(version, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Version returns the configured server version.
func (d *Dialect) Version() Version { return d.version }

// Supports reports whether the dialect provides capability c.
func (d *Dialect) Supports(c Capability) bool {
	if on, ok := d.overrides[c]; ok {
		return on
	}
	return supportedBy(c, d.version)
}

// Require returns a DIALECT_CAPABILITY error when c is unavailable.
func (d *Dialect) Require(c Capability, what string) error {
	if d.Supports(c) {
		return nil
	}
	return qerr.Capability(string(c), d.MinVersion(c), "%s is not supported by %s", what, d.version)
}

// MinVersion names the first release of the configured flavor that supports
// c, or "" when the flavor never does.
func (d *Dialect) MinVersion(c Capability) string {
	if v, ok := MinVersion(c, d.version.Flavor); ok {
		return v.String()
	}
	return ""
}

// Placeholder returns the squirrel placeholder format.
func (d *Dialect) Placeholder() sq.PlaceholderFormat {
	return placeholderFormats[d.placeholder]
}

// PlaceholderName returns the configured placeholder format name.
func (d *Dialect) PlaceholderName() string { return d.placeholder }

// ParameterizedLimit reports whether LIMIT/OFFSET may be parameters.
func (d *Dialect) ParameterizedLimit() bool { return d.parameterizedLimit }

// BoolLiterals reports whether TRUE/FALSE are printed instead of 1/0.
func (d *Dialect) BoolLiterals() bool { return d.boolLiterals }

// NoBackslashEscapes reports whether backslash is an ordinary character in
// string literals.
func (d *Dialect) NoBackslashEscapes() bool { return d.noBackslashEscapes }

// ANSIQuotes reports whether identifiers are quoted with double quotes.
func (d *Dialect) ANSIQuotes() bool { return d.ansiQuotes }

// LimitZeroDefect reports whether LIMIT 0 OFFSET 0 must be rewritten to an
// always-false predicate.
func (d *Dialect) LimitZeroDefect() bool { return d.limitZeroDefect }

// QuoteIdent quotes an identifier, doubling embedded quote characters.
func (d *Dialect) QuoteIdent(name string) string {
	q := "`"
	if d.ansiQuotes {
		q = `"`
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// CastType returns the CAST target for t.
func (d *Dialect) CastType(t model.Type) string {
	switch t.Kind {
	case model.KindBool:
		return "signed"
	case model.KindInt, model.KindEnum:
		if t.Unsigned {
			return "unsigned"
		}
		return "signed"
	case model.KindDecimal:
		return "decimal(65,30)"
	case model.KindFloat:
		return "double"
	case model.KindDateTime:
		return "datetime(6)"
	case model.KindDate:
		return "date"
	case model.KindTime:
		return "time(6)"
	case model.KindBytes:
		return "binary"
	case model.KindJSON, model.KindArray:
		return "json"
	default:
		return "char"
	}
}

// StoreType returns the column type used for t in JSON_TABLE column lists.
func (d *Dialect) StoreType(t model.Type) string {
	switch t.Kind {
	case model.KindBool:
		return "tinyint(1)"
	case model.KindInt, model.KindEnum:
		name := "int"
		switch t.Bits {
		case 8:
			name = "tinyint"
		case 16:
			name = "smallint"
		case 64:
			name = "bigint"
		}
		if t.Unsigned {
			name += " unsigned"
		}
		return name
	case model.KindDecimal:
		return "decimal(65,30)"
	case model.KindFloat:
		return "double"
	case model.KindDateTime:
		return "datetime(6)"
	case model.KindDate:
		return "date"
	case model.KindTime:
		return "time(6)"
	case model.KindGuid:
		return "char(36)"
	case model.KindBytes:
		return "longblob"
	case model.KindJSON, model.KindArray:
		return "json"
	default:
		return "longtext"
	}
}
