package dialect

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// FromDSN builds a dialect for version and derives syntax switches from a
// go-sql-driver/mysql data source name:
//   - interpolateParams=true forces "?" placeholders, since the driver
//     substitutes them client side;
//   - sql_mode NO_BACKSLASH_ESCAPES and ANSI_QUOTES set the matching flags.
//
// Explicit opts are applied after the DSN-derived ones.
func FromDSN(dsn, version string, opts ...Option) (*Dialect, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	var derived []Option
	if cfg.InterpolateParams {
		derived = append(derived, WithPlaceholder(PlaceholderQuestion))
	}
	for _, mode := range sqlModes(cfg.Params["sql_mode"]) {
		switch mode {
		case "NO_BACKSLASH_ESCAPES":
			derived = append(derived, WithNoBackslashEscapes(true))
		case "ANSI_QUOTES", "ANSI":
			derived = append(derived, WithANSIQuotes(true))
		}
	}
	return New(version, append(derived, opts...)...)
}

// sqlModes splits a sql_mode value such as "'ANSI_QUOTES,STRICT_ALL_TABLES'".
func sqlModes(v string) []string {
	v = strings.Trim(strings.TrimSpace(v), `'"`)
	if v == "" {
		return nil
	}
	var out []string
	for _, m := range strings.Split(v, ",") {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			out = append(out, m)
		}
	}
	return out
}
