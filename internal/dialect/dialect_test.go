package dialect

import (
	"os"
	"path/filepath"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/qerr"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"mysql-8.0.35", Version{FlavorMySQL, 8, 0, 35}},
		{"8.0.14", Version{FlavorMySQL, 8, 0, 14}},
		{"mariadb-10.11", Version{FlavorMariaDB, 10, 11, 0}},
		{"MariaDB-10.6.4", Version{FlavorMariaDB, 10, 6, 4}},
		{"10.11.6-MariaDB-log", Version{FlavorMariaDB, 10, 11, 6}},
		{"5.7", Version{FlavorMySQL, 5, 7, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "mysql-", "mysql-8.x", "1.2.3.4"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := ParseVersion(bad)
			assert.Error(t, err)
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	v := Version{FlavorMySQL, 8, 0, 14}
	assert.True(t, v.AtLeast(Version{FlavorMySQL, 8, 0, 14}))
	assert.True(t, v.AtLeast(Version{FlavorMySQL, 5, 7, 40}))
	assert.False(t, v.AtLeast(Version{FlavorMySQL, 8, 0, 31}))
	assert.False(t, v.AtLeast(Version{FlavorMariaDB, 5, 0, 0}), "flavors never compare")
	assert.Equal(t, "mysql-8.0.14", v.String())
}

func TestSupports(t *testing.T) {
	tests := []struct {
		version string
		cap     Capability
		want    bool
	}{
		{"mysql-8.0.14", CapLateral, true},
		{"mysql-8.0.13", CapLateral, false},
		{"mariadb-11.4", CapLateral, false},
		{"mysql-5.7.44", CapWindowFunctions, false},
		{"mysql-8.0.0", CapWindowFunctions, true},
		{"mariadb-10.2", CapWindowFunctions, true},
		{"mysql-8.0.4", CapJSONTable, true},
		{"mariadb-10.5", CapJSONTable, false},
		{"mariadb-10.6", CapJSONTable, true},
		{"mysql-8.0.30", CapIntersect, false},
		{"mysql-8.0.31", CapExcept, true},
		{"mariadb-10.3", CapIntersect, true},
	}
	for _, tt := range tests {
		t.Run(tt.version+" "+string(tt.cap), func(t *testing.T) {
			d := MustNew(tt.version)
			assert.Equal(t, tt.want, d.Supports(tt.cap))
		})
	}
}

func TestCapabilityOverride(t *testing.T) {
	d := MustNew("mysql-8.0.35", WithCapability(CapLateral, false))
	assert.False(t, d.Supports(CapLateral))
	assert.True(t, d.Supports(CapWindowFunctions))

	_, err := New("mysql-8.0.35", WithCapability("TIME_TRAVEL", true))
	assert.Error(t, err)
}

func TestRequire(t *testing.T) {
	err := MustNew("mysql-8.0.13").Require(CapLateral, "correlated collection")
	require.Error(t, err)
	assert.True(t, qerr.IsDialectCapability(err))

	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "LATERAL", qe.Capability)
	assert.Equal(t, "mysql-8.0.14", qe.MinVersion)

	err = MustNew("mariadb-10.11").Require(CapLateral, "correlated collection")
	require.ErrorAs(t, err, &qe)
	assert.Empty(t, qe.MinVersion, "MariaDB has no LATERAL release")

	assert.NoError(t, MustNew("mysql-8.0.35").Require(CapLateral, "correlated collection"))
}

func TestDefaults(t *testing.T) {
	d := MustNew("mysql-8.0.35")
	assert.Equal(t, sq.Question, d.Placeholder())
	assert.True(t, d.ParameterizedLimit())
	assert.True(t, d.BoolLiterals())
	assert.False(t, d.NoBackslashEscapes())
	assert.True(t, d.LimitZeroDefect())
	assert.False(t, MustNew("mariadb-10.11").LimitZeroDefect())

	_, err := New("mysql-8.0.35", WithPlaceholder("percent"))
	assert.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	d := MustNew("mysql-8.0.35")
	assert.Equal(t, "`Orders`", d.QuoteIdent("Orders"))
	assert.Equal(t, "`we``ird`", d.QuoteIdent("we`ird"))

	ansi := MustNew("mysql-8.0.35", WithANSIQuotes(true))
	assert.Equal(t, `"a""b"`, ansi.QuoteIdent(`a"b`))
}

func TestCastAndStoreTypes(t *testing.T) {
	d := MustNew("mysql-8.0.35")
	tests := []struct {
		typ   model.Type
		cast  string
		store string
	}{
		{model.Bool, "signed", "tinyint(1)"},
		{model.Int32, "signed", "int"},
		{model.Int64, "signed", "bigint"},
		{model.UInt64, "unsigned", "bigint unsigned"},
		{model.Enum(16, true), "unsigned", "smallint unsigned"},
		{model.Decimal, "decimal(65,30)", "decimal(65,30)"},
		{model.Float, "double", "double"},
		{model.String, "char", "longtext"},
		{model.DateTime, "datetime(6)", "datetime(6)"},
		{model.Date, "date", "date"},
		{model.Time, "time(6)", "time(6)"},
		{model.Guid, "char", "char(36)"},
		{model.JSON, "json", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Equal(t, tt.cast, d.CastType(tt.typ))
			assert.Equal(t, tt.store, d.StoreType(tt.typ))
		})
	}
}

func TestFromDSN(t *testing.T) {
	t.Run("sql_mode flags", func(t *testing.T) {
		d, err := FromDSN("app:secret@tcp(db:3306)/shop?sql_mode=%27NO_BACKSLASH_ESCAPES,ANSI_QUOTES%27", "mysql-8.0.35")
		require.NoError(t, err)
		assert.True(t, d.NoBackslashEscapes())
		assert.True(t, d.ANSIQuotes())
	})

	t.Run("interpolateParams forces question marks", func(t *testing.T) {
		d, err := FromDSN("app@tcp(db:3306)/shop?interpolateParams=true", "mysql-8.0.35", WithPlaceholder(PlaceholderQuestion))
		require.NoError(t, err)
		assert.Equal(t, sq.Question, d.Placeholder())
	})

	t.Run("explicit options win", func(t *testing.T) {
		d, err := FromDSN("app@tcp(db:3306)/shop?sql_mode=NO_BACKSLASH_ESCAPES", "mysql-8.0.35", WithNoBackslashEscapes(false))
		require.NoError(t, err)
		assert.False(t, d.NoBackslashEscapes())
	})

	t.Run("invalid dsn", func(t *testing.T) {
		_, err := FromDSN("not a dsn", "mysql-8.0.35")
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dialect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: mariadb-10.11
placeholder: dollar
parameterizedLimit: false
boolLiterals: false
capabilities:
  JSON_TABLE: false
`), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FlavorMariaDB, d.Version().Flavor)
	assert.Equal(t, sq.Dollar, d.Placeholder())
	assert.False(t, d.ParameterizedLimit())
	assert.False(t, d.BoolLiterals())
	assert.False(t, d.Supports(CapJSONTable))
	assert.True(t, d.Supports(CapWindowFunctions))

	_, err = Parse([]byte("placeholder: dollar"))
	assert.Error(t, err, "version is required")

	_, err = Parse([]byte("version: mysql-8.0.35\ncapabilities: {BOGUS: true}"))
	assert.Error(t, err)
}
