package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querylift/internal/dialect"
	"github.com/roach88/querylift/internal/engine"
	"github.com/roach88/querylift/internal/harness"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/modelspec"
	"github.com/roach88/querylift/internal/qerr"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Model       string // model directory
	Query       string // query YAML file
	Dialect     string // server version
	DialectFile string // YAML dialect record, overrides Dialect
	DSN         string // go-sql-driver/mysql DSN
}

// TranslateOutput is the JSON payload of a translation.
type TranslateOutput struct {
	SQL         string             `json:"sql"`
	Args        []ArgOutput        `json:"args"`
	Columns     []string           `json:"columns"`
	Collections []CollectionOutput `json:"collections,omitempty"`
	Hash        string             `json:"hash"`
}

// ArgOutput describes one placeholder value.
type ArgOutput struct {
	Ordinal int             `json:"ordinal"`
	Name    string          `json:"name,omitempty"`
	Element *int            `json:"element,omitempty"`
	JSON    bool            `json:"json,omitempty"`
	Type    string          `json:"type"`
	Value   json.RawMessage `json:"value"`
}

// CollectionOutput locates a nested collection in the output row.
type CollectionOutput struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Parent   []int  `json:"parent"`
	Child    []int  `json:"child"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a query file to SQL",
		Long: `Translate a YAML query tree against a CUE model into parameterized SQL.

The target server is named by --dialect, read from a --dialect-file, or
derived from a go-sql-driver/mysql --dsn (interpolateParams and sql_mode).

Exit codes:
  0 - Translated
  1 - The query cannot be translated
  2 - Command error (invalid paths, model or query files)

Examples:
  querylift translate --model ./examples/shop --query ./examples/shop/queries/big_spenders.yaml
  querylift translate --model ./examples/shop --query q.yaml --dialect mysql-5.7.44
  querylift translate --model ./examples/shop --query q.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "model directory (CUE)")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query file (YAML)")
	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", harness.DefaultDialect, "server version, e.g. mysql-8.0.35 or mariadb-10.11")
	cmd.Flags().StringVar(&opts.DialectFile, "dialect-file", "", "YAML dialect record")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "go-sql-driver/mysql DSN")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runTranslate(ctx context.Context, opts *TranslateOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	m, err := modelspec.Load(opts.Model)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeInvalidModel, "failed to load model", err)
	}
	formatter.VerboseLog("Loaded %d entities from %s", len(m.Shapes()), opts.Model)

	d, err := opts.buildDialect()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeInvalidDialect, "failed to configure dialect", err)
	}
	formatter.VerboseLog("Dialect %s", d.Version())

	q, err := harness.LoadQuery(opts.Query)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeInvalidQuery, "failed to load query", err)
	}

	eng, err := engine.New(m, d)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to create engine", err)
	}
	tr, err := eng.Translate(ctx, q)
	if err != nil {
		code := string(qerr.CodeOf(err))
		if code == "" {
			code = ErrCodeGeneric
		}
		return formatter.fail(ExitFailure, code, "translation failed", err)
	}

	out, err := translateOutput(tr)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to render args", err)
	}
	if opts.Format == "json" {
		return formatter.Success(out)
	}
	writeTranslateText(formatter, out)
	return nil
}

// buildDialect builds the dialect from the flags: a dialect file wins over a
// DSN, which wins over a bare version.
func (o *TranslateOptions) buildDialect() (*dialect.Dialect, error) {
	switch {
	case o.DialectFile != "":
		return dialect.Load(o.DialectFile)
	case o.DSN != "":
		return dialect.FromDSN(o.DSN, o.Dialect)
	}
	return dialect.New(o.Dialect)
}

func translateOutput(tr *engine.Translation) (TranslateOutput, error) {
	out := TranslateOutput{
		SQL:     tr.SQL,
		Args:    make([]ArgOutput, len(tr.Args)),
		Columns: tr.Columns,
		Hash:    tr.Hash,
	}
	for i, a := range tr.Args {
		value, err := ir.MarshalIRValue(a.Value)
		if err != nil {
			return out, fmt.Errorf("arg %d: %w", a.Ordinal, err)
		}
		out.Args[i] = ArgOutput{
			Ordinal: a.Ordinal,
			Name:    a.Name,
			JSON:    a.JSON,
			Type:    a.Type.String(),
			Value:   value,
		}
		if a.Element >= 0 {
			elem := a.Element
			out.Args[i].Element = &elem
		}
	}
	for _, c := range tr.Collections {
		out.Collections = append(out.Collections, CollectionOutput{
			Name:     c.Name,
			Strategy: c.Strategy.String(),
			Start:    c.Start,
			End:      c.End,
			Parent:   c.Parent,
			Child:    c.Child,
		})
	}
	return out, nil
}

func writeTranslateText(f *OutputFormatter, out TranslateOutput) {
	w := f.Writer
	fmt.Fprintln(w, out.SQL)

	if len(out.Args) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Args:")
		for _, a := range out.Args {
			name := a.Name
			if name == "" {
				name = "_"
			}
			if a.Element != nil {
				name = fmt.Sprintf("%s[%d]", name, *a.Element)
			}
			fmt.Fprintf(w, "  %d  %s  %s  %s\n", a.Ordinal, name, a.Type, a.Value)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Columns: %s\n", strings.Join(out.Columns, ", "))
	for _, c := range out.Collections {
		fmt.Fprintf(w, "Collection %s: %s, columns [%d,%d)\n", c.Name, c.Strategy, c.Start, c.End)
	}
	f.VerboseLog("Hash: %s", out.Hash)
}
