package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/querylift/internal/harness"
	"github.com/roach88/querylift/internal/queryir"
)

// HashResult is the structural identity of a query file.
type HashResult struct {
	Hash   string   `json:"hash"`
	Params []string `json:"params"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	var queryFile string

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the structural hash of a query",
		Long: `Print the structural hash of a query file. Two queries that differ only
in parameter values share a hash, and so share a cached translation.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(rootOpts, queryFile, cmd)
		},
	}

	cmd.Flags().StringVarP(&queryFile, "query", "q", "", "query file (YAML)")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runHash(opts *RootOptions, queryFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	q, err := harness.LoadQuery(queryFile)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeInvalidQuery, "failed to load query", err)
	}
	if err := queryir.Validate(q); err != nil {
		return formatter.fail(ExitFailure, ErrCodeInvalidQuery, "query is invalid", err)
	}
	hash, err := queryir.Hash(q)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeGeneric, "failed to hash query", err)
	}
	params, err := queryir.Params(q)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeInvalidQuery, "query is invalid", err)
	}

	result := HashResult{Hash: hash, Params: make([]string, len(params))}
	for i, p := range params {
		result.Params[i] = p.Name
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	formatter.VerboseLog("Parameters: %v", result.Params)
	return formatter.Success(hash)
}
