package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/querylift/internal/modelspec"
)

// ValidationResult summarizes a valid model.
type ValidationResult struct {
	Valid         bool     `json:"valid"`
	Entities      []string `json:"entities"`
	Relationships []string `json:"relationships"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var modelDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a model without translating",
		Long: `Validate a CUE model: syntax, the model schema, and the consistency
checks run when a model is built (keys, navigations, relationships, subtypes).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, modelDir, cmd)
		},
	}

	cmd.Flags().StringVarP(&modelDir, "model", "m", "", "model directory (CUE)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runValidate(opts *RootOptions, modelDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	files, err := modelspec.FindCUEFiles(modelDir)
	if err == nil {
		formatter.VerboseLog("Found %d CUE file(s) in %s", len(files), modelDir)
	}

	m, err := modelspec.Load(modelDir)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeInvalidModel, "model is invalid", err)
	}

	result := ValidationResult{Valid: true}
	for _, s := range m.Shapes() {
		result.Entities = append(result.Entities, s.Name)
	}
	for _, r := range m.Relationships() {
		result.Relationships = append(result.Relationships, r.Name)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	formatter.OK("Model valid: %d entities, %d relationships", len(result.Entities), len(result.Relationships))
	return nil
}
