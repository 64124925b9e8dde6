package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/brutus/internal/translate"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Methods []string
}

// ValidationReport lists every problem found in one body.
type ValidationReport struct {
	Spec   string             `json:"spec"`
	Errors []*translate.Error `json:"errors"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <fixtures-dir>",
		Short: "Check typed IR bodies without compiling them",
		Long: `Check every typed SSA IR body in a CUE fixture directory and report all
problems found, not just the first one a compilation would stop at.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Methods, "method", "m", nil, "specialization to validate (repeatable)")

	return cmd
}

func runValidate(ctx context.Context, opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ws, err := LoadWorkspace(dir)
	if err != nil {
		return commandError(formatter, err)
	}
	specs, err := ws.Select(opts.Methods)
	if err != nil {
		return commandError(formatter, err)
	}

	var reports []ValidationReport
	problems := 0
	for _, spec := range specs {
		body, err := ws.Image.TypedIR(ctx, spec)
		if err != nil {
			return commandError(formatter, err)
		}
		formatter.VerboseLog("Validating %s", spec)
		errs := translate.Validate(ws.Session, body)
		if len(errs) == 0 {
			continue
		}
		problems += len(errs)
		reports = append(reports, ValidationReport{Spec: string(spec.Key()), Errors: errs})
	}

	if formatter.JSON() {
		if problems > 0 {
			_ = formatter.Failure(reports[0].Errors[0].Code, fmt.Sprintf("%d problem(s) in %d bod(ies)", problems, len(reports)), reports)
		} else if err := formatter.Success(map[string]int{"validated": len(specs)}); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			fmt.Fprintf(formatter.Writer, "✗ %s\n", r.Spec)
			for _, e := range r.Errors {
				fmt.Fprintf(formatter.Writer, "  %s\n", e)
			}
		}
		if problems == 0 {
			fmt.Fprintf(formatter.Writer, "✓ %d bod(ies) valid\n", len(specs))
		}
	}

	if problems > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("validation found %d problem(s)", problems))
	}
	return nil
}
