package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/driver"
	"github.com/roach88/brutus/internal/ir"
	"github.com/roach88/brutus/internal/lower"
	"github.com/roach88/brutus/internal/store"
	"github.com/roach88/brutus/internal/translate"
)

// CompileOptions holds flags for the compile and translate commands.
type CompileOptions struct {
	*RootOptions
	Methods     []string // specializations to compile; all if empty
	Stage       string   // "lower" | "translate"
	DB          string   // journal database path; no journal if empty
	Jobs        int      // parallel compilations
	NoFastPaths bool     // route intrinsics through the generic entry
}

// CompiledFunction is the outcome of one specialization.
type CompiledFunction struct {
	Spec    string  `json:"spec"`
	Outcome string  `json:"outcome"`
	Code    string  `json:"code,omitempty"`
	Pos     *ir.Pos `json:"pos,omitempty"`
	Message string  `json:"message,omitempty"`
	Blocks  int     `json:"blocks,omitempty"`
	Ops     int     `json:"ops,omitempty"`
	Output  string  `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <fixtures-dir>",
		Short: "Compile typed IR to the std dialect",
		Long: `Compile the typed SSA IR bodies defined in a CUE fixture directory.

Each specialization is translated to jlir and lowered to std through the
compilation driver. With --db every finished compilation is recorded in a
SQLite journal.

Examples:
  brutus compile ./fixtures
  brutus compile ./fixtures --method Main.sum --method "Main.pick(Bool,Int64)"
  brutus compile ./fixtures --stage translate
  brutus compile ./fixtures --db brutus.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Methods, "method", "m", nil, "specialization to compile (repeatable)")
	cmd.Flags().StringVar(&opts.Stage, "stage", "lower", "last stage to run (translate|lower)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "journal database path")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "parallel compilations (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.NoFastPaths, "no-fast-paths", false, "lower intrinsics through the generic entry")

	return cmd
}

// NewTranslateCommand creates the translate command: compile stopped
// after translation.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts, Stage: "translate"}

	cmd := &cobra.Command{
		Use:   "translate <fixtures-dir>",
		Short: "Translate typed IR to the jlir dialect",
		Long: `Translate the typed SSA IR bodies defined in a CUE fixture directory to
jlir and print them. Nothing is lowered or journaled.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Methods, "method", "m", nil, "specialization to translate (repeatable)")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Stage != "lower" && opts.Stage != "translate" {
		return commandError(formatter, fmt.Errorf("invalid stage %q: must be translate or lower", opts.Stage))
	}

	ws, err := LoadWorkspace(dir)
	if err != nil {
		return commandError(formatter, err)
	}
	specs, err := ws.Select(opts.Methods)
	if err != nil {
		return commandError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d specialization(s) from %s", len(ws.Image.Specializations()), dir)

	var results []CompiledFunction
	if opts.Stage == "translate" {
		results = translateAll(ctx, ws, specs)
	} else {
		results, err = lowerAll(ctx, ws, specs, opts, formatter)
		if err != nil {
			return err
		}
	}
	return outputCompileResults(formatter, results)
}

func translateAll(ctx context.Context, ws *Workspace, specs []ir.Specialization) []CompiledFunction {
	results := make([]CompiledFunction, 0, len(specs))
	for _, spec := range specs {
		r := CompiledFunction{Spec: string(spec.Key())}
		body, err := ws.Image.TypedIR(ctx, spec)
		if err != nil {
			r.Outcome, r.Message = string(driver.KindUnavailable), err.Error()
			results = append(results, r)
			continue
		}
		fn, err := translate.Translate(ws.Session, body)
		if err != nil {
			r.Outcome, r.Message = string(driver.KindTranslation), err.Error()
			var te *translate.Error
			if errors.As(err, &te) {
				pos := te.Pos
				r.Code, r.Pos = te.Code, &pos
			}
			results = append(results, r)
			continue
		}
		results = append(results, ready(spec, fn))
	}
	return results
}

func lowerAll(ctx context.Context, ws *Workspace, specs []ir.Specialization, opts *CompileOptions, f *OutputFormatter) ([]CompiledFunction, error) {
	var pipelineOpts []lower.Option
	if opts.NoFastPaths {
		pipelineOpts = append(pipelineOpts, lower.WithoutFastPaths())
	}
	if opts.Verbose {
		pipelineOpts = append(pipelineOpts, lower.WithObserver(func(pass string, fn *dialect.Function) {
			f.VerboseLog("%s: %s done (%d ops)", fn.Name, pass, fn.NumOps())
		}))
	}
	driverOpts := []driver.Option{
		driver.WithPipeline(lower.New(ws.Session, pipelineOpts...)),
		driver.WithConcurrency(opts.Jobs),
	}

	if opts.DB != "" {
		st, err := store.Open(opts.DB)
		if err != nil {
			return nil, commandError(f, &LoadError{Code: ErrCodeJournal, Message: err.Error()})
		}
		defer st.Close()
		last, err := st.LastSeq(ctx)
		if err != nil {
			return nil, commandError(f, &LoadError{Code: ErrCodeJournal, Message: err.Error()})
		}
		driverOpts = append(driverOpts, driver.WithJournal(st), driver.WithClock(driver.NewClockAt(last)))
	}

	d := driver.New(ws.Session, ws.Image, driverOpts...)
	compiled, err := d.CompileAll(ctx, specs)
	if err != nil {
		return nil, commandError(f, err)
	}

	results := make([]CompiledFunction, 0, len(compiled))
	for _, c := range compiled {
		if c.Err == nil {
			results = append(results, ready(c.Spec, c.Func))
			continue
		}
		r := CompiledFunction{Spec: string(c.Spec.Key()), Outcome: string(driver.KindInternal), Message: c.Err.Error()}
		var ce *driver.CompileError
		if errors.As(c.Err, &ce) {
			r.Outcome, r.Code, r.Pos, r.Message = string(ce.Kind), ce.Code, ce.Pos, ce.Message
		}
		results = append(results, r)
	}
	return results, nil
}

func ready(spec ir.Specialization, fn *dialect.Function) CompiledFunction {
	return CompiledFunction{
		Spec:    string(spec.Key()),
		Outcome: "ready",
		Blocks:  len(fn.Blocks),
		Ops:     fn.NumOps(),
		Output:  dialect.Print(fn),
	}
}

func outputCompileResults(f *OutputFormatter, results []CompiledFunction) error {
	failed := 0
	for _, r := range results {
		if r.Outcome != "ready" {
			failed++
		}
	}

	if f.JSON() {
		if failed > 0 {
			_ = f.Failure(ErrCodeCompileFail, fmt.Sprintf("%d of %d compilation(s) failed", failed, len(results)), results)
		} else if err := f.Success(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Outcome == "ready" {
				fmt.Fprint(f.Writer, r.Output)
				continue
			}
			code := r.Code
			if code == "" {
				code = r.Outcome
			}
			fmt.Fprintf(f.Writer, "✗ %s [%s]: %s\n", r.Spec, code, strings.TrimSpace(r.Message))
		}
		fmt.Fprintf(f.Writer, "\n%d compiled, %d failed\n", len(results)-failed, failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d compilation(s) failed", failed))
	}
	return nil
}
