package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/brutus/internal/ir"
	"github.com/roach88/brutus/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB     string
	Method string // spec key filter
	Limit  int
}

// HistoryEntry is one journal record as printed by history.
type HistoryEntry struct {
	Seq       int64  `json:"seq"`
	RequestID string `json:"request_id"`
	Spec      string `json:"spec"`
	Outcome   string `json:"outcome"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	SpecHash  string `json:"spec_hash"`
	BodyHash  string `json:"body_hash,omitempty"`
	Ops       int    `json:"ops,omitempty"`
	Elapsed   string `json:"elapsed"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the compile journal",
		Long: `List journaled compilations in logical order.

Examples:
  brutus history --db brutus.db
  brutus history --db brutus.db --method "Main.sum(Int64,Int64)" --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "journal database path (required)")
	cmd.Flags().StringVarP(&opts.Method, "method", "m", "", "only records of this specialization key")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "only the most recent records (0 = all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
		return commandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("journal not found: %s", opts.DB)})
	}
	st, err := store.Open(opts.DB)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeJournal, Message: err.Error()})
	}
	defer st.Close()

	recs, err := st.History(ctx, ir.SpecKey(opts.Method), opts.Limit)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeJournal, Message: err.Error()})
	}

	entries := make([]HistoryEntry, len(recs))
	for i, r := range recs {
		entries[i] = HistoryEntry{
			Seq:       r.Seq,
			RequestID: r.RequestID,
			Spec:      string(r.Spec.Key()),
			Outcome:   r.Outcome,
			Code:      r.Code,
			Message:   r.Message,
			SpecHash:  r.SpecHash,
			BodyHash:  r.BodyHash,
			Ops:       r.Ops,
			Elapsed:   r.Elapsed.Round(time.Microsecond).String(),
		}
	}

	if formatter.JSON() {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No compilations recorded.")
		return nil
	}
	for _, e := range entries {
		mark := "✓"
		detail := fmt.Sprintf("%d ops", e.Ops)
		if e.Outcome != "ready" {
			mark = "✗"
			detail = e.Outcome
			if e.Code != "" {
				detail += " " + e.Code
			}
		}
		fmt.Fprintf(formatter.Writer, "%4d %s %s %s (%s) %s\n", e.Seq, mark, e.RequestID, e.Spec, detail, e.Elapsed)
	}
	return nil
}
