// Command ledgerstat prints what the local ledger knows: how many
// fingerprints are recorded per source and the most recent runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deusflow/incidentfeed/internal/ledger"
)

type options struct {
	statePath   string
	databaseURL string
	runs        int
	format      string // "text" | "json"
}

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "ledgerstat",
		Short:        "Show ledger contents and recent runs",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.format)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return run(ctx, cmd.OutOrStdout(), opts)
		},
	}

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state.sqlite"
	}
	cmd.Flags().StringVar(&opts.statePath, "state", statePath, "SQLite ledger path (env STATE_PATH)")
	cmd.Flags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL ledger (env DATABASE_URL)")
	cmd.Flags().IntVarP(&opts.runs, "runs", "n", 5, "number of recent runs to show")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format (text|json)")

	return cmd
}

func run(ctx context.Context, w io.Writer, opts *options) error {
	if opts.databaseURL == "" {
		if _, err := os.Stat(opts.statePath); err != nil {
			return fmt.Errorf("ledger file %s: %w", opts.statePath, err)
		}
	}

	store, err := ledger.Open(ctx, opts.databaseURL, opts.statePath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	recent, err := store.RecentRuns(ctx, opts.runs)
	if err != nil {
		return fmt.Errorf("read runs: %w", err)
	}

	if opts.format == "json" {
		return writeJSON(w, stats, recent)
	}
	if opts.databaseURL != "" {
		fmt.Fprintf(w, "Ledger: PostgreSQL %s\n\n", maskPassword(opts.databaseURL))
	} else {
		fmt.Fprintf(w, "Ledger: SQLite %s\n\n", opts.statePath)
	}
	writeText(w, stats, recent)
	return nil
}

func writeText(w io.Writer, stats ledger.Stats, recent []ledger.Run) {
	fmt.Fprintln(w, "Synced fingerprints:")
	fmt.Fprintf(w, "  Total: %d\n", stats.Entries)
	for _, s := range sortedSources(stats.BySource) {
		fmt.Fprintf(w, "  %s: %d\n", s, stats.BySource[s])
	}

	fmt.Fprintf(w, "\nRuns: %d", stats.Runs)
	if !stats.LastRunAt.IsZero() {
		fmt.Fprintf(w, " (last %s)", stats.LastRunAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintln(w)

	if len(recent) == 0 {
		fmt.Fprintln(w, "  (no runs recorded yet)")
		return
	}
	for i, r := range recent {
		fmt.Fprintf(w, "  %d. %s  %-7s %s\n", i+1, r.At.Format("2006-01-02 15:04:05"), r.Status, r.Message)
	}
}

type jsonRun struct {
	At      time.Time `json:"run_at"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

type jsonReport struct {
	Entries   int            `json:"entries"`
	BySource  map[string]int `json:"by_source"`
	Runs      int            `json:"runs"`
	LastRunAt *time.Time     `json:"last_run_at,omitempty"`
	Recent    []jsonRun      `json:"recent_runs"`
}

func writeJSON(w io.Writer, stats ledger.Stats, recent []ledger.Run) error {
	rep := jsonReport{
		Entries:  stats.Entries,
		BySource: stats.BySource,
		Runs:     stats.Runs,
		Recent:   make([]jsonRun, 0, len(recent)),
	}
	if !stats.LastRunAt.IsZero() {
		rep.LastRunAt = &stats.LastRunAt
	}
	for _, r := range recent {
		rep.Recent = append(rep.Recent, jsonRun{At: r.At, Status: r.Status, Message: r.Message})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func sortedSources(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func maskPassword(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return dbURL
	}
	return u.Redacted()
}
