package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/efebarandurmaz/archscore/internal/app"
	"github.com/efebarandurmaz/archscore/internal/config"
	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/llm"
	"github.com/efebarandurmaz/archscore/internal/observability"
	"github.com/efebarandurmaz/archscore/internal/progress"
	"github.com/efebarandurmaz/archscore/internal/recommend"
	"github.com/efebarandurmaz/archscore/internal/reporting"
	"github.com/efebarandurmaz/archscore/internal/scoring"
	"github.com/efebarandurmaz/archscore/internal/suggest"
	"github.com/spf13/cobra"
)

var version = "dev"

type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func main() {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "archscore",
		Short:         "Architecture diagram pattern analysis and scoring",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if c.logLevel != "" {
				cfg.Log.Level = c.logLevel
			}
			c.cfg = cfg
			return observability.SetupLogging(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "archscore.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(
		c.scoreCmd(),
		c.trackCmd(),
		c.historyCmd(),
		c.exportCmd(),
		c.statsCmd(),
		c.patternsCmd(),
		c.suggestCmd(),
		c.similarCmd(),
		c.serveCmd(),
		providersCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// open builds the application from the loaded config. Callers must Close it.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	return app.Build(ctx, c.cfg, version)
}

func (c *cli) scoreCmd() *cobra.Command {
	var (
		jsonOut     bool
		parallelism int
	)
	cmd := &cobra.Command{
		Use:   "score <file|glob>...",
		Short: "Score one or more diagram files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			paths, err := expandPaths(args)
			if err != nil {
				return err
			}
			items := make([]reporting.BatchItem, 0, len(paths))
			for _, p := range paths {
				d, err := diagram.LoadFile(p)
				if err != nil {
					return err
				}
				items = append(items, reporting.BatchItem{Name: p, Diagram: d})
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			results, err := a.Service.ScoreBatch(ctx, items, parallelism)
			if err != nil {
				return err
			}
			failed := 0
			if jsonOut {
				out := make([]batchJSON, 0, len(results))
				for _, r := range results {
					bj := batchJSON{Name: r.Name, Report: r.Report}
					if r.Err != nil {
						bj.Error = r.Err.Error()
						failed++
					}
					out = append(out, bj)
				}
				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if len(results) > 1 {
						fmt.Fprintf(cmd.OutOrStdout(), "=== %s ===\n", r.Name)
					}
					if r.Err != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "error: %v\n\n", r.Err)
						failed++
						continue
					}
					fmt.Fprintln(cmd.OutOrStdout(), scoring.FormatReport(r.Report))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d diagrams could not be scored", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output reports as JSON")
	cmd.Flags().IntVar(&parallelism, "parallel", 4, "Number of diagrams scored concurrently")
	return cmd
}

type batchJSON struct {
	Name   string          `json:"name"`
	Report *scoring.Report `json:"report,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (c *cli) trackCmd() *cobra.Command {
	var (
		session string
		dtype   string
		jsonOut bool
		durable bool
	)
	cmd := &cobra.Command{
		Use:   "track <file>",
		Short: "Score a diagram and record it in the session history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := diagram.LoadFile(args[0])
			if err != nil {
				return err
			}
			if dtype != "" {
				d.Type = diagram.DiagramType(dtype)
			}
			if durable {
				return c.trackDurable(cmd, session, d, jsonOut)
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			res, err := a.Service.ScoreAndTrack(ctx, diagram.NewIdentity(session, d.Type), d)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printTracked(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session id the diagram belongs to")
	cmd.Flags().StringVar(&dtype, "type", "", "Diagram type (defaults to the file's type)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the result as JSON")
	cmd.Flags().BoolVar(&durable, "durable", false, "Run through the Temporal workflow instead of in-process")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func printTracked(w io.Writer, res *progress.Result) {
	fmt.Fprintln(w, scoring.FormatReport(res.Report))
	if res.SnapshotID != "" {
		fmt.Fprintf(w, "Snapshot: %s\n", res.SnapshotID)
	}
	if res.Progress != nil {
		fmt.Fprintln(w, progress.FormatProgress(res.Progress))
	}
	fmt.Fprintf(w, "Trend: %s\n", res.TrendStatus)
	if res.TrendError != "" {
		fmt.Fprintf(w, "History unavailable: %s\n", res.TrendError)
	}
	for _, r := range res.Recommendations {
		if r.Type == recommend.TypeTrend {
			fmt.Fprintf(w, "  [%s] %s\n", r.Priority, r.Message)
		}
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var (
		session string
		dtype   string
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent snapshots for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			snaps, err := a.Service.History(ctx, diagram.NewIdentity(session, diagram.DiagramType(dtype)), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), snaps)
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshots recorded.")
				return nil
			}
			for _, s := range snaps {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %3d/100  patterns=%d issues=%d\n",
					s.CreatedAt.Format("2006-01-02 15:04:05"), s.ID, s.Total, len(s.Patterns), s.IssueCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session id")
	cmd.Flags().StringVar(&dtype, "type", string(diagram.DiagramSystem), "Diagram type")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of snapshots")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output snapshots as JSON")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Render a diagram as dot, mermaid or json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := diagram.LoadFile(args[0])
			if err != nil {
				return err
			}
			switch format {
			case "dot":
				fmt.Fprint(cmd.OutOrStdout(), diagram.ExportDOT(d))
			case "mermaid":
				fmt.Fprint(cmd.OutOrStdout(), diagram.ExportMermaid(d))
			case "json":
				data, err := diagram.ExportJSON(d)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			default:
				return fmt.Errorf("unknown export format %q (want dot, mermaid or json)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "mermaid", "Output format: dot, mermaid, json")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Print structural statistics for a diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := diagram.LoadFile(args[0])
			if err != nil {
				return err
			}
			if err := diagram.Validate(d); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), diagram.FormatStats(diagram.ComputeStats(d)))
			return nil
		},
	}
}

func (c *cli) patternsCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the pattern definitions in the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := app.LoadRegistry(c.cfg.Scoring.RegistryPath)
			if err != nil {
				return err
			}
			defs := reg.Definitions()
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), defs)
			}
			for _, d := range defs {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-22s %-13s %s\n", d.ID, d.Category, d.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output definitions as JSON")
	return cmd
}

func (c *cli) suggestCmd() *cobra.Command {
	var (
		sc      suggest.Context
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "suggest <file>",
		Short: "Suggest improvements for a diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := diagram.LoadFile(args[0])
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			out, err := a.Service.Suggest(ctx, d, sc)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}
			printSuggestions(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&sc.Stage, "stage", "", "Design stage, e.g. initial or review")
	cmd.Flags().StringVar(&sc.ProblemDomain, "domain", "", "Problem domain the design addresses")
	cmd.Flags().StringSliceVar(&sc.Requirements, "requirement", nil, "Requirement to consider (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output suggestions as JSON")
	return cmd
}

func printSuggestions(w io.Writer, s *suggest.Suggestions) {
	fmt.Fprintln(w, "Immediate actions:")
	if len(s.ImmediateActions) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, a := range s.ImmediateActions {
		fmt.Fprintf(w, "  [%s] %s\n", a.Priority, a.Action)
	}
	if len(s.ProposedChanges) > 0 {
		fmt.Fprintln(w, "\nProposed changes:")
		for _, ch := range s.ProposedChanges {
			fmt.Fprintf(w, "  %s %s -> %s\n", ch.Type, ch.NodeType, strings.Join(ch.Connections, ", "))
		}
	}
	if len(s.AISuggestions) > 0 {
		fmt.Fprintln(w, "\nAI suggestions:")
		for _, line := range s.AISuggestions {
			fmt.Fprintf(w, "  - %s\n", line)
		}
	}
	if s.AIError != "" {
		fmt.Fprintf(w, "\nAI suggestions unavailable: %s\n", s.AIError)
	}
}

func (c *cli) similarCmd() *cobra.Command {
	var (
		k       int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "similar <file>",
		Short: "Find previously tracked designs similar to a diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := diagram.LoadFile(args[0])
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			results, err := a.Service.Similar(ctx, d, k)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), results)
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "  %.3f  %-30s %3d/100\n", r.Score, r.Identity, r.Total)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 5, "Number of results")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output results as JSON")
	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			names := make([]string, 0, len(llm.KnownProviders))
			for name := range llm.KnownProviders {
				names = append(names, name)
			}
			sort.Strings(names)

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Available LLM providers:")
			fmt.Fprintln(w)
			for _, name := range names {
				fmt.Fprintf(w, "  %-14s %s\n", name, llm.KnownProviders[name])
			}
			fmt.Fprintln(w, "  custom         (set base_url to any OpenAI-compatible endpoint)")
			fmt.Fprintln(w, "  none           (rule-based suggestions only)")
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Configure in archscore.yaml or via environment:")
			fmt.Fprintln(w, "  ARCHSCORE_LLM_PROVIDER=groq")
			fmt.Fprintln(w, "  ARCHSCORE_LLM_API_KEY=gsk_...")
			fmt.Fprintln(w, "  ARCHSCORE_LLM_MODEL=llama-3.3-70b-versatile")
		},
	}
}

// expandPaths resolves ** globs. Arguments without glob syntax are kept
// as-is so a missing file surfaces as a read error.
func expandPaths(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			if !seen[arg] {
				seen[arg] = true
				out = append(out, arg)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", arg)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
