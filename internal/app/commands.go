package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"modelkit/internal/etl"
	mcpserver "modelkit/internal/mcp"
	"modelkit/internal/service"
)

const defaultConfigPath = "modelkit.yaml"

// Execute runs the modelkit command line.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "modelkit",
		Short:        "Convert records to dictionaries, JSON and flat rows, and export them",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "configuration file")

	// open loads config and wires the services for commands that need them.
	open := func(cmd *cobra.Command, emitter service.EventEmitter) (*App, error) {
		cfg, err := LoadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return nil, err
		}
		return Open(cfg, emitter)
	}

	root.AddCommand(
		dictCmd(),
		rowsCmd(),
		sourcesCmd(),
		connectionsCmd(open),
		jobsCmd(open),
		exportCmd(open),
		previewCmd(open),
		serveCmd(open),
		mcpCmd(open),
	)
	return root
}

type openFunc func(cmd *cobra.Command, emitter service.EventEmitter) (*App, error)

// ── jobs ───────────────────────────────────────────────────

func jobsCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List export jobs and their last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.Exports.ListJobs()
			if err != nil {
				return err
			}
			printJobs(cmd.OutOrStdout(), jobs)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "runs <job>",
		Short: "Show the latest runs of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			logs, err := a.Exports.ListRunLogs(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSTATUS\tREAD\tWRITTEN\tDURATION\tERROR")
			for _, l := range logs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
					l.StartedAt.Format(time.DateTime), l.Status, l.RowsRead, l.RowsWritten,
					l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond), l.Error)
			}
			return w.Flush()
		},
	})
	return cmd
}

func printJobs(out io.Writer, jobs []etl.ExportJob) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOURCE\tTARGET\tMODE\tTRIGGER\tENABLED\tLAST RUN\tSTATUS")
	for _, j := range jobs {
		lastRun := "-"
		if !j.LastRunAt.IsZero() {
			lastRun = j.LastRunAt.Format(time.DateTime)
		}
		trigger := j.TriggerType
		if j.TriggerConfig != "" {
			trigger += " " + j.TriggerConfig
		}
		fmt.Fprintf(w, "%s\t%s\t%s:%s\t%s\t%s\t%t\t%s\t%s\n",
			j.Name, j.SourceType, j.Target, j.TargetTable, j.SyncMode, trigger, j.Enabled, lastRun, j.LastStatus)
	}
	w.Flush()
}

// ── export ─────────────────────────────────────────────────

func exportCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "export <job>...",
		Short: "Run export jobs now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			failed := 0
			for _, ref := range args {
				result, err := a.Exports.RunJob(cmd.Context(), ref)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", ref, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d model(s), %d row(s) read, %d written in %s\n",
					ref, result.ModelsRead, result.RowsRead, result.RowsWritten, result.Duration.Round(time.Millisecond))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d job(s) failed", failed, len(args))
			}
			return nil
		},
	}
}

// ── serve ──────────────────────────────────────────────────

func serveCmd(open openFunc) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled and file-watch jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := open(cmd, service.LogEmitter{})
			if err != nil {
				return err
			}
			defer a.Close()

			scheduled, watched := a.Exports.RestartWatchers(ctx)
			if scheduled == 0 && watched == 0 {
				return fmt.Errorf("no enabled scheduled or file-watch jobs")
			}
			<-ctx.Done()

			a.Exports.Stop()
			waitCtx, waitCancel := context.WithTimeout(context.Background(), grace)
			defer waitCancel()
			a.Exports.WaitRunning(waitCtx)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 30*time.Second, "how long to wait for running jobs on shutdown")
	return cmd
}

// ── mcp ────────────────────────────────────────────────────

func mcpCmd(open openFunc) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if watch {
				a.Exports.RestartWatchers(ctx)
			}
			return mcpserver.New(mcpserver.Deps{Exports: a.Exports}).ServeStdio()
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "also run scheduled and file-watch jobs")
	return cmd
}

// ── sources ────────────────────────────────────────────────

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List source types and their settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, spec := range etl.ListSources() {
				fmt.Fprintf(w, "%s\t%s\n", spec.Type, spec.Label)
				for _, f := range spec.ConfigFields {
					req := ""
					if f.Required {
						req = " (required)"
					}
					fmt.Fprintf(w, "  %s\t%s%s\n", f.Key, f.Help, req)
				}
			}
			return w.Flush()
		},
	}
}

// ── connections ────────────────────────────────────────────

func connectionsCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Check that every configured connection responds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			failed := 0
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDRIVER\tSTATUS")
			for _, st := range a.Exports.Connections().Check(cmd.Context()) {
				status := "ok"
				if st.Error != "" {
					status, failed = st.Error, failed+1
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", st.Name, st.Driver, status)
			}
			w.Flush()
			if failed > 0 {
				return fmt.Errorf("%d connection(s) failed", failed)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-password <connection>",
		Short: "Store a connection password read from stdin in the secret store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.Exports.Connections().SetPassword(args[0], strings.TrimRight(string(data), "\r\n"))
		},
	})
	return cmd
}
