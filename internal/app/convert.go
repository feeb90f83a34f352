package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"modelkit/internal/etl"
	"modelkit/internal/etl/sources"
	"modelkit/internal/jsonenc"
	"modelkit/internal/model"
)

// documentFlags are shared by the commands that read JSON documents.
type documentFlags struct {
	dataPath  string
	modelName string
	order     []string
	exclude   []string
}

func (f *documentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dataPath, "data-path", "", "dot-separated path to the objects inside the document")
	cmd.Flags().StringVar(&f.modelName, "model-name", "", "type name given to each object")
	cmd.Flags().StringSliceVar(&f.order, "order", nil, "explicit field order; unlisted fields are dropped")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "fields to leave out")
}

// read decodes the JSON file named by args (stdin when absent or "-") into
// document models.
func (f *documentFlags) read(cmd *cobra.Command, args []string) ([]model.Model, error) {
	var in io.Reader = cmd.InOrStdin()
	name := "stdin"
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer file.Close()
		in, name = file, args[0]
	}

	var raw any
	if err := json.NewDecoder(in).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	cfg := etl.SourceConfig{
		"dataPath":  f.dataPath,
		"modelName": f.modelName,
		"order":     f.order,
		"exclude":   f.exclude,
	}
	return sources.DocumentModels(cfg, raw)
}

// ── dict ───────────────────────────────────────────────────

func dictCmd() *cobra.Command {
	var (
		docs   documentFlags
		indent bool
		sorted bool
	)

	cmd := &cobra.Command{
		Use:   "dict [file.json]",
		Short: "Print each JSON object as a normalized dictionary, one per line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := docs.read(cmd, args)
			if err != nil {
				return err
			}

			var opts []jsonenc.Option
			if indent {
				opts = append(opts, jsonenc.Indent("", "  "))
			}
			if sorted {
				opts = append(opts, jsonenc.SortKeys(true))
			}
			out := cmd.OutOrStdout()
			for i, m := range models {
				data, err := model.ToJSON(m, opts...)
				if err != nil {
					return fmt.Errorf("object %d: %w", i, err)
				}
				fmt.Fprintln(out, string(data))
			}
			return nil
		},
	}
	docs.register(cmd)
	cmd.Flags().BoolVar(&indent, "indent", false, "indent the output")
	cmd.Flags().BoolVar(&sorted, "sort-keys", false, "sort keys at every level")
	return cmd
}

// ── rows ───────────────────────────────────────────────────

func rowsCmd() *cobra.Command {
	var (
		docs   documentFlags
		sep    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "rows [file.json]",
		Short: "Flatten JSON objects into rows, fanning out every list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := docs.read(cmd, args)
			if err != nil {
				return err
			}

			p := model.Projector{Sep: sep}
			var rows []*model.Dict
			for i, m := range models {
				projected, err := model.ToRowsWith(m, p)
				if err != nil {
					return fmt.Errorf("object %d: %w", i, err)
				}
				rows = append(rows, projected...)
			}
			schema, records := etl.FromRows(rows)

			out := cmd.OutOrStdout()
			switch format {
			case "csv":
				_, err = etl.WriteCSV(cmd.Context(), out, 0, true, schema, records)
			case "tsv":
				_, err = etl.WriteCSV(cmd.Context(), out, '\t', true, schema, records)
			case "jsonl":
				_, err = etl.WriteJSONLines(cmd.Context(), out, nil, schema, records)
			default:
				return fmt.Errorf("unknown format %q (csv, tsv or jsonl)", format)
			}
			return err
		},
	}
	docs.register(cmd)
	cmd.Flags().StringVar(&sep, "sep", ".", "key-path separator for nested columns")
	cmd.Flags().StringVarP(&format, "format", "f", "jsonl", "output format: jsonl, csv or tsv")
	return cmd
}

// ── preview ────────────────────────────────────────────────

func previewCmd(open openFunc) *cobra.Command {
	var (
		cfgJSON string
		sep     string
		maxRows int
	)

	cmd := &cobra.Command{
		Use:   "preview <source-type | job>",
		Short: "Show the rows a source or job would export, without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			sourceType, cfg := args[0], etl.SourceConfig{}
			if cfgJSON != "" {
				if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
					return fmt.Errorf("parse source config: %w", err)
				}
			} else if job, err := a.Exports.GetJob(args[0]); err == nil {
				sourceType, cfg = job.SourceType, job.SourceCfg
				if !cmd.Flags().Changed("sep") && job.Separator != "" {
					sep = job.Separator
				}
			}

			preview, err := a.Exports.Preview(cmd.Context(), sourceType, cfg, sep, maxRows)
			if err != nil {
				return err
			}
			_, err = etl.WriteCSV(cmd.Context(), cmd.OutOrStdout(), '\t', true, preview.Schema, preview.Records)
			return err
		},
	}
	cmd.Flags().StringVar(&cfgJSON, "config-json", "", "source configuration as JSON (when not previewing a job)")
	cmd.Flags().StringVar(&sep, "sep", ".", "key-path separator for nested columns")
	cmd.Flags().IntVarP(&maxRows, "limit", "n", 10, "maximum rows")
	return cmd
}
