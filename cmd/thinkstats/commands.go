package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ipcarrow "github.com/VanDung-dev/ThinkStats-Engine/arrow"
	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/data"
	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/nsfg"
	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/stats"
)

// defaultLabel tags the success line of validate.
const defaultLabel = "chap01ex"

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [label]",
		Short: "Check the pregnum distribution against the 2002 snapshot",
		Long: `Loads the respondent file, prints the pregnum value counts and the row
count, then checks:

  rows       == 7643
  pregnum[1] == 1267
  pregnum[3] == 1110
  pregnum[5] == 305

The first failing check stops the run with a non-zero exit code.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := defaultLabel
			if len(args) == 1 {
				label = args[0]
			}
			return nsfg.Validate(label, a.stdout, a.femRespOptions()...)
		},
	}
}

func newFreqCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "freq <column>",
		Short: "Print the value counts of one column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			column := strings.ToLower(args[0])
			record, err := nsfg.ReadFemResp(a.femRespOptions(nsfg.WithColumns(column))...)
			if err != nil {
				return err
			}
			defer record.Release()

			if err := printFrequency(a, record, column); err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, record.NumRows())
			return err
		},
	}
}

func printFrequency(a *app, record arrow.Record, column string) error {
	col, err := stats.Column(record, column)
	if err != nil {
		return err
	}

	switch col.DataType().ID() {
	case arrow.INT64:
		freq, err := stats.IntValueCounts(record, column)
		if err != nil {
			return err
		}
		return freq.Fprint(a.stdout)
	case arrow.FLOAT64:
		freq, err := stats.FloatValueCounts(record, column)
		if err != nil {
			return err
		}
		return freq.Fprint(a.stdout)
	case arrow.STRING:
		freq, err := stats.StringValueCounts(record, column)
		if err != nil {
			return err
		}
		return freq.Fprint(a.stdout)
	default:
		return fmt.Errorf("column %q has unsupported type %s", column, col.DataType())
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	var check string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the column layout declared by the dictionary",
		Long: `Prints the column layout declared by the dictionary.

With --check, reads an Arrow IPC snapshot written by export and verifies that
each of its columns has the name, type, byte range, format and description the
dictionary declares.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dict, err := data.ReadStataDct(a.cfg.DctFile)
			if err != nil {
				return err
			}
			if check != "" {
				return checkSnapshot(a, dict, check)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tSTART\tEND\tFORMAT\tDESCRIPTION")
			for _, v := range dict.Variables {
				end := "-"
				if v.End > 0 {
					end = fmt.Sprint(v.End)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", v.Name, v.StataType, v.Start, end, v.Format, v.Desc)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&check, "check", "", "verify an Arrow IPC snapshot against the dictionary")
	return cmd
}

// checkSnapshot compares the snapshot at path with the dictionary narrowed to
// the snapshot's columns, so exports made with --columns can be checked too.
func checkSnapshot(a *app, dict *data.Dictionary, path string) error {
	record, err := ipcarrow.NewIPCWriter().ReadFromFile(path)
	if err != nil {
		return err
	}
	defer record.Release()

	names := make([]string, record.NumCols())
	for i := range names {
		names[i] = record.ColumnName(i)
	}
	sub, err := dict.Select(names...)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := data.ValidateSchema(record, sub.ArrowSchema()); err != nil {
		return fmt.Errorf("%s does not match %s: %w", path, a.cfg.DctFile, err)
	}

	a.logger.Debug("snapshot checked", zap.String("path", path), zap.Int64("rows", record.NumRows()))
	_, err = fmt.Fprintf(a.stdout, "%s: %d columns, %d rows match %s\n",
		path, record.NumCols(), record.NumRows(), a.cfg.DctFile)
	return err
}

func newExportCmd(a *app) *cobra.Command {
	var columns []string

	cmd := &cobra.Command{
		Use:   "export <out.arrows>",
		Short: "Write the loaded table as an Arrow IPC stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := nsfg.ReadFemResp(a.femRespOptions(nsfg.WithColumns(columns...))...)
			if err != nil {
				return err
			}
			defer record.Release()

			if err := ipcarrow.NewIPCWriter().WriteToFile(args[0], record); err != nil {
				return err
			}
			a.logger.Info("table exported",
				zap.String("path", args[0]),
				zap.Int64("rows", record.NumRows()),
				zap.Int64("columns", record.NumCols()))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "export only these columns")
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(a.stdout, "%s v%s\n", Name, Version)
			return err
		},
	}
}
