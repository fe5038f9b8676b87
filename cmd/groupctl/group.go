package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"grouping-server-go/config"
	"grouping-server-go/export"
	"grouping-server-go/grouping"
	"grouping-server-go/models"
	"grouping-server-go/roster"
)

type groupFlags struct {
	configPath string
	mixed      bool
	maxSpread  float64
	groupSize  int
	labels     []string
	out        string
	format     string
}

func newGroupCmd() *cobra.Command {
	defaults := config.Default().Grouping
	f := &groupFlags{}

	cmd := &cobra.Command{
		Use:   "group <roster.csv|roster.xlsx>",
		Short: "Group a roster and print or export the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroup(cmd, f, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "YAML config file providing grouping defaults")
	flags.BoolVar(&f.mixed, "mixed", defaults.Mixed, "group regardless of sex")
	flags.Float64Var(&f.maxSpread, "max-spread", defaults.MaxSpread, "maximum weight difference from a group's first member")
	flags.IntVar(&f.groupSize, "group-size", defaults.GroupSize, "maximum students per group")
	flags.StringSliceVar(&f.labels, "labels", defaults.Labels[:], "the two sex labels used when not mixed, in output order")
	flags.StringVarP(&f.out, "out", "o", "", "write the groups to this file")
	flags.StringVar(&f.format, "format", "", "export format: csv or xlsx (default from --out extension)")
	return cmd
}

func runGroup(cmd *cobra.Command, f *groupFlags, path string) error {
	opts, err := f.options(cmd)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	entries, err := roster.Parse(path, file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	res, err := grouping.BuildGroups(entries, opts)
	if err != nil {
		return err
	}

	if err := printGroups(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if f.out != "" {
		return writeExport(f.out, f.format, res.Groups)
	}
	return nil
}

// options starts from the config file (if any) and applies flags the user
// set explicitly.
func (f *groupFlags) options(cmd *cobra.Command) (grouping.Options, error) {
	opts := config.Default().Grouping
	if f.configPath != "" {
		cfg, err := config.Load(f.configPath)
		if err != nil {
			return opts, err
		}
		opts = cfg.Grouping
	}

	flags := cmd.Flags()
	if flags.Changed("mixed") {
		opts.Mixed = f.mixed
	}
	if flags.Changed("max-spread") {
		opts.MaxSpread = f.maxSpread
	}
	if flags.Changed("group-size") {
		opts.GroupSize = f.groupSize
	}
	if flags.Changed("labels") {
		if len(f.labels) != 2 {
			return opts, fmt.Errorf("--labels needs exactly two values, got %d", len(f.labels))
		}
		opts.Labels = [2]string{f.labels[0], f.labels[1]}
	}
	return opts, opts.Validate()
}

func printGroups(w io.Writer, res *grouping.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Groups created (%s)\n", res.Options)
	for _, g := range res.Groups {
		fmt.Fprintf(tw, "\nGroup %d:\n", g.Index)
		fmt.Fprintln(tw, "Name\tSex\tWeight")
		for _, s := range g.Members {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Sex, export.FormatWeight(s.Weight))
		}
	}
	if len(res.Dropped) > 0 {
		names := make([]string, len(res.Dropped))
		for i, s := range res.Dropped {
			names[i] = fmt.Sprintf("%s (%s)", s.Name, s.Sex)
		}
		fmt.Fprintf(tw, "\n%d student(s) left out, sex label is neither %s nor %s: %s\n",
			len(res.Dropped), res.Options.Labels[0], res.Options.Labels[1], strings.Join(names, ", "))
	}
	return tw.Flush()
}

func writeExport(path, format string, groups []models.Group) error {
	if format == "" {
		format = "csv"
		if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
			format = "xlsx"
		}
	}

	var write func(io.Writer, []models.Group) error
	switch format {
	case "csv":
		write = export.WriteCSV
	case "xlsx":
		write = export.WriteExcel
	default:
		return fmt.Errorf("unknown format %q, use csv or xlsx", format)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(out, groups); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
