package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matt-riley/vwo-openfeature-provider/local"
)

type flagSummary struct {
	Key       string   `json:"key" yaml:"key"`
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Variables []string `json:"variables" yaml:"variables"`
}

type flagList struct {
	Flags []flagSummary `json:"flags" yaml:"flags"`
}

func (l flagList) table() ([]string, [][]string) {
	rows := make([][]string, 0, len(l.Flags))
	for _, f := range l.Flags {
		rows = append(rows, []string{f.Key, strconv.FormatBool(f.Enabled), strings.Join(f.Variables, ", ")})
	}
	return []string{"Key", "Enabled", "Variables"}, rows
}

func newFlagsCmd(a *app) *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "flags",
		Short: "List the flags in the flag file",
		Long: `List the flags in the flag file with their enabled state and variable names.

Examples:
  vwo-eval flags --flags-file flags.yaml
  vwo-eval flags --flags-file flags.yaml --output table --enabled-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.listFlags(enabledOnly)
			if err != nil {
				return err
			}
			header, rows := list.table()
			return writeOutput(a.stdout, a.cfg.OutputFormat, list, header, rows)
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled-only", false, "Show only enabled flags")
	return cmd
}

func (a *app) listFlags(enabledOnly bool) (flagList, error) {
	flags, err := local.LoadFile(a.cfg.FlagsFile)
	if err != nil {
		return flagList{}, fmt.Errorf("load flags: %w", err)
	}

	list := flagList{Flags: make([]flagSummary, 0, len(flags))}
	for key, flag := range flags {
		if enabledOnly && !flag.IsEnabled() {
			continue
		}
		names := make([]string, 0, flag.Variables().Len())
		for _, v := range flag.Variables() {
			names = append(names, v.Key)
		}
		list.Flags = append(list.Flags, flagSummary{Key: key, Enabled: flag.IsEnabled(), Variables: names})
	}
	sort.Slice(list.Flags, func(i, j int) bool { return list.Flags[i].Key < list.Flags[j].Key })

	a.log.Debug("flags listed", "file", a.cfg.FlagsFile, "count", len(list.Flags))
	return list, nil
}
