package cmd

import (
	"fmt"

	"github.com/ufcsebrae/Prumo/internal/normalizer"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// monthsCmd prints the month labels the normalizer accepts
var monthsCmd = &cobra.Command{
	Use:   "months [label...]",
	Short: "Show the month labels or resolve labels to month numbers",
	Long: `Months prints the twelve configured month labels. Given arguments, it
resolves each one the way the sources are read: configured labels in any
case with or without accents, full month names and numbers.

Examples:
  prumo months
  prumo months Março 03 "dez."`,

	RunE: runMonths,
}

func init() {
	rootCmd.AddCommand(monthsCmd)
}

func runMonths(cmd *cobra.Command, args []string) error {
	months := normalizer.DefaultMonthMap()
	if labels := viper.GetStringSlice("months"); len(labels) > 0 {
		m, err := normalizer.NewMonthMap(labels)
		if err != nil {
			return err
		}
		months = m
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for i, label := range months.Labels() {
			fmt.Fprintf(out, "%2d  %s\n", i+1, label)
		}
		return nil
	}

	unresolved := 0
	for _, arg := range args {
		n, ok := months.Number(arg)
		if !ok {
			unresolved++
			fmt.Fprintf(out, "%-12q  not a month\n", arg)
			continue
		}
		fmt.Fprintf(out, "%-12q  %2d  %s\n", arg, n, months.Label(n))
	}

	if unresolved > 0 {
		return fmt.Errorf("%d of %d labels are not months", unresolved, len(args))
	}
	return nil
}
