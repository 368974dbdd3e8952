package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/stacks-batcher/internal/cli/text"
	"github.com/smartcontractkit/stacks-batcher/report"
)

var (
	reportShort = "Print a saved batch report"

	reportLong = text.LongDesc(`
		Prints a report written with --out by a previous batch run. JSON and YAML reports are
		both supported.
	`)

	reportExample = text.Examples(`
		stacks-batcher report report.json
	`)
)

func newReportCmd(_ Config) *cobra.Command {
	return &cobra.Command{
		Use:     "report <file>",
		Short:   reportShort,
		Long:    reportLong,
		Example: reportExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := report.LoadFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err = fmt.Fprintf(out, "report %s (%s, account %s, network %s)\n",
				rep.ID, rep.CreatedAt.Format("2006-01-02 15:04:05 MST"), rep.Account, rep.Network); err != nil {
				return err
			}

			return report.WriteText(out, rep)
		},
	}
}
