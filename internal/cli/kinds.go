package cli

import (
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/stacks-batcher/catalog"
	"github.com/smartcontractkit/stacks-batcher/internal/cli/text"
)

var (
	kindsShort = "List the supported operation kinds"

	kindsLong = text.LongDesc(`
		Lists every operation kind with the contract function it calls and its arguments.
		Contracts are deployed by the configured contract address, except for transfers which
		are made on the NFT contract given in the request.
	`)
)

func newKindsCmd(_ Config) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: kindsShort,
		Long:  kindsLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Kind", "Call", "Arguments", "Version", "Description"})
			table.SetAutoWrapText(false)
			table.SetBorders(tablewriter.Border{Left: false, Right: false, Top: true, Bottom: true})

			for _, e := range catalog.Default().Entries() {
				table.Append([]string{
					string(e.Kind),
					callName(e),
					argList(e.Args),
					e.Def.Version.String(),
					e.Def.Description,
				})
			}
			table.Render()

			return nil
		},
	}
}

func callName(e catalog.Entry) string {
	contract := e.Contract
	if contract == "" {
		contract = "<" + e.Target + ">"
	}

	return contract + "." + e.Function
}

func argList(specs []catalog.ArgSpec) string {
	parts := make([]string, 0, len(specs))
	for _, s := range specs {
		parts = append(parts, s.Name+":"+string(s.Type))
	}

	return strings.Join(parts, " ")
}
