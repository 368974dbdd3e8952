package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/stacks-batcher/confirm"
	"github.com/smartcontractkit/stacks-batcher/internal/cli/flags"
	"github.com/smartcontractkit/stacks-batcher/internal/cli/text"
	"github.com/smartcontractkit/stacks-batcher/ledger"
)

var (
	statusShort = "Show the status of transactions"

	statusLong = text.LongDesc(`
		Queries the ledger for the status of one or more transactions. With --wait the command
		polls each transaction until it succeeds, aborts or the confirmation attempts run out.
	`)

	statusExample = text.Examples(`
		stacks-batcher status 0x3f2a...e1 0x9b7c...04

		stacks-batcher status 0x3f2a...e1 --wait
	`)
)

type statusRow struct {
	txid   string
	status string
	block  string
	result string
	link   string
}

func newStatusCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status <txid>...",
		Short:   statusShort,
		Long:    statusLong,
		Example: statusExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, cfg, args, flags.MustBool(cmd.Flags().GetBool("wait")))
		},
	}

	flags.Config(cmd)
	cmd.Flags().BoolP("wait", "w", false, "Poll until every transaction is terminal")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg Config, txids []string, wait bool) error {
	ctx := cmd.Context()

	rt, err := setup(cmd, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	var tracker *confirm.Tracker
	if wait {
		if tracker, err = rt.tracker(); err != nil {
			return err
		}
	}

	rows := make([]statusRow, 0, len(txids))
	for _, txid := range txids {
		row := statusRow{txid: txid, link: rt.network.TxURL(txid)}

		if tracker != nil {
			rec, perr := tracker.Poll(ctx, txid)
			if perr != nil {
				return fmt.Errorf("poll %s: %w", txid, perr)
			}
			row.status = string(rec.Status)
			if rec.Reason != "" {
				row.status += " (" + rec.Reason + ")"
			}
			row.result = rec.Result
			row.block = blockHeight(rec.BlockHeight)
		} else {
			info, serr := rt.ledger.Status(ctx, txid)
			switch {
			case errors.Is(serr, ledger.ErrNotFound):
				row.status = "not found"
			case serr != nil:
				return fmt.Errorf("status %s: %w", txid, serr)
			default:
				row.status = string(info.Status)
				row.result = info.Result
				row.block = blockHeight(info.BlockHeight)
			}
		}

		rows = append(rows, row)
	}

	writeStatus(cmd.OutOrStdout(), rows)

	return nil
}

func blockHeight(h uint64) string {
	if h == 0 {
		return ""
	}

	return strconv.FormatUint(h, 10)
}

func writeStatus(w io.Writer, rows []statusRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"TxID", "Status", "Block", "Result", "Explorer"})
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: false, Right: false, Top: true, Bottom: true})

	for _, r := range rows {
		table.Append([]string{r.txid, r.status, r.block, r.result, r.link})
	}
	table.Render()
}
