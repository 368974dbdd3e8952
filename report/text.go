package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/smartcontractkit/stacks-batcher/batch"
)

// WriteText renders rep as a human readable table followed by the totals.
func WriteText(w io.Writer, rep Report) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Operation", "Nonce", "Status", "Detail"})
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: false, Right: false, Top: true, Bottom: true})

	for _, e := range rep.Entries {
		table.Append([]string{
			strconv.Itoa(e.Index + 1),
			operation(e),
			nonce(e),
			string(e.Category()),
			detail(e),
		})
	}
	table.Render()

	_, err := fmt.Fprintf(w, "run %s: %d total, %d succeeded, %d failed, %d timed out, %d skipped, fees %s STX\n",
		rep.RunID, rep.Counts.Total, rep.Counts.Succeeded, rep.Counts.Failed, rep.Counts.TimedOut,
		rep.Counts.Skipped, rep.FeesSTX.String())
	if err != nil {
		return err
	}
	if rep.Cancelled {
		_, err = fmt.Fprintln(w, "run was cancelled before all requests were processed")
	}

	return err
}

func operation(e batch.Entry) string {
	if e.Request.Label != "" {
		return e.Request.Label
	}

	return string(e.Request.Kind)
}

func nonce(e batch.Entry) string {
	if e.Nonce == nil {
		return "-"
	}

	return strconv.FormatUint(*e.Nonce, 10)
}

func detail(e batch.Entry) string {
	switch {
	case e.Outcome.IsFailed():
		return fmt.Sprintf("%s: %s", e.Outcome.Kind, e.Outcome.Detail)
	case e.Confirmation != nil && e.Confirmation.Reason != "":
		return fmt.Sprintf("%s (%s)", e.Outcome.TxID, e.Confirmation.Reason)
	case e.Outcome.TxID != "":
		return e.Outcome.TxID
	default:
		return e.Outcome.Detail
	}
}
