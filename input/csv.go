// Package input turns batch input files into ordered requests.
package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smartcontractkit/stacks-batcher/catalog"
)

// Column maps a CSV header to a request argument.
type Column struct {
	Header string
	Arg    string
	// Type is used for cells that do not parse as integers.
	Type catalog.ArgType
}

// Layout describes a CSV file whose rows each become one request of Kind.
type Layout struct {
	Kind    catalog.Kind
	Columns []Column
}

// Listings is the layout of bulk listing files: nft_contract,token_id,price.
var Listings = Layout{
	Kind: catalog.KindCreateListing,
	Columns: []Column{
		{Header: "nft_contract", Arg: "nft-contract", Type: catalog.TypePrincipal},
		{Header: "token_id", Arg: "token-id", Type: catalog.TypeString},
		{Header: "price", Arg: "price", Type: catalog.TypeString},
	},
}

// Transfers is the layout of batch transfer files: nft_contract,token_id,recipient.
var Transfers = Layout{
	Kind: catalog.KindTransfer,
	Columns: []Column{
		{Header: "nft_contract", Arg: "nft-contract", Type: catalog.TypePrincipal},
		{Header: "token_id", Arg: "token-id", Type: catalog.TypeString},
		{Header: "recipient", Arg: "recipient", Type: catalog.TypePrincipal},
	},
}

// ReadListings reads a bulk listing file.
func ReadListings(r io.Reader, source string) ([]catalog.Request, error) {
	return ReadCSV(r, source, Listings)
}

// ReadTransfers reads a batch transfer file.
func ReadTransfers(r io.Reader, source string) ([]catalog.Request, error) {
	return ReadCSV(r, source, Transfers)
}

// ReadCSVFile reads the CSV file at path with layout.
func ReadCSVFile(path string, layout Layout) ([]catalog.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(f, filepath.Base(path), layout)
}

// ReadCSV reads one request per data row. Columns are matched by header name, in any order.
// Cells that parse as integers become uint values, negative ones included, so the builder can
// reject them. A short or malformed row yields a request with missing arguments instead of an
// error, so one bad row does not prevent the others from being processed.
func ReadCSV(r io.Reader, source string, layout Layout) ([]catalog.Request, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: missing header row", source)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", source, err)
	}

	positions, err := columnPositions(header, layout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	var reqs []catalog.Request
	for {
		record, rerr := cr.Read()
		if errors.Is(rerr, io.EOF) {
			break
		}

		req := catalog.NewRequest(layout.Kind)

		var perr *csv.ParseError
		switch {
		case errors.As(rerr, &perr):
			// keep the row so it is reported as invalid
			req.Source = fmt.Sprintf("%s:%d", source, perr.StartLine)
		case rerr != nil:
			return nil, fmt.Errorf("%s: %w", source, rerr)
		default:
			line, _ := cr.FieldPos(0)
			req.Source = fmt.Sprintf("%s:%d", source, line)
			for i, col := range layout.Columns {
				pos := positions[i]
				if pos >= len(record) || strings.TrimSpace(record[pos]) == "" {
					continue
				}
				req.Args = append(req.Args, catalog.A(col.Arg, cell(record[pos], col.Type)))
			}
		}

		reqs = append(reqs, req)
	}

	return reqs, nil
}

func columnPositions(header []string, layout Layout) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalizeHeader(h)] = i
	}

	positions := make([]int, len(layout.Columns))
	var missing []string
	for i, col := range layout.Columns {
		pos, ok := index[col.Header]
		if !ok {
			missing = append(missing, col.Header)
			continue
		}
		positions[i] = pos
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s in header %q", strings.Join(missing, ", "), strings.Join(header, ","))
	}

	return positions, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func cell(raw string, fallback catalog.ArgType) catalog.Value {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return catalog.Uint(n)
	}
	if fallback == catalog.TypePrincipal {
		return catalog.Principal(raw)
	}

	return catalog.String(raw)
}
