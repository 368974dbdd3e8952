package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/stacks-batcher/catalog"
	"github.com/smartcontractkit/stacks-batcher/internal/cli/text"
)

var (
	callShort = "Submit a single marketplace operation"

	callLong = text.LongDesc(`
		Submits one operation of the catalog. Arguments are given as name=value pairs and are
		converted to the types the operation expects; run "stacks-batcher kinds" to list them.
	`)

	callExample = text.Examples(`
		# Buy listing 12
		stacks-batcher call purchase-listing listing-id=12 --confirm

		# Make an offer of 0.9 STX on token 3, valid for 144 blocks
		stacks-batcher call create-offer nft-contract=SP1EPS1JHVHZ3MZRVY3381PDJJJ8PAFTDHMWAGK8P.example-nft token-id=3 amount=900000 duration=144
	`)
)

func newCallCmd(cfg Config) *cobra.Command {
	return newBatchCmd(cfg, &cobra.Command{
		Use:     "call <kind> [name=value ...]",
		Short:   callShort,
		Long:    callLong,
		Example: callExample,
		Args:    cobra.MinimumNArgs(1),
	}, func(_ *runtime, args []string) ([]catalog.Request, error) {
		req, err := parseCall(catalog.Default(), args[0], args[1:])
		if err != nil {
			return nil, err
		}

		return []catalog.Request{req}, nil
	})
}

// parseCall builds a request of kind from name=value pairs typed after the catalog entry.
func parseCall(c *catalog.Catalog, kind string, pairs []string) (catalog.Request, error) {
	entry, err := c.Lookup(catalog.Kind(kind))
	if err != nil {
		return catalog.Request{}, err
	}

	req := catalog.NewRequest(entry.Kind)
	req.Source = "command line"
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return catalog.Request{}, fmt.Errorf("argument %q must be name=value", p)
		}
		spec, ok := entry.Spec(name)
		if !ok {
			return catalog.Request{}, fmt.Errorf("%s has no argument %q", entry.Kind, name)
		}
		v, err := catalog.ParseValue(spec.Type, raw)
		if err != nil {
			return catalog.Request{}, fmt.Errorf("argument %s: %w", name, err)
		}
		req.Args = append(req.Args, catalog.A(name, v))
	}

	// pairs may be given in any order
	slices.SortStableFunc(req.Args, func(a, b catalog.Arg) int {
		return argIndex(entry, a.Name) - argIndex(entry, b.Name)
	})

	return req, nil
}

func argIndex(e catalog.Entry, name string) int {
	return slices.IndexFunc(e.Args, func(s catalog.ArgSpec) bool { return s.Name == name })
}
