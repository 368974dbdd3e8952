package input

import (
	"fmt"

	"github.com/smartcontractkit/stacks-batcher/catalog"
)

// InteractionPlan returns the scripted marketplace interaction: 10 mints, 10 listings,
// 5 featured listings, 10 offers, 5 auctions, 3 verification requests, 3 verifications,
// 2 whitelists, 2 bundles and 2 fee changes, all against contracts deployed by deployer.
func InteractionPlan(deployer string) []catalog.Request {
	nft := catalog.Principal(deployer + "." + catalog.ContractExampleNFT)
	collections := []string{
		deployer + "." + catalog.ContractExampleNFT,
		deployer + "." + catalog.ContractMarketplace,
		deployer + "." + catalog.ContractAuction,
	}

	reqs := make([]catalog.Request, 0, 52)
	add := func(label string, kind catalog.Kind, args ...catalog.Arg) {
		reqs = append(reqs, catalog.Request{Kind: kind, Args: args, Label: label, Source: "interaction"})
	}

	for i := int64(1); i <= 10; i++ {
		add(fmt.Sprintf("Minting NFT #%d", i), catalog.KindMint,
			catalog.A("recipient", catalog.Principal(deployer)))
	}
	for i := int64(1); i <= 10; i++ {
		price := 1_000_000 + i*100_000
		add(fmt.Sprintf("Listing NFT #%d for %s STX", i, stx(price)), catalog.KindCreateListing,
			catalog.A("nft-contract", nft), catalog.A("token-id", catalog.Uint(i)), catalog.A("price", catalog.Uint(price)))
	}
	for i := int64(1); i <= 5; i++ {
		add(fmt.Sprintf("Featuring listing #%d", i), catalog.KindFeatureListing,
			catalog.A("listing-id", catalog.Uint(i)))
	}
	for i := int64(1); i <= 10; i++ {
		amount := 800_000 + i*50_000
		add(fmt.Sprintf("Creating offer for NFT #%d: %s STX", i, stx(amount)), catalog.KindCreateOffer,
			catalog.A("nft-contract", nft), catalog.A("token-id", catalog.Uint(i)),
			catalog.A("amount", catalog.Uint(amount)), catalog.A("duration", catalog.Uint(144)))
	}
	for i := int64(1); i <= 5; i++ {
		start := 500_000 + i*100_000
		add(fmt.Sprintf("Creating auction for NFT #%d: starting at %s STX", 10+i, stx(start)), catalog.KindCreateAuction,
			catalog.A("nft-contract", nft), catalog.A("token-id", catalog.Uint(10+i)),
			catalog.A("start-price", catalog.Uint(start)), catalog.A("duration", catalog.Uint(288)))
	}
	for i, c := range collections {
		add(fmt.Sprintf("Requesting verification for collection %d", i+1), catalog.KindRequestVerification,
			catalog.A("collection", catalog.Principal(c)),
			catalog.A("metadata-uri", catalog.String(fmt.Sprintf("https://metadata.example.com/collection-%d", i))))
	}
	for i, c := range collections {
		add(fmt.Sprintf("Verifying collection %d", i+1), catalog.KindVerifyCollection,
			catalog.A("collection", catalog.Principal(c)),
			catalog.A("verification-uri", catalog.String(fmt.Sprintf("https://verified.example.com/collection-%d", i))))
	}
	for i := 1; i <= 2; i++ {
		name := fmt.Sprintf("Premium Sale %d", i)
		add("Creating whitelist: "+name, catalog.KindCreateWhitelist,
			catalog.A("name", catalog.String(name)), catalog.A("duration", catalog.Uint(1440)))
	}
	for i := int64(1); i <= 2; i++ {
		price := 5_000_000 + i*1_000_000
		add(fmt.Sprintf("Creating bundle #%d with 3 NFTs for %s STX", i, stx(price)), catalog.KindCreateBundle,
			catalog.A("price", catalog.Uint(price)), catalog.A("item-count", catalog.Uint(3)))
	}
	add("Setting platform fee to 3%", catalog.KindSetPlatformFee, catalog.A("fee-bps", catalog.Uint(300)))
	add("Setting verification fee to 2 STX", catalog.KindSetVerificationFee, catalog.A("fee", catalog.Uint(2_000_000)))

	return reqs
}

func stx(micro int64) string {
	return fmt.Sprintf("%g", float64(micro)/1_000_000)
}
