package catalog

import "github.com/Masterminds/semver/v3"

// Contract names of the marketplace deployment.
const (
	ContractExampleNFT   = "example-nft"
	ContractMarketplace  = "nft-marketplace"
	ContractOffers       = "nft-offers"
	ContractAuction      = "nft-auction"
	ContractVerification = "collection-verification"
	ContractWhitelist    = "nft-whitelist"
	ContractBundle       = "nft-bundle"
)

var v1 = semver.MustParse("1.0.0")

func def(kind Kind, description string) Definition {
	return Definition{ID: string(kind), Version: v1, Description: description}
}

// DefaultEntries returns the marketplace operations.
func DefaultEntries() []Entry {
	nftContract := ArgSpec{Name: "nft-contract", Type: TypePrincipal}
	tokenID := ArgSpec{Name: "token-id", Type: TypeUint}

	return []Entry{
		{
			Def:  def(KindMint, "Mint an example NFT to a recipient"),
			Kind: KindMint, Contract: ContractExampleNFT, Function: "mint",
			Args: []ArgSpec{{Name: "recipient", Type: TypePrincipal}},
		},
		{
			Def:  def(KindCreateListing, "List an NFT on the marketplace"),
			Kind: KindCreateListing, Contract: ContractMarketplace, Function: "create-listing",
			Args: []ArgSpec{nftContract, tokenID, {Name: "price", Type: TypeUint, Positive: true}},
		},
		{
			Def:  def(KindPurchaseListing, "Purchase a marketplace listing"),
			Kind: KindPurchaseListing, Contract: ContractMarketplace, Function: "purchase-listing",
			Args: []ArgSpec{{Name: "listing-id", Type: TypeUint}},
		},
		{
			Def:  def(KindFeatureListing, "Feature a marketplace listing"),
			Kind: KindFeatureListing, Contract: ContractMarketplace, Function: "feature-listing",
			Args: []ArgSpec{{Name: "listing-id", Type: TypeUint}},
		},
		{
			Def:  def(KindTransfer, "Transfer a SIP-009 NFT from the signing account"),
			Kind: KindTransfer, Target: "nft-contract", Function: "transfer",
			Args: []ArgSpec{nftContract, tokenID, {Name: "recipient", Type: TypePrincipal}},
			Call: []string{"token-id", TxSender, "recipient"},
		},
		{
			Def:  def(KindCreateOffer, "Make an offer on an NFT"),
			Kind: KindCreateOffer, Contract: ContractOffers, Function: "create-offer",
			Args: []ArgSpec{
				nftContract, tokenID,
				{Name: "amount", Type: TypeUint, Positive: true},
				{Name: "duration", Type: TypeUint},
			},
		},
		{
			Def:  def(KindAcceptOffer, "Accept an offer"),
			Kind: KindAcceptOffer, Contract: ContractOffers, Function: "accept-offer",
			Args: []ArgSpec{{Name: "offer-id", Type: TypeUint}},
		},
		{
			Def:  def(KindCancelOffer, "Cancel an offer"),
			Kind: KindCancelOffer, Contract: ContractOffers, Function: "cancel-offer",
			Args: []ArgSpec{{Name: "offer-id", Type: TypeUint}},
		},
		{
			Def:  def(KindCreateAuction, "Start an auction for an NFT"),
			Kind: KindCreateAuction, Contract: ContractAuction, Function: "create-auction",
			Args: []ArgSpec{
				nftContract, tokenID,
				{Name: "start-price", Type: TypeUint, Positive: true},
				{Name: "duration", Type: TypeUint},
			},
		},
		{
			Def:  def(KindRequestVerification, "Request verification of a collection"),
			Kind: KindRequestVerification, Contract: ContractVerification, Function: "request-verification",
			Args: []ArgSpec{{Name: "collection", Type: TypePrincipal}, {Name: "metadata-uri", Type: TypeString}},
		},
		{
			Def:  def(KindVerifyCollection, "Mark a collection as verified"),
			Kind: KindVerifyCollection, Contract: ContractVerification, Function: "verify-collection",
			Args: []ArgSpec{{Name: "collection", Type: TypePrincipal}, {Name: "verification-uri", Type: TypeString}},
		},
		{
			Def:  def(KindCreateWhitelist, "Create a sale whitelist"),
			Kind: KindCreateWhitelist, Contract: ContractWhitelist, Function: "create-whitelist",
			Args: []ArgSpec{{Name: "name", Type: TypeString}, {Name: "duration", Type: TypeUint}},
		},
		{
			Def:  def(KindCreateBundle, "Create an NFT bundle sale"),
			Kind: KindCreateBundle, Contract: ContractBundle, Function: "create-bundle",
			Args: []ArgSpec{{Name: "price", Type: TypeUint, Positive: true}, {Name: "item-count", Type: TypeUint}},
		},
		{
			Def:  def(KindSetPlatformFee, "Set the marketplace fee in basis points"),
			Kind: KindSetPlatformFee, Contract: ContractMarketplace, Function: "set-platform-fee",
			Args: []ArgSpec{{Name: "fee-bps", Type: TypeUint}},
		},
		{
			Def:  def(KindSetVerificationFee, "Set the collection verification fee"),
			Kind: KindSetVerificationFee, Contract: ContractVerification, Function: "set-verification-fee",
			Args: []ArgSpec{{Name: "fee", Type: TypeUint}},
		},
	}
}

// Default returns a catalog holding DefaultEntries.
func Default() *Catalog {
	c, err := New(DefaultEntries()...)
	if err != nil {
		panic(err) // static entries
	}

	return c
}
