// Package signer holds the signing capability used to turn intents into submit-ready payloads.
package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/smartcontractkit/stacks-batcher/txbuilder"
)

// SignedPayload is a signed call ready for submission.
type SignedPayload struct {
	// TxID is the identifier the ledger assigns to Raw.
	TxID  string
	Raw   []byte
	Nonce uint64
}

// Signer signs intents on behalf of one account.
type Signer interface {
	Sign(ctx context.Context, intent txbuilder.Intent) (SignedPayload, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, intent txbuilder.Intent) (SignedPayload, error)

// Sign implements Signer.
func (f SignerFunc) Sign(ctx context.Context, intent txbuilder.Intent) (SignedPayload, error) {
	return f(ctx, intent)
}

// KeySigner signs with a local secp256k1 private key.
//
// The payload is a canonical JSON envelope of the intent and the signer public key followed by
// the 65 byte recoverable signature over its SHA-512/256 digest. The txid is the SHA-512/256
// digest of the whole payload, so signing the same intent twice yields the same txid.
//
// WARNING: the key is held in memory for the lifetime of the signer.
type KeySigner struct {
	key    *ecdsa.PrivateKey
	pubHex string
}

// NewKeySigner parses a hex encoded private key. A trailing "01" compression marker, as found
// in Stacks exported keys, is accepted.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("private key is required")
	}
	if len(hexKey) == 66 && strings.HasSuffix(hexKey, "01") {
		hexKey = hexKey[:64]
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &KeySigner{
		key:    key,
		pubHex: hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey)),
	}, nil
}

// PublicKey returns the hex encoded compressed public key.
func (s *KeySigner) PublicKey() string {
	return s.pubHex
}

type envelope struct {
	PublicKey string           `json:"publicKey"`
	Intent    txbuilder.Intent `json:"intent"`
}

// Sign implements Signer.
func (s *KeySigner) Sign(ctx context.Context, intent txbuilder.Intent) (SignedPayload, error) {
	if err := ctx.Err(); err != nil {
		return SignedPayload{}, err
	}

	body, err := json.Marshal(envelope{PublicKey: s.pubHex, Intent: intent})
	if err != nil {
		return SignedPayload{}, fmt.Errorf("encode intent: %w", err)
	}

	digest := sha512.Sum512_256(body)
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return SignedPayload{}, fmt.Errorf("sign intent: %w", err)
	}

	raw := make([]byte, 0, len(body)+len(sig))
	raw = append(raw, body...)
	raw = append(raw, sig...)
	txid := sha512.Sum512_256(raw)

	return SignedPayload{
		TxID:  "0x" + hex.EncodeToString(txid[:]),
		Raw:   raw,
		Nonce: intent.Nonce,
	}, nil
}

// Verify checks that payload was signed by the holder of the compressed public key pubHex.
func Verify(pubHex string, payload SignedPayload) error {
	if len(payload.Raw) <= crypto.SignatureLength {
		return errors.New("payload too short")
	}
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	body := payload.Raw[:len(payload.Raw)-crypto.SignatureLength]
	sig := payload.Raw[len(payload.Raw)-crypto.SignatureLength:]
	digest := sha512.Sum512_256(body)
	if !crypto.VerifySignature(pub, digest[:], sig[:crypto.RecoveryIDOffset]) {
		return errors.New("signature does not match public key")
	}

	return nil
}
