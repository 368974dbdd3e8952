// Package ledger defines the subset of ledger access used by batch workflows: account queries,
// submission of signed calls and transaction status queries.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/smartcontractkit/stacks-batcher/signer"
)

// ErrNotFound is returned by Status when the ledger does not know the transaction (yet).
var ErrNotFound = errors.New("transaction not found")

// Client is the ledger interface consumed by the nonce allocator, broadcaster and
// confirmation tracker.
type Client interface {
	// Account returns the next nonce and balance of address.
	Account(ctx context.Context, address string) (AccountInfo, error)
	// Submit sends a signed payload and returns the ledger assigned txid. Rejections are
	// returned as *RejectionError and transport failures as *TransientError.
	Submit(ctx context.Context, payload signer.SignedPayload) (string, error)
	// Status returns the current status of txid, or ErrNotFound.
	Status(ctx context.Context, txid string) (TxInfo, error)
}

// AccountInfo is the result of an account query.
type AccountInfo struct {
	Address string
	// Nonce is the next nonce the ledger expects from the account.
	Nonce uint64
	// Balance in µSTX.
	Balance *big.Int
}

// TxStatus is the ledger status of a transaction.
type TxStatus string

const (
	StatusPending              TxStatus = "pending"
	StatusSuccess              TxStatus = "success"
	StatusAbortByResponse      TxStatus = "abort_by_response"
	StatusAbortByPostCondition TxStatus = "abort_by_post_condition"
)

// Dropped reports whether the transaction was evicted from the mempool (dropped_* statuses).
func (s TxStatus) Dropped() bool {
	return strings.HasPrefix(string(s), "dropped_")
}

// Terminal reports whether the status will not change anymore.
func (s TxStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusAbortByResponse, StatusAbortByPostCondition:
		return true
	default:
		return s.Dropped()
	}
}

// TxInfo is the result of a status query.
type TxInfo struct {
	TxID   string
	Status TxStatus
	// Result is the Clarity representation of the call result, when executed.
	Result      string
	BlockHeight uint64
}

// Category classifies a submission rejection.
type Category string

const (
	CategoryMalformed     Category = "malformed"
	CategoryNonceConflict Category = "nonce-conflict"
	CategoryPostCondition Category = "post-condition"
	// CategoryDuplicate means the ledger already holds the submitted transaction.
	CategoryDuplicate Category = "duplicate"
)

// RejectionError is a structured submission rejection.
type RejectionError struct {
	Category Category
	Reason   string
	// Data holds the raw reason data returned by the ledger, if any.
	Data string
	// TxID is the txid the ledger reported for the rejected transaction.
	TxID string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	msg := fmt.Sprintf("transaction rejected (%s): %s", e.Category, e.Reason)
	if e.Data != "" {
		msg += ": " + e.Data
	}

	return msg
}

// TransientError wraps a transport or server failure that may succeed when retried.
type TransientError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient ledger error: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is or wraps a *TransientError.
func IsTransient(err error) bool {
	var terr *TransientError
	return errors.As(err, &terr)
}

// AsRejection returns the *RejectionError in err's chain, if any.
func AsRejection(err error) (*RejectionError, bool) {
	var rerr *RejectionError
	ok := errors.As(err, &rerr)

	return rerr, ok
}

// ClassifyRejection maps a mempool rejection reason onto a rejection error. submitted is the
// txid of the payload that was sent and reported the txid echoed by the ledger. Server side
// failures are returned as *TransientError.
func ClassifyRejection(reason, data, submitted, reported string) error {
	rej := &RejectionError{Reason: reason, Data: data, TxID: reported}

	switch {
	case strings.HasPrefix(reason, "ServerFailure"), reason == "TooMuchChaining", reason == "EstimatorError":
		return &TransientError{Op: "submit", Err: rej}
	case reason == "ConflictingNonceInMempool" && reported != "" && strings.EqualFold(reported, submitted):
		rej.Category = CategoryDuplicate
	case reason == "ConflictingNonceInMempool", reason == "BadNonce":
		rej.Category = CategoryNonceConflict
	case strings.Contains(reason, "PostCondition"):
		rej.Category = CategoryPostCondition
	default:
		rej.Category = CategoryMalformed
	}

	return rej
}
