package broadcast

// Status is the state of one submission.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
	// StatusSkipped is set by the orchestrator for items it never submitted.
	StatusSkipped Status = "skipped"
)

// FailureKind classifies a failed outcome. Every failure has exactly one kind.
type FailureKind string

const (
	// KindValidationError is a local validation failure, found before any network access.
	KindValidationError FailureKind = "validation-error"
	// KindValidationRejection is a ledger rejection of a malformed call. Not retried.
	KindValidationRejection FailureKind = "validation-rejection"
	// KindNonceConflict is returned to the orchestrator, which resyncs and retries once.
	KindNonceConflict FailureKind = "nonce-conflict"
	// KindNetworkError is reported after the retry policy is exhausted.
	KindNetworkError FailureKind = "network-error"
	// KindPostConditionFailure is a ledger rejection of the post-conditions. Not retried.
	KindPostConditionFailure FailureKind = "post-condition-failure"
	KindSigningError         FailureKind = "signing-error"
)

// Definitive reports whether the ledger refused the transaction outright, so its nonce was
// not consumed and can be reused.
func (k FailureKind) Definitive() bool {
	return k == KindValidationRejection || k == KindPostConditionFailure
}

// Outcome is the result of submitting one intent.
type Outcome struct {
	Status Status `json:"status" yaml:"status"`
	// TxID is set for submitted outcomes.
	TxID string `json:"txid,omitempty" yaml:"txid,omitempty"`
	// Kind and Detail are set for failed outcomes. Detail is also set on skipped ones.
	Kind     FailureKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Detail   string      `json:"detail,omitempty" yaml:"detail,omitempty"`
	Attempts int         `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// Submitted returns a submitted outcome.
func Submitted(txid string, attempts int) Outcome {
	return Outcome{Status: StatusSubmitted, TxID: txid, Attempts: attempts}
}

// Failed returns a failed outcome.
func Failed(kind FailureKind, detail string, attempts int) Outcome {
	return Outcome{Status: StatusFailed, Kind: kind, Detail: detail, Attempts: attempts}
}

// Skipped returns a skipped outcome.
func Skipped(detail string) Outcome {
	return Outcome{Status: StatusSkipped, Detail: detail}
}

// IsSubmitted reports whether the ledger accepted the transaction.
func (o Outcome) IsSubmitted() bool { return o.Status == StatusSubmitted }

// IsFailed reports whether the outcome is a failure.
func (o Outcome) IsFailed() bool { return o.Status == StatusFailed }
