package solvency

import "errors"

var (
	// ErrInputMismatch: the claimed amount disagrees with the resolved public amount.
	ErrInputMismatch = errors.New("input mismatch")
	// ErrMissingBlinds: a confidential output was referenced without its opening.
	ErrMissingBlinds = errors.New("missing blinds")
	// ErrDecompressElement: a ledger commitment is not a valid point.
	ErrDecompressElement = errors.New("decompress element")
	// ErrMissingConversionRate: an entry's code has no rate in the audit table.
	ErrMissingConversionRate = errors.New("missing conversion rate")
	// ErrProveFailed: the statement is false or the engine failed.
	ErrProveFailed = errors.New("prove failed")
	// ErrMissingProof: verify was called without a stored proof.
	ErrMissingProof = errors.New("missing proof")
	// ErrDeserializeProof: the stored proof bytes are corrupt.
	ErrDeserializeProof = errors.New("deserialize proof")
	// ErrVerifyFailed: the engine rejected the proof.
	ErrVerifyFailed = errors.New("verify failed")
	// ErrQuery: the ledger could not resolve the output.
	ErrQuery = errors.New("ledger query")
	// ErrMalformedState: persisted state failed validation on decode.
	ErrMalformedState = errors.New("malformed state")
)
