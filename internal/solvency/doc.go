// Package solvency keeps an account's public and hidden balances and proves,
// without revealing hidden amounts, that its rate-weighted assets cover its
// rate-weighted liabilities.
//
// Accounts ingest ledger outputs with Update. An Audit carries the conversion
// rates and drives a Prover to attach a proof to the account, which any party
// holding the account's PublicAccount view can check with a Verifier.
package solvency
