package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// VerificationError describes one failing offset found while walking a
// chain.
type VerificationError struct {
	Index        int
	EventID      string
	ExpectedHash string
	ObservedHash string
	Reason       string
}

func (e VerificationError) Error() string {
	return fmt.Sprintf("audit: event %d (%s): %s (expected %s, observed %s)",
		e.Index, e.EventID, e.Reason, e.ExpectedHash, e.ObservedHash)
}

// Report is the result of VerifyChain: whether the chain is intact, plus
// every error found. Verification does not short-circuit on the first
// failure; it keeps walking so forensics can see every downstream
// consequence (e.g. one tampered event plus every subsequent
// previous-hash mismatch it causes).
type Report struct {
	Valid  bool
	Errors []VerificationError
}

// VerifyChain recomputes the hash of each event in sequence order and
// compares it to the stored hash, and checks that each event's
// previous_hash matches the prior event's hash (GenesisHash for the
// first). It operates on an in-memory, already-parsed sequence so it
// can be reused both in-process and by offline tooling that has parsed
// a JSONL audit file.
func VerifyChain(events []Event) Report {
	report := Report{Valid: true}
	expectedPrevious := GenesisHash

	for i, e := range events {
		if e.PreviousHash != expectedPrevious {
			report.Valid = false
			report.Errors = append(report.Errors, VerificationError{
				Index:        i,
				EventID:      e.EventID,
				ExpectedHash: expectedPrevious,
				ObservedHash: e.PreviousHash,
				Reason:       "previous_hash mismatch",
			})
		}

		payload, err := canonicalJSON(e)
		if err != nil {
			report.Valid = false
			report.Errors = append(report.Errors, VerificationError{
				Index:   i,
				EventID: e.EventID,
				Reason:  fmt.Sprintf("failed to canonicalize: %v", err),
			})
			expectedPrevious = e.Hash
			continue
		}

		sum := sha256.Sum256(append([]byte(e.PreviousHash), payload...))
		recomputed := hex.EncodeToString(sum[:])
		if recomputed != e.Hash {
			report.Valid = false
			report.Errors = append(report.Errors, VerificationError{
				Index:        i,
				EventID:      e.EventID,
				ExpectedHash: recomputed,
				ObservedHash: e.Hash,
				Reason:       "hash mismatch",
			})
		}

		// Carry the recomputed hash forward, not the stored one: a
		// tampered event then also surfaces as a previous_hash mismatch on
		// its successor, giving forensics the full blast radius.
		expectedPrevious = recomputed
	}

	return report
}
