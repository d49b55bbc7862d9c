package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// GenesisHash is the literal previous-hash value of the first event in
// any chain.
const GenesisHash = "0"

// Sink receives every appended event after it has been hashed and
// frozen. Sinks must not mutate the event. A sink failure's severity is
// policy-specific: the file sink is primary and its errors are fatal to
// Append; any other registered sink is advisory and its errors are only
// reported through Append's error, never aborted on.
type Sink interface {
	Write(Event) error
	// Primary marks a sink whose failure must abort the process: the
	// file sink is the source of truth for replay.
	Primary() bool
}

// HashChain serializes every audit event behind a dedicated lock,
// independent of any ProductBook lock. Lock ordering: a thread holding
// a ProductBook lock may acquire this one, never the reverse.
type HashChain struct {
	mu           sync.Mutex
	previousHash string
	sinks        []Sink
}

// New constructs a HashChain seeded with the genesis previous-hash.
func New(sinks ...Sink) *HashChain {
	return &HashChain{previousHash: GenesisHash, sinks: sinks}
}

// AddSink registers an additional sink. Intended for startup wiring
// only; not safe to call concurrently with Append.
func (c *HashChain) AddSink(s Sink) {
	c.sinks = append(c.sinks, s)
}

// PrimarySinkError is returned by Append when the primary (file) sink
// fails. Callers must abort the process rather than attempt to continue
// with a chain whose durable log may be incomplete.
type PrimarySinkError struct {
	Err error
}

func (e *PrimarySinkError) Error() string {
	return fmt.Sprintf("audit: primary sink failed, chain integrity at risk: %v", e.Err)
}

func (e *PrimarySinkError) Unwrap() error { return e.Err }

// Append assigns previous_hash and hash to the event (mutating the copy
// it holds internally, never the caller's), delivers it to every
// registered sink, and returns the frozen event. A primary sink failure
// returns a *PrimarySinkError at once and skips the remaining sinks; an
// advisory sink failure is returned as a wrapped error (the last one, if
// several fail) for the caller to log.
func (c *HashChain) Append(e Event) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.PreviousHash = c.previousHash

	payload, err := canonicalJSON(e)
	if err != nil {
		return Event{}, fmt.Errorf("audit: failed to canonicalize event: %w", err)
	}

	sum := sha256.Sum256(append([]byte(c.previousHash), payload...))
	e.Hash = hex.EncodeToString(sum[:])
	c.previousHash = e.Hash

	var advisoryErr error
	for _, sink := range c.sinks {
		if werr := sink.Write(e); werr != nil {
			if sink.Primary() {
				return e, &PrimarySinkError{Err: werr}
			}
			advisoryErr = fmt.Errorf("audit: advisory sink failed: %w", werr)
		}
	}

	return e, advisoryErr
}

// CurrentHash returns the hash the next appended event will chain from.
func (c *HashChain) CurrentHash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previousHash
}
