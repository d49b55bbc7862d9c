package engine

import (
	"fmt"
	"sync"

	"matchcore/src/audit"
	"matchcore/src/registry"
	"matchcore/src/stp"
)

// ProductManager owns the instrument -> ProductBook mapping. Instruments
// are added at startup only and never removed at runtime; the map itself
// is therefore read-mostly and guarded by a plain RWMutex rather than
// anything fancier.
type ProductManager struct {
	mu       sync.RWMutex
	books    map[string]*ProductBook
	chain    *audit.HashChain
	registry *registry.Registry
}

// NewProductManager constructs an empty manager sharing one HashChain
// and one OCO registry across every instrument it will host, so the
// chain induces a total order over all audit events across instruments.
func NewProductManager(chain *audit.HashChain, reg *registry.Registry) *ProductManager {
	return &ProductManager{
		books:    make(map[string]*ProductBook),
		chain:    chain,
		registry: reg,
	}
}

// AddInstrument registers a new instrument with its own ProductBook,
// STP engine, and top-of-book publisher. Returns an error if the
// instrument is already registered.
func (m *ProductManager) AddInstrument(instrument string, stpMode stp.Mode, publisher Publisher) (*ProductBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.books[instrument]; exists {
		return nil, fmt.Errorf("engine: instrument %q already registered", instrument)
	}

	book := NewProductBook(instrument, stp.New(stpMode), m.registry, m.chain, publisher)
	m.books[instrument] = book
	return book, nil
}

// Get returns the ProductBook for instrument, or ok=false if unknown.
func (m *ProductManager) Get(instrument string) (*ProductBook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.books[instrument]
	return book, ok
}

// Instruments returns every registered instrument symbol.
func (m *ProductManager) Instruments() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.books))
	for k := range m.books {
		out = append(out, k)
	}
	return out
}
