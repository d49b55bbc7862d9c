// Package registry maintains the bijective OCO (and other future link
// types) relationship between two tradables. Each relationship is
// stored twice, once per participating order id, in a sync.Map, so
// lookup from either side is O(1) without a global mutex. The registry
// is an owned collaborator, not process-global state.
package registry

import (
	"sync"
	"time"

	"matchcore/src/tradable"
)

// Relationship links two tradables under one link type (OCO today; OSO
// and OTO are reserved per tradable.LinkType for future triggers).
type Relationship struct {
	PrimaryID string
	LinkedID  string
	LinkType  tradable.LinkType
	Active    bool
	CreatedTS int64
	mu        sync.Mutex
}

// Involves reports whether orderID participates in this relationship.
func (r *Relationship) Involves(orderID string) bool {
	return r.PrimaryID == orderID || r.LinkedID == orderID
}

// CounterpartyOf returns the other leg of the relationship for orderID,
// or "" if orderID does not participate.
func (r *Relationship) CounterpartyOf(orderID string) string {
	switch orderID {
	case r.PrimaryID:
		return r.LinkedID
	case r.LinkedID:
		return r.PrimaryID
	default:
		return ""
	}
}

func (r *Relationship) deactivate() {
	r.mu.Lock()
	r.Active = false
	r.mu.Unlock()
}

func (r *Relationship) isActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Active
}

// Registry tracks active order relationships, keyed by either
// participant's id.
type Registry struct {
	entries sync.Map // string -> *Relationship
}

// New constructs an empty, ready-to-use Registry.
func New() *Registry {
	return &Registry{}
}

// Link registers a relationship between two distinct order ids. It is
// stored under both ids so either side resolves the other in O(1).
func (reg *Registry) Link(id1, id2 string, linkType tradable.LinkType) *Relationship {
	rel := &Relationship{
		PrimaryID: id1,
		LinkedID:  id2,
		LinkType:  linkType,
		Active:    true,
		CreatedTS: time.Now().UnixNano(),
	}
	reg.entries.Store(id1, rel)
	reg.entries.Store(id2, rel)
	return rel
}

// Get returns the relationship for orderID, or nil if none exists.
func (reg *Registry) Get(orderID string) *Relationship {
	v, ok := reg.entries.Load(orderID)
	if !ok {
		return nil
	}
	return v.(*Relationship)
}

// HasActive reports whether orderID has an active relationship.
func (reg *Registry) HasActive(orderID string) bool {
	rel := reg.Get(orderID)
	return rel != nil && rel.isActive()
}

// Deactivate marks the relationship involving orderID inactive without
// removing it. Used when a leg is explicitly cancelled: the cascade
// only happens on a fill, never on a cancel.
func (reg *Registry) Deactivate(orderID string) {
	rel := reg.Get(orderID)
	if rel == nil {
		return
	}
	rel.deactivate()
}

// Remove deletes the relationship under both participant ids. Used once
// an OCO cascade has completed (the filled leg is gone, the cancelled
// counterpart is gone).
func (reg *Registry) Remove(orderID string) {
	rel := reg.Get(orderID)
	if rel == nil {
		return
	}
	reg.entries.Delete(rel.PrimaryID)
	reg.entries.Delete(rel.LinkedID)
}

// Stats reports relationship counts for operator tooling. Divides by
// two because every relationship is stored under both participant ids.
type Stats struct {
	Total  int
	Active int
}

func (reg *Registry) Stats() Stats {
	total := 0
	active := 0
	reg.entries.Range(func(_, v any) bool {
		total++
		if v.(*Relationship).isActive() {
			active++
		}
		return true
	})
	return Stats{Total: total / 2, Active: active / 2}
}
