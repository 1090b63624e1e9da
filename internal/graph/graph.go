// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package graph holds the per-search knowledge graph of entities and their
// associations, and the set of entities already sent to the relation oracle.
package graph

import (
	"sync"

	"github.com/sigil-dev/wayfinder/internal/normalize"
)

// Kind distinguishes the two entity families the relation oracle knows about.
type Kind string

const (
	KindPlace  Kind = "place"
	KindPerson Kind = "person"
)

// Valid reports whether k is a known entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPlace, KindPerson:
		return true
	default:
		return false
	}
}

// Entity is a person or place. Two entities are the same node when their
// normalized names match.
type Entity struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// NewEntity builds an entity with a folded display name.
func NewEntity(name string, kind Kind) Entity {
	return Entity{Name: normalize.Fold(name), Kind: kind}
}

// Key returns the normalized identity of the entity.
func (e Entity) Key() string {
	return normalize.Key(e.Name)
}

// Association is the relation text returned for an entity. Known is false
// when the oracle had nothing to say (restricted, unavailable or never asked).
type Association struct {
	Text  string `json:"text,omitempty"`
	Known bool   `json:"known"`
}

// Unknown is the null association.
var Unknown = Association{}

// Known wraps text as a known association.
func Known(text string) Association {
	return Association{Text: text, Known: true}
}

// Node is one graph entry as exposed to callers.
type Node struct {
	Entity      Entity      `json:"entity"`
	Association Association `json:"association"`
}

// Graph maps normalized entity keys to nodes. The zero value is not usable;
// call New.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]Node
	order []string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]Node)}
}

// Merge inserts entity with assoc when absent, or upgrades an unknown
// association to a known one. A known association is never overwritten.
// It reports whether the graph changed.
func (g *Graph) Merge(entity Entity, assoc Association) bool {
	key := entity.Key()
	if key == "" {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.nodes[key]
	if !ok {
		g.nodes[key] = Node{Entity: entity, Association: assoc}
		g.order = append(g.order, key)
		return true
	}

	if existing.Association.Known || !assoc.Known {
		return false
	}

	existing.Association = assoc
	g.nodes[key] = existing
	return true
}

// Get returns the association stored for entity, if the entity is present.
func (g *Graph) Get(entity Entity) (Association, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[entity.Key()]
	return n.Association, ok
}

// Has reports whether a node with the given name exists, regardless of kind.
func (g *Graph) Has(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes[normalize.Key(name)]
	return ok
}

// Keys returns the entities in insertion order.
func (g *Graph) Keys() []Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Entity, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.nodes[k].Entity)
	}
	return out
}

// Snapshot returns a copy of every node in insertion order.
func (g *Graph) Snapshot() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Node, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.nodes[k])
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
