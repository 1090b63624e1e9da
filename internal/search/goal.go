// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package search

import (
	"github.com/sigil-dev/wayfinder/internal/graph"
	"github.com/sigil-dev/wayfinder/internal/normalize"
)

// FindAnswer returns the first node, in insertion order, whose known
// association mentions target and which is neither in frontier nor the
// target itself. Nodes in frontier are where the search came from, so a
// mention there points back at the origin rather than at a destination.
func FindAnswer(g *graph.Graph, frontier *graph.Visited, target string) (graph.Entity, bool) {
	if normalize.Key(target) == "" {
		return graph.Entity{}, false
	}

	for _, n := range g.Snapshot() {
		if !n.Association.Known {
			continue
		}
		if !normalize.Contains(n.Association.Text, target) {
			continue
		}
		if normalize.Equal(n.Entity.Name, target) {
			continue
		}
		if frontier != nil && frontier.IsVisited(n.Entity.Name) {
			continue
		}
		return n.Entity, true
	}
	return graph.Entity{}, false
}
