// Copyright 2024 rg0now. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dag

import (
	"fmt"
	"strings"
)

// New creates an empty graph.
func New() *Graph {
	return &Graph{byLabel: map[string]int{}, edges: map[string]map[string]bool{}}
}

// Roots returns the roots of the DAG, i.e., the nodes without an incoming edge, in insertion
// order.
func (g *Graph) Roots() []string {
	hasIncoming := make(map[string]bool, len(g.Nodes))
	for _, from := range g.Nodes {
		for to := range g.edges[from] {
			hasIncoming[to] = true
		}
	}

	roots := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if !hasIncoming[n] {
			roots = append(roots, n)
		}
	}
	return roots
}

// CycleError reports a dependency cycle. The path starts and ends at the same node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle: %s", strings.Join(e.Path, " -> "))
}

// TopoSort returns the nodes reachable from the given roots so that every node comes after all
// of its dependencies. Ties are broken by insertion order, so the result is deterministic. A
// cycle is reported as a *CycleError.
func (g *Graph) TopoSort(roots ...string) ([]string, error) {
	const (
		unvisited = iota
		active
		done
	)
	mark := make(map[string]int, len(g.Nodes))
	order := make([]string, 0, len(g.Nodes))
	var stack []string

	var visit func(n string) error
	visit = func(n string) error {
		switch mark[n] {
		case done:
			return nil
		case active:
			start := 0
			for i, s := range stack {
				if s == n {
					start = i
					break
				}
			}
			path := append(append([]string{}, stack[start:]...), n)
			return &CycleError{Path: path}
		}

		mark[n] = active
		stack = append(stack, n)
		for _, dep := range g.Edges(n) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		mark[n] = done
		order = append(order, n)
		return nil
	}

	for _, r := range roots {
		if !g.HasNode(r) {
			return nil, fmt.Errorf("unknown node %q", r)
		}
		if err := visit(r); err != nil {
			return nil, err
		}
	}
	return order, nil
}
