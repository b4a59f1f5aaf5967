// Package cluster groups candidates that share records. A profile matched by
// several CRM contacts usually means the CRM itself holds duplicates.
package cluster

import (
	"sort"
	"strings"
)

// Edge links two records; Weight is the similarity score of the candidate.
type Edge struct {
	A      string
	B      string
	Weight float64
}

type Detector interface {
	Detect(nodes []string, edges []Edge) [][]string
}

// NewDetector returns the detector for method: "lpa" selects label
// propagation, anything else connected components.
func NewDetector(method string) Detector {
	if strings.EqualFold(method, "lpa") {
		return NewLabelPropagationDetector()
	}
	return ComponentDetector{}
}

// ComponentDetector returns connected components of two or more nodes.
type ComponentDetector struct{}

func (ComponentDetector) Detect(nodes []string, edges []Edge) [][]string {
	adj := adjacency(nodes, edges)
	visited := make(map[string]bool, len(nodes))

	var groups [][]string
	for _, n := range nodes {
		if visited[n] {
			continue
		}
		var component []string
		stack := []string{n}
		visited[n] = true
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, u)
			for _, v := range sortedNeighbors(adj[u]) {
				if !visited[v] {
					visited[v] = true
					stack = append(stack, v)
				}
			}
		}
		if len(component) >= 2 {
			sort.Strings(component)
			groups = append(groups, component)
		}
	}
	return groups
}

// adjacency builds an undirected weighted graph, ignoring edges to unknown nodes.
func adjacency(nodes []string, edges []Edge) map[string]map[string]float64 {
	adj := make(map[string]map[string]float64, len(nodes))
	for _, n := range nodes {
		adj[n] = make(map[string]float64)
	}
	for _, e := range edges {
		if _, ok := adj[e.A]; !ok {
			continue
		}
		if _, ok := adj[e.B]; !ok || e.A == e.B {
			continue
		}
		adj[e.A][e.B] += e.Weight
		adj[e.B][e.A] += e.Weight
	}
	return adj
}

func sortedNeighbors(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
