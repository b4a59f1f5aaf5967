package cluster

import "sort"

// LabelPropagationDetector splits loosely bridged groups that connected
// components would merge. Edge weights are summed per neighbouring label.
type LabelPropagationDetector struct {
	MaxIterations int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{MaxIterations: 20}
}

func (d *LabelPropagationDetector) Detect(nodes []string, edges []Edge) [][]string {
	if len(nodes) == 0 {
		return nil
	}
	adj := adjacency(nodes, edges)

	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n] = n
	}

	order := append([]string(nil), nodes...)
	sort.Strings(order)

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, u := range order {
			if len(adj[u]) == 0 {
				continue
			}

			weights := make(map[string]float64)
			best := 0.0
			for v, w := range adj[u] {
				l := labels[v]
				weights[l] += w
				if weights[l] > best {
					best = weights[l]
				}
			}

			// Keep the current label on a tie, otherwise take the largest.
			if weights[labels[u]] == best {
				continue
			}
			var tied []string
			for l, w := range weights {
				if w == best {
					tied = append(tied, l)
				}
			}
			sort.Strings(tied)
			labels[u] = tied[len(tied)-1]
			changed++
		}
		if changed == 0 {
			break
		}
	}

	byLabel := make(map[string][]string)
	for _, n := range order {
		byLabel[labels[n]] = append(byLabel[labels[n]], n)
	}
	keys := make([]string, 0, len(byLabel))
	for k := range byLabel {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var groups [][]string
	for _, k := range keys {
		if len(byLabel[k]) >= 2 {
			groups = append(groups, byLabel[k])
		}
	}
	return groups
}
