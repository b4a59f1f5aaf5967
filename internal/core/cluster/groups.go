package cluster

import (
	"sort"
	"strings"

	"github.com/agenthands/contactsync/internal/core/model"
)

const (
	profilePrefix = "p:"
	contactPrefix = "c:"
)

// Group is a set of records tied together by more than one candidate.
type Group struct {
	Profiles   []string `json:"profiles"`
	Contacts   []string `json:"contacts"`
	Candidates []string `json:"candidates"`
	TopScore   float64  `json:"top_score"`
}

// Build groups candidates by the records they share. profileID and contactID
// return the identifier of each side; a record without one is only linked to
// its own candidate. Groups holding a single candidate are dropped.
func Build(cands []*model.Candidate, profileID, contactID func(*model.Candidate) string, d Detector) []Group {
	type ends struct{ a, b string }

	seen := make(map[string]bool)
	var nodes []string
	var edges []Edge
	endpoints := make(map[string]ends, len(cands))

	for _, c := range cands {
		a := nodeKey(profilePrefix, profileID(c), c.ID)
		b := nodeKey(contactPrefix, contactID(c), c.ID)
		for _, n := range []string{a, b} {
			if !seen[n] {
				seen[n] = true
				nodes = append(nodes, n)
			}
		}
		edges = append(edges, Edge{A: a, B: b, Weight: c.SimilarityScore})
		endpoints[c.ID] = ends{a, b}
	}

	var groups []Group
	for _, members := range d.Detect(nodes, edges) {
		in := make(map[string]bool, len(members))
		for _, n := range members {
			in[n] = true
		}

		var g Group
		for _, n := range members {
			switch {
			case strings.HasPrefix(n, profilePrefix):
				g.Profiles = append(g.Profiles, strings.TrimPrefix(n, profilePrefix))
			case strings.HasPrefix(n, contactPrefix):
				g.Contacts = append(g.Contacts, strings.TrimPrefix(n, contactPrefix))
			}
		}
		for _, c := range cands {
			e := endpoints[c.ID]
			if in[e.a] && in[e.b] {
				g.Candidates = append(g.Candidates, c.ID)
				if c.SimilarityScore > g.TopScore {
					g.TopScore = c.SimilarityScore
				}
			}
		}
		if len(g.Candidates) < 2 {
			continue
		}
		sort.Strings(g.Profiles)
		sort.Strings(g.Contacts)
		sort.Strings(g.Candidates)
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].TopScore != groups[j].TopScore {
			return groups[i].TopScore > groups[j].TopScore
		}
		return groups[i].Candidates[0] < groups[j].Candidates[0]
	})
	return groups
}

func nodeKey(prefix, id, candidateID string) string {
	if id == "" {
		return prefix + "candidate:" + candidateID
	}
	return prefix + id
}
