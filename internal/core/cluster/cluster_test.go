package cluster

import (
	"testing"

	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangles(bridge float64) ([]string, []Edge) {
	nodes := []string{"1", "2", "3", "4", "5", "6"}
	edges := []Edge{
		{A: "1", B: "2", Weight: 1}, {A: "2", B: "3", Weight: 1}, {A: "3", B: "1", Weight: 1},
		{A: "4", B: "5", Weight: 1}, {A: "5", B: "6", Weight: 1}, {A: "6", B: "4", Weight: 1},
	}
	if bridge > 0 {
		edges = append(edges, Edge{A: "3", B: "4", Weight: bridge})
	}
	return nodes, edges
}

func TestComponents_Disconnected(t *testing.T) {
	nodes, edges := triangles(0)
	nodes = append(nodes, "7")

	groups := ComponentDetector{}.Detect(nodes, edges)
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}}, groups)
}

func TestComponents_BridgeMerges(t *testing.T) {
	nodes, edges := triangles(0.1)

	groups := ComponentDetector{}.Detect(nodes, edges)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 6)
}

func TestComponents_IgnoresUnknownNodes(t *testing.T) {
	groups := ComponentDetector{}.Detect([]string{"a"}, []Edge{{A: "a", B: "b", Weight: 1}})
	assert.Empty(t, groups)
}

func TestLPA_SplitsWeakBridge(t *testing.T) {
	nodes, edges := triangles(0.1)

	groups := NewLabelPropagationDetector().Detect(nodes, edges)
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}}, groups)
}

func TestLPA_Empty(t *testing.T) {
	assert.Nil(t, NewLabelPropagationDetector().Detect(nil, nil))
}

func TestNewDetector(t *testing.T) {
	assert.IsType(t, &LabelPropagationDetector{}, NewDetector("LPA"))
	assert.IsType(t, ComponentDetector{}, NewDetector("components"))
	assert.IsType(t, ComponentDetector{}, NewDetector(""))
}

func candidate(id, profile, contact string, score float64) *model.Candidate {
	return &model.Candidate{
		ID:              id,
		SourceRecordA:   model.Record{"id": profile},
		SourceRecordB:   model.Record{"contactid": contact},
		SimilarityScore: score,
	}
}

func profileID(c *model.Candidate) string { return c.SourceRecordA.String("id") }
func contactID(c *model.Candidate) string { return c.SourceRecordB.String("contactid") }

func TestBuild(t *testing.T) {
	cands := []*model.Candidate{
		candidate("c1", "P1", "C1", 0.9),
		candidate("c2", "P1", "C2", 0.7),
		candidate("c3", "P2", "C3", 0.95),
		candidate("c4", "", "C4", 0.8),
		candidate("c5", "P3", "C5", 0.6),
		candidate("c6", "P3", "C6", 0.5),
	}

	groups := Build(cands, profileID, contactID, ComponentDetector{})
	require.Len(t, groups, 2)

	assert.Equal(t, Group{
		Profiles:   []string{"P1"},
		Contacts:   []string{"C1", "C2"},
		Candidates: []string{"c1", "c2"},
		TopScore:   0.9,
	}, groups[0])
	assert.Equal(t, []string{"c5", "c6"}, groups[1].Candidates)
	assert.InDelta(t, 0.6, groups[1].TopScore, 1e-9)
}

func TestBuild_MissingIdentifiersStayApart(t *testing.T) {
	cands := []*model.Candidate{
		candidate("c1", "", "C1", 0.9),
		candidate("c2", "", "C2", 0.9),
	}
	assert.Empty(t, Build(cands, profileID, contactID, ComponentDetector{}))
}
