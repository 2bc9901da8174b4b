package snippets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/types"
)

var testNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func testSelector(topK int) *Selector {
	return New(Config{TopK: topK, Now: fixedNow}, nil, nil)
}

func testProfile() *types.JobProfile {
	return &types.JobProfile{
		RequiredSkills:  []string{"python", "sql"},
		PreferredSkills: []string{"kubernetes"},
		RawText:         []string{"etl"},
	}
}

func testNodes() []types.ExperienceNode {
	return []types.ExperienceNode{
		{
			ID: "work-1", Type: types.NodeWork, Title: "Data Engineer",
			Description:  "Built ETL pipelines in Python against a SQL warehouse.",
			Achievements: []string{"Cut pipeline runtime by 40%"},
			Skills:       []string{"Python", "SQL"},
			StartDate:    "2023-02", Current: true,
		},
		{
			ID: "proj-1", Type: types.NodeProject, Title: "Cluster Autoscaler",
			Description: "Side project tuning Kubernetes autoscaling.",
			Skills:      []string{"k8s", "Go"},
			StartDate:   "2024-01", EndDate: "2024-06",
		},
		{
			ID: "edu-1", Type: types.NodeEducation, Title: "BS Computer Science",
			Description: "Coursework in databases and SQL.",
			Skills:      []string{"SQL"},
			StartDate:   "2012-09", EndDate: "2016-05",
		},
	}
}

func TestSelectRanksRequiredMatchesFirst(t *testing.T) {
	s := testSelector(5)
	snippets, err := s.Select(testProfile(), types.ExperienceSnapshot{Nodes: testNodes()})
	require.NoError(t, err)
	require.NotEmpty(t, snippets)

	assert.Equal(t, "work-1", snippets[0].NodeID)
	assert.Equal(t, types.BucketRequiredSkills, snippets[0].Bucket)
}

func TestSelectDeduplicatesNodesAcrossBuckets(t *testing.T) {
	s := testSelector(5)
	snippets, err := s.Select(testProfile(), types.ExperienceSnapshot{Nodes: testNodes()})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, sn := range snippets {
		assert.False(t, seen[sn.NodeID], "node %s selected twice", sn.NodeID)
		seen[sn.NodeID] = true
	}
}

func TestSelectDeterministic(t *testing.T) {
	s := testSelector(5)
	snap := types.ExperienceSnapshot{Nodes: testNodes()}

	first, err := s.Select(testProfile(), snap)
	require.NoError(t, err)
	second, err := s.Select(testProfile(), snap)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSelectHonorsTopK(t *testing.T) {
	nodes := make([]types.ExperienceNode, 0, 8)
	for i := 0; i < 8; i++ {
		nodes = append(nodes, types.ExperienceNode{
			ID: string(rune('a' + i)), Type: types.NodeWork,
			Title: "Engineer", Description: "python services",
			Skills:    []string{"python"},
			StartDate: "2020-01", EndDate: "2021-01",
		})
	}

	s := testSelector(3)
	snippets, err := s.Select(&types.JobProfile{RequiredSkills: []string{"python"}}, types.ExperienceSnapshot{Nodes: nodes})
	require.NoError(t, err)
	assert.Len(t, snippets, 3)
}

func TestSelectTieBreaksBySnapshotOrder(t *testing.T) {
	nodes := []types.ExperienceNode{
		{ID: "first", Type: types.NodeWork, Title: "A", Skills: []string{"python"}, StartDate: "2020-01", EndDate: "2021-01"},
		{ID: "second", Type: types.NodeWork, Title: "B", Skills: []string{"python"}, StartDate: "2020-01", EndDate: "2021-01"},
	}

	s := testSelector(5)
	snippets, err := s.Select(&types.JobProfile{RequiredSkills: []string{"python"}}, types.ExperienceSnapshot{Nodes: nodes})
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.Equal(t, "first", snippets[0].NodeID)
}

func TestSelectWorkOutranksEducationOnSameSkill(t *testing.T) {
	nodes := []types.ExperienceNode{
		{ID: "edu", Type: types.NodeEducation, Title: "BS", Skills: []string{"sql"}, StartDate: "2020-01", EndDate: "2024-01"},
		{ID: "work", Type: types.NodeWork, Title: "Analyst", Skills: []string{"sql"}, StartDate: "2020-01", EndDate: "2024-01"},
	}

	s := testSelector(5)
	snippets, err := s.Select(&types.JobProfile{RequiredSkills: []string{"sql"}}, types.ExperienceSnapshot{Nodes: nodes})
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.Equal(t, "work", snippets[0].NodeID)
}

func TestSelectFallsBackWhenNothingMatches(t *testing.T) {
	s := testSelector(5)
	snippets, err := s.Select(&types.JobProfile{RequiredSkills: []string{"fortran"}}, types.ExperienceSnapshot{Nodes: testNodes()})
	require.NoError(t, err)

	require.NotEmpty(t, snippets)
	for _, sn := range snippets {
		assert.Equal(t, types.BucketRawText, sn.Bucket)
	}
}

func TestSelectRejectsEmptySnapshot(t *testing.T) {
	s := testSelector(5)
	_, err := s.Select(testProfile(), types.ExperienceSnapshot{})

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSnippetMetricsDetection(t *testing.T) {
	s := testSelector(5)
	snippets, err := s.Select(testProfile(), types.ExperienceSnapshot{Nodes: testNodes()})
	require.NoError(t, err)

	byID := map[string]types.ExperienceSnippet{}
	for _, sn := range snippets {
		byID[sn.NodeID] = sn
	}
	assert.True(t, byID["work-1"].HasMetrics, "40% runtime cut should register as a metric")
}

func TestRecencyScoreDecay(t *testing.T) {
	s := testSelector(5)

	current := &types.ExperienceNode{Current: true}
	assert.Equal(t, 1.0, s.recencyScore(current, testNow))

	old := &types.ExperienceNode{EndDate: "2010-01"}
	assert.Equal(t, 0.0, s.recencyScore(old, testNow))

	recent := &types.ExperienceNode{EndDate: "2025-06"}
	score := s.recencyScore(recent, testNow)
	assert.InDelta(t, 0.9, score, 0.02)

	undated := &types.ExperienceNode{}
	assert.Equal(t, 0.5, s.recencyScore(undated, testNow))
}
