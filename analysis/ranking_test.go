package analysis

import (
	"fmt"
	"testing"

	"github.com/giygas/repertory-api/repertory/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankScenario(t *testing.T) {
	c := NewCase()
	c.Add(rubric("r1", "Head, pain", wr("Bell.", 4), wr("Ars.", 2)))
	c.Add(rubric("r2", "Stomach, vomiting", wr("Bell.", 3), wr("Nux-v.", 5)))
	_, err := c.SetImportance("r2", 2)
	require.NoError(t, err)

	ranking := c.Ranking()
	require.Len(t, ranking.Remedies, 3)
	assert.Equal(t, 2, ranking.RubricCount)

	want := []struct {
		abbrev      string
		occurrences int
		score       int
		coverage    int
		maxWeight   int
	}{
		{"Bell.", 2, 10, 100, 4},
		{"Nux-v.", 1, 10, 50, 5},
		{"Ars.", 1, 2, 50, 2},
	}
	for i, w := range want {
		got := ranking.Remedies[i]
		assert.Equal(t, w.abbrev, got.Abbrev, "position %d", i)
		assert.Equal(t, w.occurrences, got.Occurrences, w.abbrev)
		assert.Equal(t, w.score, got.TotalScore, w.abbrev)
		assert.Equal(t, w.coverage, got.Coverage, w.abbrev)
		assert.Equal(t, w.maxWeight, got.MaxWeight, w.abbrev)
	}

	bell := ranking.Remedies[0]
	require.Len(t, bell.RubricDetails, 2)
	assert.Equal(t, RubricDetail{RubricPath: "Head, pain", RubricID: "r1", Weight: 4, Importance: 1, RubricIndex: 0}, bell.RubricDetails[0])
	assert.Equal(t, RubricDetail{RubricPath: "Stomach, vomiting", RubricID: "r2", Weight: 3, Importance: 2, RubricIndex: 1}, bell.RubricDetails[1])
	assert.Empty(t, ranking.Warnings)
}

func TestRankEmpty(t *testing.T) {
	ranking := Rank(nil)

	assert.NotNil(t, ranking.Remedies)
	assert.Empty(t, ranking.Remedies)
	assert.Empty(t, ranking.Warnings)
	assert.Equal(t, 0, ranking.RubricCount)
}

func TestRankRubricWithoutRemedies(t *testing.T) {
	c := NewCase()
	c.Add(rubric("1", "Generalities, empty"))
	c.Add(rubric("2", "Head", wr("Bell.", 2)))

	ranking := c.Ranking()
	require.Len(t, ranking.Remedies, 1)
	assert.Equal(t, 50, ranking.Remedies[0].Coverage)
}

func TestRankOccurrencesFirst(t *testing.T) {
	// a heavy single hit must not outrank a remedy present in every rubric
	c := NewCase()
	c.Add(rubric("1", "a", wr("Sulph.", 1), wr("Lach.", 5)))
	c.Add(rubric("2", "b", wr("Sulph.", 1)))
	_, _ = c.SetImportance("1", 3)

	ranking := c.Ranking()
	assert.Equal(t, "Sulph.", ranking.Remedies[0].Abbrev)
	assert.Equal(t, "Lach.", ranking.Remedies[1].Abbrev)
	assert.Greater(t, ranking.Remedies[1].TotalScore, ranking.Remedies[0].TotalScore)
}

func TestRankTieBreaksByAbbrev(t *testing.T) {
	c := NewCase()
	c.Add(rubric("1", "a", wr("Puls.", 2), wr("Calc.", 2), wr("Lyc.", 2)))

	ranking := c.Ranking()
	var got []string
	for _, rs := range ranking.Remedies {
		got = append(got, rs.Abbrev)
	}
	assert.Equal(t, []string{"Calc.", "Lyc.", "Puls."}, got)
}

func TestRankDuplicateRemedyInRubric(t *testing.T) {
	c := NewCase()
	c.Add(rubric("1", "a", wr("Bell.", 2), wr("Bell.", 3)))
	c.Add(rubric("2", "b", wr("Acon.", 1)))

	bell := c.Ranking().Remedies[0]
	assert.Equal(t, "Bell.", bell.Abbrev)
	assert.Equal(t, 1, bell.Occurrences, "occurrences count distinct rubrics")
	assert.Equal(t, 5, bell.TotalScore)
	assert.Equal(t, 50, bell.Coverage)
	assert.Len(t, bell.RubricDetails, 2)
}

func TestRankCoverageRounding(t *testing.T) {
	tests := []struct {
		rubrics  int
		hits     int
		coverage int
	}{
		{3, 1, 33},
		{3, 2, 67},
		{8, 1, 13},
		{7, 7, 100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.hits, tt.rubrics), func(t *testing.T) {
			c := NewCase()
			for i := 0; i < tt.rubrics; i++ {
				r := rubric(fmt.Sprint(i), fmt.Sprintf("rubric %d", i), wr("Other.", 1))
				if i < tt.hits {
					r.WeightedRemedies = append(r.WeightedRemedies, wr("Hit.", 1))
				}
				c.Add(r)
			}

			for _, rs := range c.Ranking().Remedies {
				if rs.Abbrev == "Hit." {
					assert.Equal(t, tt.coverage, rs.Coverage)
					assert.LessOrEqual(t, rs.Occurrences, tt.rubrics)
					return
				}
			}
			t.Fatal("Hit. not ranked")
		})
	}
}

func TestRankUnknownRemedy(t *testing.T) {
	c := NewCase()
	c.Add(rubric("1", "Head", entities.WeightedRemedy{Remedy: entities.Remedy{NameAbbrev: "  "}, Weight: 2}))
	c.Add(rubric("2", "Chest", wr("Phos.", 3)))

	ranking := c.Ranking()
	require.Len(t, ranking.Remedies, 2)

	var unknown *RemedyScore
	for i := range ranking.Remedies {
		if ranking.Remedies[i].Abbrev == UnknownRemedy {
			unknown = &ranking.Remedies[i]
		}
	}
	require.NotNil(t, unknown, "blank remedy is still counted")
	assert.Equal(t, UnknownRemedy, unknown.Name)
	assert.Equal(t, 2, unknown.TotalScore)

	require.Len(t, ranking.Warnings, 1)
	assert.Equal(t, "unknown_remedy", ranking.Warnings[0].Kind)
	assert.Equal(t, entities.RubricID("1"), ranking.Warnings[0].RubricID)
}

func TestRankUnknownRemedyKeptApartFromLiteralAbbrev(t *testing.T) {
	c := NewCase()
	c.Add(rubric("1", "Head", entities.WeightedRemedy{Remedy: entities.Remedy{NameAbbrev: ""}, Weight: 2}))
	c.Add(rubric("2", "Chest", entities.WeightedRemedy{
		Remedy: entities.Remedy{NameAbbrev: UnknownRemedy, NameLong: "A remedy abbreviated Unknown"},
		Weight: 3,
	}))

	ranking := c.Ranking()
	require.Len(t, ranking.Remedies, 2, "a real Unknown remedy must not merge with blank ones")

	for _, rs := range ranking.Remedies {
		assert.Equal(t, UnknownRemedy, rs.Abbrev)
		assert.Equal(t, 1, rs.Occurrences)
		assert.Equal(t, 50, rs.Coverage)
	}
	assert.Equal(t, 3, ranking.Remedies[0].TotalScore)
	assert.Equal(t, "A remedy abbreviated Unknown", ranking.Remedies[0].Name)
	assert.Equal(t, 2, ranking.Remedies[1].TotalScore)
	assert.Len(t, ranking.Warnings, 1)
}

func TestRankBlankLongNameFallsBackToAbbrev(t *testing.T) {
	c := NewCase()
	c.Add(rubric("1", "Head", entities.WeightedRemedy{Remedy: entities.Remedy{NameAbbrev: "Bry."}, Weight: 2}))

	assert.Equal(t, "Bry.", c.Ranking().Remedies[0].Name)
}

func TestRankingIsRecomputed(t *testing.T) {
	c := NewCase()
	c.Add(rubric("1", "a", wr("Bell.", 2)))
	first := c.Ranking()

	_, err := c.SetImportance("1", 3)
	require.NoError(t, err)

	assert.Equal(t, 2, first.Remedies[0].TotalScore)
	assert.Equal(t, 6, c.Ranking().Remedies[0].TotalScore)
}

func TestRankingTop(t *testing.T) {
	r := Ranking{Remedies: make([]RemedyScore, 25)}

	assert.Len(t, r.Top(20), 20)
	assert.Len(t, r.Top(0), 25)
	assert.Len(t, r.Top(30), 25)
}
