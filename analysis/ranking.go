package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/giygas/repertory-api/repertory/entities"
)

// UnknownRemedy labels remedies that arrive without an abbreviation
const UnknownRemedy = "Unknown"

// unknownRemedyKey buckets those remedies apart from any real abbreviation
const unknownRemedyKey = "\x00unknown"

// RubricDetail records one contribution of a rubric to a remedy's score
type RubricDetail struct {
	RubricPath  string            `json:"rubricPath"`
	RubricID    entities.RubricID `json:"rubricId"`
	Weight      int               `json:"weight"`
	Importance  int               `json:"importance"`
	RubricIndex int               `json:"rubricIndex"`
}

// RemedyScore is a remedy's standing across the working set.
// Coverage is the rounded percentage of selected rubrics that list it.
type RemedyScore struct {
	Abbrev        string         `json:"abbrev"`
	Name          string         `json:"name"`
	TotalScore    int            `json:"totalScore"`
	Occurrences   int            `json:"occurrences"`
	Coverage      int            `json:"coverage"`
	MaxWeight     int            `json:"maxWeight"`
	RubricDetails []RubricDetail `json:"rubricDetails"`
}

type AnalysisWarning struct {
	Kind       string            `json:"kind"`
	RubricID   entities.RubricID `json:"rubricId"`
	RubricPath string            `json:"rubricPath"`
	Message    string            `json:"message"`
}

type Ranking struct {
	RubricCount int               `json:"rubricCount"`
	Remedies    []RemedyScore     `json:"remedies"`
	Warnings    []AnalysisWarning `json:"warnings"`
}

// Rank scores every remedy in selected and orders them by occurrences,
// then total score, then abbreviation.
func Rank(selected []SelectedRubric) Ranking {
	ranking := Ranking{
		RubricCount: len(selected),
		Remedies:    []RemedyScore{},
		Warnings:    []AnalysisWarning{},
	}
	if len(selected) == 0 {
		return ranking
	}

	scores := make(map[string]*RemedyScore)
	lastSeen := make(map[string]int)
	var order []string

	for i, sr := range selected {
		for _, wr := range sr.Rubric.WeightedRemedies {
			abbrev := strings.TrimSpace(wr.Remedy.NameAbbrev)
			key := abbrev
			if abbrev == "" {
				key, abbrev = unknownRemedyKey, UnknownRemedy
				ranking.Warnings = append(ranking.Warnings, AnalysisWarning{
					Kind:       "unknown_remedy",
					RubricID:   sr.Rubric.ID,
					RubricPath: sr.Rubric.FullPath,
					Message:    fmt.Sprintf("remedy without abbreviation in rubric %q", sr.Rubric.FullPath),
				})
			}

			score, ok := scores[key]
			if !ok {
				score = &RemedyScore{Abbrev: abbrev}
				scores[key] = score
				lastSeen[key] = -1
				order = append(order, key)
			}
			if score.Name == "" {
				score.Name = strings.TrimSpace(wr.Remedy.NameLong)
			}

			score.TotalScore += wr.Weight * sr.Importance
			if wr.Weight > score.MaxWeight {
				score.MaxWeight = wr.Weight
			}
			// a remedy listed twice in one rubric still occurs once
			if lastSeen[key] != i {
				score.Occurrences++
				lastSeen[key] = i
			}
			score.RubricDetails = append(score.RubricDetails, RubricDetail{
				RubricPath:  sr.Rubric.FullPath,
				RubricID:    sr.Rubric.ID,
				Weight:      wr.Weight,
				Importance:  sr.Importance,
				RubricIndex: i,
			})
		}
	}

	n := float64(len(selected))
	for _, key := range order {
		score := scores[key]
		if score.Name == "" {
			score.Name = score.Abbrev
		}
		score.Coverage = int(math.Round(100 * float64(score.Occurrences) / n))
		ranking.Remedies = append(ranking.Remedies, *score)
	}

	sort.SliceStable(ranking.Remedies, func(i, j int) bool {
		a, b := ranking.Remedies[i], ranking.Remedies[j]
		if a.Occurrences != b.Occurrences {
			return a.Occurrences > b.Occurrences
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.Abbrev < b.Abbrev
	})

	return ranking
}

// Top returns at most n remedies from the head of the ranking
func (r Ranking) Top(n int) []RemedyScore {
	if n <= 0 || n >= len(r.Remedies) {
		return r.Remedies
	}
	return r.Remedies[:n]
}
