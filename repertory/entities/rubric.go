// Package entities holds the repertory data exchanged with the upstream service
package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RubricID identifies a rubric within one repertory and language. Upstream
// sends it as a JSON number; strings are accepted too.
type RubricID string

func (id *RubricID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("rubric id: %w", err)
		}
		*id = RubricID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rubric id: %w", err)
	}
	*id = RubricID(n.String())
	return nil
}

// Remedy is a homeopathic substance, identified by its abbreviation
type Remedy struct {
	NameAbbrev string `json:"nameAbbrev"`
	NameLong   string `json:"nameLong"`
}

// WeightedRemedy is a remedy with its grade in a rubric, 1 (weak) to 5 (strong)
type WeightedRemedy struct {
	Remedy Remedy `json:"remedy"`
	Weight int    `json:"weight"`
}

// Rubric is one indexed symptom entry of a repertory
type Rubric struct {
	ID               RubricID         `json:"id"`
	Repertory        string           `json:"repertory,omitempty"`
	FullPath         string           `json:"fullPath"`
	WeightedRemedies []WeightedRemedy `json:"weightedRemedies"`
}

// SearchQuery is a repertory lookup. Symptom is passed through verbatim so
// the upstream wildcard (*), "exact phrase" and -exclusion syntax keep working.
type SearchQuery struct {
	Symptom         string
	Repertory       string
	Page            int
	MinWeight       int
	RemedyFilter    string
	IncludeRemedies bool
}

// Params returns the upstream query parameters for q
func (q SearchQuery) Params() map[string]string {
	getRemedies := "0"
	if q.IncludeRemedies {
		getRemedies = "1"
	}
	minWeight := q.MinWeight
	if minWeight < 1 {
		minWeight = 1
	}

	return map[string]string{
		"symptom":      q.Symptom,
		"repertory":    q.Repertory,
		"page":         strconv.Itoa(q.Page),
		"remedyString": q.RemedyFilter,
		"minWeight":    strconv.Itoa(minWeight),
		"getRemedies":  getRemedies,
	}
}

// SearchResult is one page of rubrics returned by the upstream service
type SearchResult struct {
	Results      []Rubric `json:"results"`
	TotalResults int      `json:"totalResults"`
	HasMore      bool     `json:"hasMore"`
	Page         int      `json:"page"`
}

// UnmarshalJSON accepts both "results" and "rubrics" as the list key
func (r *SearchResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Results      []Rubric `json:"results"`
		Rubrics      []Rubric `json:"rubrics"`
		TotalResults int      `json:"totalResults"`
		HasMore      bool     `json:"hasMore"`
		Page         int      `json:"page"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Results = raw.Results
	if len(r.Results) == 0 {
		r.Results = raw.Rubrics
	}
	if r.Results == nil {
		r.Results = []Rubric{}
	}
	r.TotalResults = raw.TotalResults
	if r.TotalResults < len(r.Results) {
		r.TotalResults = len(r.Results)
	}
	r.HasMore = raw.HasMore
	r.Page = raw.Page
	return nil
}
