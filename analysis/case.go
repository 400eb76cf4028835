// Package analysis holds a doctor's working set of rubrics and derives the
// ranked remedy differential from it.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/giygas/repertory-api/repertory/entities"
)

const (
	MinImportance     = 1
	MaxImportance     = 3
	DefaultImportance = MinImportance
)

var ErrInvalidImportance = errors.New("importance must be 1, 2 or 3")

// SelectedRubric is a rubric in the working set with the doctor's emphasis
type SelectedRubric struct {
	Rubric     entities.Rubric `json:"rubric"`
	Importance int             `json:"importance"`
}

// Case is an ordered working set of rubrics, unique by rubric id.
// It is not safe for concurrent use; data.CaseStore serializes access.
type Case struct {
	rubrics []SelectedRubric
}

func NewCase() *Case {
	return &Case{}
}

func (c *Case) indexOf(id entities.RubricID) int {
	for i, sr := range c.rubrics {
		if sr.Rubric.ID == id {
			return i
		}
	}
	return -1
}

// Add appends r with the default importance. Adding an id already present
// changes nothing and returns false.
func (c *Case) Add(r entities.Rubric) bool {
	if c.indexOf(r.ID) >= 0 {
		return false
	}
	c.rubrics = append(c.rubrics, SelectedRubric{Rubric: r, Importance: DefaultImportance})
	return true
}

func (c *Case) Remove(id entities.RubricID) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.rubrics = append(c.rubrics[:i], c.rubrics[i+1:]...)
	return true
}

// SetImportance updates the importance of id. Values outside 1..3 are
// rejected, not clamped.
func (c *Case) SetImportance(id entities.RubricID, importance int) (bool, error) {
	if importance < MinImportance || importance > MaxImportance {
		return false, fmt.Errorf("%w, got %d", ErrInvalidImportance, importance)
	}
	i := c.indexOf(id)
	if i < 0 {
		return false, nil
	}
	c.rubrics[i].Importance = importance
	return true, nil
}

func (c *Case) Clear() {
	c.rubrics = nil
}

func (c *Case) Len() int {
	return len(c.rubrics)
}

func (c *Case) Contains(id entities.RubricID) bool {
	return c.indexOf(id) >= 0
}

// Rubrics returns a copy of the working set in insertion order
func (c *Case) Rubrics() []SelectedRubric {
	out := make([]SelectedRubric, len(c.rubrics))
	copy(out, c.rubrics)
	return out
}

// Clone returns an independent copy of the working set
func (c *Case) Clone() *Case {
	return &Case{rubrics: c.Rubrics()}
}

// Ranking computes the differential for the current working set. It is never
// cached.
func (c *Case) Ranking() Ranking {
	return Rank(c.rubrics)
}

type caseJSON struct {
	Rubrics []SelectedRubric `json:"rubrics"`
}

func (c *Case) MarshalJSON() ([]byte, error) {
	rubrics := c.rubrics
	if rubrics == nil {
		rubrics = []SelectedRubric{}
	}
	return json.Marshal(caseJSON{Rubrics: rubrics})
}

// UnmarshalJSON loads a saved working set. A missing importance means the
// default; duplicate ids keep the first entry.
func (c *Case) UnmarshalJSON(data []byte) error {
	var raw caseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	loaded := NewCase()
	for _, sr := range raw.Rubrics {
		if !loaded.Add(sr.Rubric) {
			continue
		}
		if sr.Importance == 0 {
			continue
		}
		if _, err := loaded.SetImportance(sr.Rubric.ID, sr.Importance); err != nil {
			return fmt.Errorf("rubric %s: %w", sr.Rubric.ID, err)
		}
	}

	c.rubrics = loaded.rubrics
	return nil
}
