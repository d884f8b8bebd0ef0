// Package progress serializes a session's identity, completion set and staged
// ratings into the single durable record kept under one storage key.
package progress

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/terra-clan/sponsor-eval/internal/draft"
	"github.com/terra-clan/sponsor-eval/internal/rubric"
)

// commentKey holds the project comment inside a stagedRatings entry
const commentKey = "_comment"

// Record is the durable state of one browser context
type Record struct {
	Name      string
	Email     string
	Completed []string
	Drafts    map[string]draft.ProjectState
}

// wireRecord is the stored JSON shape:
//
//	{"name","email","completedProjects":{"P":true},
//	 "stagedRatings":{"P":{"<student>":{"<criterion>":5},"_comment":""}}}
type wireRecord struct {
	Name              string                                `json:"name"`
	Email             string                                `json:"email"`
	CompletedProjects map[string]bool                       `json:"completedProjects"`
	StagedRatings     map[string]map[string]json.RawMessage `json:"stagedRatings"`
}

// Marshal encodes the record. Stable scores are keyed by student and
// criterion id; legacy positional scores are written back with decimal keys.
func Marshal(r Record) ([]byte, error) {
	w := wireRecord{
		Name:              r.Name,
		Email:             r.Email,
		CompletedProjects: make(map[string]bool, len(r.Completed)),
		StagedRatings:     make(map[string]map[string]json.RawMessage, len(r.Drafts)),
	}

	for _, p := range r.Completed {
		w.CompletedProjects[p] = true
	}

	for project, state := range r.Drafts {
		entry := make(map[string]json.RawMessage, len(state.Scores)+len(state.Legacy)+1)

		for sid, crit := range state.Scores {
			raw, err := json.Marshal(crit)
			if err != nil {
				return nil, fmt.Errorf("failed to encode scores for %s: %w", project, err)
			}
			entry[sid] = raw
		}

		for si, crit := range state.Legacy {
			m := make(map[string]int, len(crit))
			for ci, v := range crit {
				m[strconv.Itoa(ci)] = v
			}
			raw, err := json.Marshal(m)
			if err != nil {
				return nil, fmt.Errorf("failed to encode legacy scores for %s: %w", project, err)
			}
			entry[strconv.Itoa(si)] = raw
		}

		comment, err := json.Marshal(state.Comment)
		if err != nil {
			return nil, fmt.Errorf("failed to encode comment for %s: %w", project, err)
		}
		entry[commentKey] = comment

		w.StagedRatings[project] = entry
	}

	return json.Marshal(w)
}

// Unmarshal decodes a stored record. Entries with decimal student keys are
// read as legacy positional scores. Out-of-range or non-integer scores are
// dropped; a document that is not a record at all is an error.
func Unmarshal(data []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, fmt.Errorf("failed to parse progress record: %w", err)
	}

	r := Record{
		Name:   w.Name,
		Email:  w.Email,
		Drafts: make(map[string]draft.ProjectState, len(w.StagedRatings)),
	}

	for p, done := range w.CompletedProjects {
		if done && p != "" {
			r.Completed = append(r.Completed, p)
		}
	}
	sort.Strings(r.Completed)

	for project, entry := range w.StagedRatings {
		if project == "" {
			continue
		}
		state := draft.ProjectState{}

		for key, raw := range entry {
			if key == commentKey {
				var comment string
				if err := json.Unmarshal(raw, &comment); err == nil {
					state.Comment = comment
				}
				continue
			}

			var crit map[string]json.RawMessage
			if err := json.Unmarshal(raw, &crit); err != nil {
				continue
			}

			if si, err := strconv.Atoi(key); err == nil && si >= 0 {
				for ck, cv := range crit {
					ci, err := strconv.Atoi(ck)
					if err != nil || ci < 0 {
						continue
					}
					if v, ok := scoreValue(cv); ok {
						if state.Legacy == nil {
							state.Legacy = make(map[int]map[int]int)
						}
						if state.Legacy[si] == nil {
							state.Legacy[si] = make(map[int]int)
						}
						state.Legacy[si][ci] = v
					}
				}
				continue
			}

			for cid, cv := range crit {
				if cid == "" {
					continue
				}
				if v, ok := scoreValue(cv); ok {
					if state.Scores == nil {
						state.Scores = make(map[string]map[string]int)
					}
					if state.Scores[key] == nil {
						state.Scores[key] = make(map[string]int)
					}
					state.Scores[key][cid] = v
				}
			}
		}

		if len(state.Scores) > 0 || len(state.Legacy) > 0 || state.Comment != "" {
			r.Drafts[project] = state
		}
	}

	return r, nil
}

// scoreValue reads an integer score in range; null and anything else is ignored
func scoreValue(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	v := int(f)
	if float64(v) != f || !rubric.ValidScore(v) {
		return 0, false
	}
	return v, true
}
