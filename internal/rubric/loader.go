package rubric

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Size is the fixed number of criteria in a rubric
	Size = 5

	// MinScore and MaxScore bound every rating
	MinScore = 1
	MaxScore = 7
)

//go:embed default.yaml
var defaultYAML []byte

// Criterion is one rubric dimension
type Criterion struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Rubric is the ordered, fixed set of criteria every student is scored on
type Rubric struct {
	criteria []Criterion
}

// rubricFile is the YAML layout of a rubric definition
type rubricFile struct {
	Criteria []Criterion `yaml:"criteria"`
}

// Default returns the built-in rubric
func Default() *Rubric {
	r, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in rubric is invalid: %v", err))
	}
	return r
}

// LoadFromFile loads a rubric from a YAML file
func LoadFromFile(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, err
	}

	slog.Info("rubric loaded", "file", path, "criteria", len(r.criteria))
	return r, nil
}

// Load returns the rubric at path, or the built-in rubric when path is empty
func Load(path string) (*Rubric, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return LoadFromFile(path)
}

// Parse decodes and validates a YAML rubric definition
func Parse(data []byte) (*Rubric, error) {
	var file rubricFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(file.Criteria) != Size {
		return nil, fmt.Errorf("rubric must define exactly %d criteria, got %d", Size, len(file.Criteria))
	}

	seen := make(map[string]bool, Size)
	seenTitle := make(map[string]bool, Size)
	criteria := make([]Criterion, 0, Size)
	for i, c := range file.Criteria {
		c.ID = strings.TrimSpace(c.ID)
		c.Title = strings.TrimSpace(c.Title)
		c.Description = strings.TrimSpace(c.Description)

		if c.ID == "" {
			return nil, fmt.Errorf("criterion %d: id is required", i)
		}
		if c.Title == "" {
			return nil, fmt.Errorf("criterion %q: title is required", c.ID)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("criterion %q: duplicate id", c.ID)
		}
		if seenTitle[c.Title] {
			return nil, fmt.Errorf("criterion %q: duplicate title", c.ID)
		}
		seen[c.ID] = true
		seenTitle[c.Title] = true
		criteria = append(criteria, c)
	}

	return &Rubric{criteria: criteria}, nil
}

// Criteria returns a copy of the criteria in fixed order
func (r *Rubric) Criteria() []Criterion {
	out := make([]Criterion, len(r.criteria))
	copy(out, r.criteria)
	return out
}

// At returns the criterion at position i
func (r *Rubric) At(i int) (Criterion, bool) {
	if i < 0 || i >= len(r.criteria) {
		return Criterion{}, false
	}
	return r.criteria[i], true
}

// Titles returns criterion titles in fixed order
func (r *Rubric) Titles() []string {
	titles := make([]string, len(r.criteria))
	for i, c := range r.criteria {
		titles[i] = c.Title
	}
	return titles
}

// ValidScore reports whether score is on the rubric scale
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}
