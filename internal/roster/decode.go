package roster

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/terra-clan/sponsor-eval/internal/models"
)

// ErrUnsupportedShape is returned when a roster document is neither a row
// array nor a values/data container
var ErrUnsupportedShape = errors.New("unsupported roster document shape")

// Column aliases, compared after canonicalKey. Earlier aliases win.
var (
	emailKeys   = []string{"sponsoremail", "email", "sponsor"}
	projectKeys = []string{"project", "projectname"}
	studentKeys = []string{"student", "studentname"}
)

// DecodeRows parses a roster document. Accepted shapes:
//
//	[{"sponsorEmail": ..., "project": ..., "student": ...}, ...]
//	{"values": [["sponsorEmail", "project", "student"], ["a@x.com", "P", "S"], ...]}
//	{"data": [{...}, ...]}
//
// Rows are returned as found; normalization happens in Build.
func DecodeRows(data []byte) ([]models.AssignmentRow, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty roster document: %w", ErrUnsupportedShape)
	}

	switch trimmed[0] {
	case '[':
		return decodeObjectRows(trimmed)
	case '{':
		var container map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &container); err != nil {
			return nil, fmt.Errorf("failed to parse roster JSON: %w", err)
		}
		if values, ok := lookupField(container, "values"); ok {
			return decodeValueRows(values)
		}
		if rows, ok := lookupField(container, "data"); ok {
			return decodeObjectRows(rows)
		}
		return nil, fmt.Errorf("object without values or data field: %w", ErrUnsupportedShape)
	default:
		return nil, ErrUnsupportedShape
	}
}

func decodeObjectRows(data []byte) ([]models.AssignmentRow, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse roster rows: %w", err)
	}

	rows := make([]models.AssignmentRow, 0, len(raw))
	for _, item := range raw {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil {
			// Non-object entries carry no fields and are dropped like empty rows
			continue
		}
		cells := make(map[string]string, len(obj))
		for k, v := range obj {
			cells[canonicalKey(k)] = cellString(v)
		}
		rows = append(rows, rowFromCells(cells))
	}
	return rows, nil
}

func decodeValueRows(data []byte) ([]models.AssignmentRow, error) {
	var table [][]json.RawMessage
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse roster values: %w", err)
	}
	if len(table) == 0 {
		return []models.AssignmentRow{}, nil
	}

	headers := make([]string, len(table[0]))
	for i, h := range table[0] {
		headers[i] = canonicalKey(cellString(h))
	}

	rows := make([]models.AssignmentRow, 0, len(table)-1)
	for _, line := range table[1:] {
		cells := make(map[string]string, len(headers))
		for i, h := range headers {
			if i >= len(line) || h == "" {
				continue
			}
			cells[h] = cellString(line[i])
		}
		rows = append(rows, rowFromCells(cells))
	}
	return rows, nil
}

func rowFromCells(cells map[string]string) models.AssignmentRow {
	return models.AssignmentRow{
		SponsorEmail: firstNonEmpty(cells, emailKeys),
		Project:      firstNonEmpty(cells, projectKeys),
		Student:      firstNonEmpty(cells, studentKeys),
	}
}

func firstNonEmpty(cells map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(cells[k]); v != "" {
			return v
		}
	}
	return ""
}

func lookupField(container map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	for k, v := range container {
		if canonicalKey(k) == name {
			return v, true
		}
	}
	return nil, false
}

// canonicalKey lowercases a column name and strips separators so that
// "Sponsor Email", "sponsor_email" and "sponsorEmail" compare equal
func canonicalKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(k)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// cellString renders a scalar JSON value as text. Null, objects and arrays
// render as the empty string.
func cellString(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
