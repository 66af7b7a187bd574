// Package roster supplies display names for simulated participants,
// either from a built-in list or from a user-provided CSV/JSON file.
package roster

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// defaultNames is the built-in pool used when no roster file is given.
var defaultNames = []string{
	"TestBot", "QuizMaster", "BrainBot", "SmartAI", "QuickBot",
	"StudyBot", "LearnBot", "FastBot", "CleverBot", "WiseBot",
}

// Roster hands out display names in deterministic round-robin order.
// It is safe for concurrent access.
type Roster struct {
	names []string
	mu    sync.Mutex
	index int
}

// Default returns a roster backed by the built-in name list.
func Default() *Roster {
	return &Roster{names: defaultNames}
}

// FromFile loads a roster from path. typ selects the parser: "csv"
// expects a header row with a "username" column; "json" expects either
// an array of strings or an array of objects with a "username" field.
func FromFile(path, typ string) (*Roster, error) {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "csv":
		return fromCSV(path)
	case "json":
		return fromJSON(path)
	default:
		return nil, fmt.Errorf("roster: type must be 'csv' or 'json', got %q", typ)
	}
}

func fromCSV(path string) (*Roster, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("roster: open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("roster: read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("roster: CSV file must have a header row and at least one data row")
	}

	col := -1
	for i, field := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(field), "username") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("roster: CSV header has no username column")
	}

	names := make([]string, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if col >= len(row) {
			return nil, fmt.Errorf("roster: row %d has no username field", i+2)
		}
		name := strings.TrimSpace(row[col])
		if name == "" {
			return nil, fmt.Errorf("roster: row %d has an empty username", i+2)
		}
		names = append(names, name)
	}

	return &Roster{names: names}, nil
}

func fromJSON(path string) (*Roster, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("roster: open JSON file: %w", err)
	}
	defer file.Close()

	var raw []json.RawMessage
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return nil, fmt.Errorf("roster: decode JSON: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("roster: JSON file contains an empty array")
	}

	names := make([]string, 0, len(raw))
	for i, entry := range raw {
		var name string
		if err := json.Unmarshal(entry, &name); err == nil {
			names = append(names, name)
			continue
		}
		var obj struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(entry, &obj); err != nil || obj.Username == "" {
			return nil, fmt.Errorf("roster: entry %d is neither a string nor an object with username", i)
		}
		names = append(names, obj.Username)
	}

	return &Roster{names: names}, nil
}

// Next returns the next base name in round-robin order, wrapping around
// when the list is exhausted.
func (r *Roster) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := r.names[r.index%len(r.names)]
	r.index++
	return name
}

// Username builds a unique display name for bot number n (1-based).
func (r *Roster) Username(n int) string {
	return fmt.Sprintf("%s_%d", r.Next(), n)
}

// Len returns the number of base names in the roster.
func (r *Roster) Len() int {
	return len(r.names)
}
