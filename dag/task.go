package dag

import (
	"fmt"
)

// TaskRecord is one unit of work as supplied by the caller.
type TaskRecord struct {
	ID               string         `yaml:"id" json:"id"`
	HumanKey         string         `yaml:"key,omitempty" json:"key,omitempty"`
	DeclaredBlockers []string       `yaml:"blocked_by,omitempty" json:"blocked_by,omitempty"`
	Command          string         `yaml:"command,omitempty" json:"command,omitempty"`
	Metadata         map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Key returns the human-readable key, falling back to the id.
func (r TaskRecord) Key() string {
	if r.HumanKey != "" {
		return r.HumanKey
	}
	return r.ID
}

// NormalizeBlockers converts a loosely typed blocker list into ids.
// Non-string entries are dropped and duplicates collapse onto their first
// occurrence. An empty string is kept so Build reports it as an unknown
// blocker.
func NormalizeBlockers(raw []any) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		id, ok := entry.(string)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// RecordFromMap builds a TaskRecord from a decoded JSON or YAML object.
// Blockers are read from "blocked_by", or from "metadata.blocked_by" when
// the top-level key is absent.
func RecordFromMap(m map[string]any) (TaskRecord, error) {
	id, ok := m["id"].(string)
	if !ok || id == "" {
		return TaskRecord{}, fmt.Errorf("dag: task record has no string id")
	}
	rec := TaskRecord{ID: id}
	if key, ok := m["key"].(string); ok {
		rec.HumanKey = key
	}
	if cmd, ok := m["command"].(string); ok {
		rec.Command = cmd
	}
	meta, _ := m["metadata"].(map[string]any)
	rec.Metadata = meta

	raw, present := m["blocked_by"]
	if !present && meta != nil {
		raw = meta["blocked_by"]
	}
	if list, ok := raw.([]any); ok {
		rec.DeclaredBlockers = NormalizeBlockers(list)
	}
	return rec, nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]any, len(ids))
	for i, id := range ids {
		raw[i] = id
	}
	return NormalizeBlockers(raw)
}
