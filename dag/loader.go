package dag

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/taskgraph/validation"
)

// TaskFile is the on-disk description of a run.
type TaskFile struct {
	RunID string       `yaml:"run_id,omitempty"`
	Tasks []TaskRecord `yaml:"tasks"`
}

// rawTask mirrors TaskRecord with a loosely typed blocker list, so that
// entries of the wrong type can be dropped instead of failing the decode.
type rawTask struct {
	ID        string         `yaml:"id"`
	Key       string         `yaml:"key"`
	BlockedBy []any          `yaml:"blocked_by"`
	Command   string         `yaml:"command"`
	Metadata  map[string]any `yaml:"metadata"`
}

type rawTaskFile struct {
	RunID string    `yaml:"run_id"`
	Tasks []rawTask `yaml:"tasks"`
}

// LoadTaskFile reads and parses a YAML task file.
func LoadTaskFile(path string) (*TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dag: reading %s: %w", path, err)
	}
	tf, err := ParseTaskFile(data)
	if err != nil {
		return nil, fmt.Errorf("dag: parsing %s: %w", path, err)
	}
	return tf, nil
}

// ParseTaskFile decodes YAML task definitions. Every task needs an id and
// ids must be unique; blocker references are left for Build to check.
func ParseTaskFile(data []byte) (*TaskFile, error) {
	var raw rawTaskFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	v := validation.New()
	v.Custom(len(raw.Tasks) > 0, "tasks", "must contain at least one task")

	tf := &TaskFile{RunID: raw.RunID, Tasks: make([]TaskRecord, 0, len(raw.Tasks))}
	for i, rt := range raw.Tasks {
		field := fmt.Sprintf("tasks[%d].id", i)
		v.Required(field, rt.ID).Unique("id", field, rt.ID)

		blockers := rt.BlockedBy
		if blockers == nil && rt.Metadata != nil {
			blockers, _ = rt.Metadata["blocked_by"].([]any)
		}
		tf.Tasks = append(tf.Tasks, TaskRecord{
			ID:               rt.ID,
			HumanKey:         rt.Key,
			DeclaredBlockers: NormalizeBlockers(blockers),
			Command:          rt.Command,
			Metadata:         rt.Metadata,
		})
	}

	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}
	return tf, nil
}
