package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

//go:embed activities.json
var defaultRegistry []byte

// Default returns the registry shipped with the binary.
func Default() (*ActivityRegistry, error) {
	return Parse(defaultRegistry)
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse activity registry: %w", err)
	}
	return &reg, nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Validate checks that IDs and task types are unique and that every activity declares an input
// schema and a parseable timeout.
func (r *ActivityRegistry) Validate() error {
	ids := make(map[string]bool, len(r.Activities))
	taskTypes := make(map[string]bool, len(r.Activities))

	for _, a := range r.Activities {
		if a.ID == "" || a.TaskType == "" {
			return fmt.Errorf("activity %q: id and taskType are required", a.DisplayName)
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate activity id %s", a.ID)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("duplicate task type %s", a.TaskType)
		}
		ids[a.ID] = true
		taskTypes[a.TaskType] = true

		if len(a.InputSchema) == 0 {
			return fmt.Errorf("activity %s: inputSchema is empty", a.ID)
		}
		if _, err := a.TimeoutDuration(); err != nil {
			return fmt.Errorf("activity %s: %w", a.ID, err)
		}
	}
	return nil
}

func (a *Activity) TimeoutDuration() (time.Duration, error) {
	if a.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", a.Timeout, err)
	}
	return d, nil
}
