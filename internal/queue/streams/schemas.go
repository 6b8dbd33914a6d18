package streams

import (
	"fmt"
	"time"
)

const (
	EventTaskStatus = "task.status"
	VersionV1       = "v1"
)

// TaskStatusV1 is the payload of a task.status v1 event.
type TaskStatusV1 struct {
	TaskID     string    `json:"task_id"`
	State      string    `json:"state"`
	Message    string    `json:"message,omitempty"`
	Path       string    `json:"path,omitempty"`
	Error      string    `json:"error,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Definition describes a schema entry managed by the registry.
type Definition struct {
	EventType string
	Version   string
	Schema    []byte
}

var taskDefinitions = []Definition{
	{
		EventType: EventTaskStatus,
		Version:   VersionV1,
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["task_id", "state", "occurred_at"],
  "properties": {
    "task_id": {"type": "string", "minLength": 1},
    "state": {"type": "string", "enum": ["PENDING", "PROGRESS", "SUCCESS", "FAILURE"]},
    "message": {"type": "string"},
    "path": {"type": "string"},
    "error": {"type": "string"},
    "kind": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "allOf": [
    {
      "if": {"properties": {"state": {"const": "FAILURE"}}},
      "then": {"required": ["error", "kind"]}
    },
    {
      "if": {"properties": {"state": {"const": "SUCCESS"}}},
      "then": {"required": ["path"]}
    }
  ],
  "additionalProperties": false
}`),
	},
}

// RegisterTaskSchemas registers every task event schema.
func RegisterTaskSchemas(reg *SchemaRegistry) error {
	if reg == nil {
		return fmt.Errorf("registry is nil")
	}
	for _, def := range taskDefinitions {
		if err := reg.Register(def.EventType, def.Version, def.Schema); err != nil {
			return fmt.Errorf("register %s %s: %w", def.EventType, def.Version, err)
		}
	}
	return nil
}
