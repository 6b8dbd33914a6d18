package streams

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTaskStatusSchemaValidate(t *testing.T) {
	reg := NewSchemaRegistry()
	if err := RegisterTaskSchemas(reg); err != nil {
		t.Fatalf("register task schemas: %v", err)
	}

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		payload TaskStatusV1
		wantErr bool
	}{
		{name: "pending", payload: TaskStatusV1{TaskID: "t1", State: "PENDING", OccurredAt: now}},
		{name: "progress", payload: TaskStatusV1{TaskID: "t1", State: "PROGRESS", Message: "Step 1: planning", OccurredAt: now}},
		{name: "success", payload: TaskStatusV1{TaskID: "t1", State: "SUCCESS", Path: "Generated-Books/Go.md", OccurredAt: now}},
		{name: "failure", payload: TaskStatusV1{TaskID: "t1", State: "FAILURE", Error: "no content", Kind: "NoContentGathered", OccurredAt: now}},
		{name: "failure without kind", payload: TaskStatusV1{TaskID: "t1", State: "FAILURE", Error: "boom", OccurredAt: now}, wantErr: true},
		{name: "success without path", payload: TaskStatusV1{TaskID: "t1", State: "SUCCESS", OccurredAt: now}, wantErr: true},
		{name: "unknown state", payload: TaskStatusV1{TaskID: "t1", State: "RETRY", OccurredAt: now}, wantErr: true},
		{name: "missing id", payload: TaskStatusV1{State: "PENDING", OccurredAt: now}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.payload)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			err = reg.Validate(EventTaskStatus, VersionV1, data)
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestRegistryRejectsUnknownVersion(t *testing.T) {
	reg := NewSchemaRegistry()
	if err := RegisterTaskSchemas(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Validate(EventTaskStatus, "v2", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for unregistered version")
	}
	if err := reg.Register("", VersionV1, []byte(`{}`)); err == nil {
		t.Fatalf("expected error for empty event type")
	}
}
