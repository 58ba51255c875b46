package model

import (
	"encoding/json"
	"testing"
)

func TestStructuredLogLineRoundTrip(t *testing.T) {
	original := []byte(`{
		"version": 1,
		"timestamp_ms": 1732900000000,
		"relative_time_ms": 12.5,
		"raw": "[1.2 sec (1732900000)] MATCH START Carentan WARFARE",
		"action": "MATCH START",
		"message": "Carentan WARFARE",
		"map_name": "carentan_warfare",
		"extra_upstream_field": 42
	}`)

	var line StructuredLogLine
	if err := json.Unmarshal(original, &line); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if line.Action != LogMatchStart {
		t.Fatalf("Action = %q, want %q", line.Action, LogMatchStart)
	}
	if line.Message != "Carentan WARFARE" {
		t.Fatalf("Message = %q", line.Message)
	}
	if _, ok := line.Extra["map_name"]; !ok {
		t.Fatalf("Extra missing unrecognized field map_name: %+v", line.Extra)
	}

	out, err := json.Marshal(line)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var roundTripped map[string]any
	if err := json.Unmarshal(out, &roundTripped); err != nil {
		t.Fatalf("Unmarshal(round-tripped) error = %v", err)
	}
	if roundTripped["extra_upstream_field"] != float64(42) {
		t.Fatalf("round-tripped JSON lost extra_upstream_field: %v", roundTripped)
	}
	if roundTripped["action"] != "MATCH START" {
		t.Fatalf("round-tripped JSON lost action: %v", roundTripped)
	}
}

func TestLogStreamInitOmitsActionsWhenUnset(t *testing.T) {
	id := "1732900000000-7"
	init := LogStreamInit{LastSeenID: &id}

	data, err := json.Marshal(init)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := decoded["actions"]; ok {
		t.Fatalf("actions should be omitted when nil, got %v", decoded)
	}
	if decoded["last_seen_id"] != id {
		t.Fatalf("last_seen_id = %v, want %v", decoded["last_seen_id"], id)
	}
}

func TestLogStreamInitIncludesNullLastSeenID(t *testing.T) {
	// Open question from DESIGN.md: last_seen_id is sent even when nil.
	init := LogStreamInit{Actions: []LogMessageType{LogMatchStart, LogMatchEnded}}

	data, err := json.Marshal(init)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	raw, ok := decoded["last_seen_id"]
	if !ok {
		t.Fatalf("last_seen_id key must be present even when nil")
	}
	if raw != nil {
		t.Fatalf("last_seen_id = %v, want nil", raw)
	}

	actions, ok := decoded["actions"].([]any)
	if !ok || len(actions) != 2 {
		t.Fatalf("actions round-trip failed: %v", decoded["actions"])
	}
}
