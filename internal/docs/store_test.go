package docs

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEntryJSONCarriesError(t *testing.T) {
	raw, err := logEntryJSON(LogEntry{
		Stage:   StageGraphExtracting,
		Message: "stage skipped",
		Error:   "graph store unavailable",
	})
	if err != nil {
		t.Fatalf("logEntryJSON: %v", err)
	}

	var entries []LogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Stage != StageGraphExtracting || e.Error != "graph store unavailable" {
		t.Errorf("entry = %+v", e)
	}
	if e.Time.IsZero() {
		t.Error("timestamp was not filled in")
	}
}

func TestLogEntryJSONOmitsEmptyError(t *testing.T) {
	raw, err := logEntryJSON(LogEntry{Stage: StageParsing, Message: "parsing document"})
	if err != nil {
		t.Fatalf("logEntryJSON: %v", err)
	}
	if strings.Contains(string(raw), `"error"`) {
		t.Errorf("payload = %s, expected error field omitted", raw)
	}
}
