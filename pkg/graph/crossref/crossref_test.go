package crossref

import (
	"testing"

	"docgraph/pkg/common"
)

func TestFindCitations(t *testing.T) {
	text := `The interface follows ICD-4.2. See Flight Controller Manual for pinouts.
Calibration is covered in section 3.1 of the IMU Datasheet.`

	got := findCitations(text)
	want := map[string]bool{
		"ICD-4.2":                  false,
		"Flight Controller Manual": false,
		"IMU Datasheet":            false,
	}
	for _, c := range got {
		if _, ok := want[c]; ok {
			want[c] = true
		}
	}
	for citation, found := range want {
		if !found {
			t.Errorf("citation %q not found, got %v", citation, got)
		}
	}
}

func TestMatchesFileName(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		fileName  string
		want      bool
	}{
		{"exact after normalize", "Flight Controller Manual", "flight_controller_manual.pdf", true},
		{"containment", "Flight Controller Manual", "flight-controller-manual-v2.pdf", true},
		{"close misspelling", "Flight Contoller Manual", "flight_controller_manual.pdf", true},
		{"acronym expansion", "Inertial Measurement Unit Datasheet", "imu_datasheet.pdf", true},
		{"unrelated", "Battery Safety Notes", "flight_controller_manual.pdf", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesFileName(tt.candidate, tt.fileName); got != tt.want {
				t.Errorf("matchesFileName(%q, %q) = %v, want %v", tt.candidate, tt.fileName, got, tt.want)
			}
		})
	}
}

func TestDetectExplicitCitation(t *testing.T) {
	doc := DocumentRef{ID: "d1", FileName: "setup_guide.pdf"}
	corpus := []DocumentRef{
		{ID: "d2", FileName: "flight_controller_manual.pdf"},
		{ID: "d3", FileName: "battery_notes.pdf"},
	}

	rels := Detect(doc, "For wiring, see Flight Controller Manual.", corpus)
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	r := rels[0]
	if r.Type != common.DocRelExplicitCitation || r.TargetDocID != "d2" {
		t.Errorf("relationship = %+v", r)
	}
	if r.Strength != 1.0 {
		t.Errorf("strength = %v, want 1.0", r.Strength)
	}
	if len(r.Evidence) == 0 {
		t.Error("expected citation evidence")
	}
}

func TestDetectSharedEntities(t *testing.T) {
	doc := DocumentRef{
		ID:       "d1",
		FileName: "a.pdf",
		Entities: []string{"GPS Receiver", "Flight Controller", "Battery Pack", "Telemetry Radio"},
	}
	corpus := []DocumentRef{
		{ID: "d2", FileName: "b.pdf", Entities: []string{"gps receiver", "Flight Controller", "Battery Pack", "Gimbal"}},
		{ID: "d3", FileName: "c.pdf", Entities: []string{"Flight Controller"}},
	}

	rels := Detect(doc, "no citations here", corpus)
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	r := rels[0]
	if r.Type != common.DocRelSharedEntities || r.TargetDocID != "d2" {
		t.Errorf("relationship = %+v", r)
	}
	// three shared entities: 0.5 + (3-2)*0.1
	if r.Strength != 0.6 {
		t.Errorf("strength = %v, want 0.6", r.Strength)
	}
	if len(r.Evidence) != 3 {
		t.Errorf("evidence = %v", r.Evidence)
	}
}

func TestDetectCitationSuppressesSharedEntities(t *testing.T) {
	doc := DocumentRef{
		ID:       "d1",
		FileName: "setup_guide.pdf",
		Entities: []string{"GPS Receiver", "Flight Controller", "Battery Pack"},
	}
	corpus := []DocumentRef{
		{ID: "d2", FileName: "flight_controller_manual.pdf", Entities: []string{"GPS Receiver", "Flight Controller", "Battery Pack"}},
	}

	rels := Detect(doc, "See Flight Controller Manual for details.", corpus)
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	if rels[0].Type != common.DocRelExplicitCitation {
		t.Errorf("type = %q, want explicit citation", rels[0].Type)
	}
}

func TestSharedEntitiesMatchAcronymExpansions(t *testing.T) {
	doc := DocumentRef{
		ID:       "d1",
		FileName: "a.pdf",
		Entities: []string{"GPS", "Flight Controller", "Telemetry Radio"},
	}
	corpus := []DocumentRef{
		{ID: "d2", FileName: "b.pdf", Entities: []string{"Global Positioning System", "Flight Controller"}},
	}

	rels := Detect(doc, "no citations here", corpus)
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	r := rels[0]
	if r.Type != common.DocRelSharedEntities || r.Strength != 0.5 {
		t.Errorf("relationship = %+v", r)
	}
	var hasGPS bool
	for _, e := range r.Evidence {
		if e == "GPS" {
			hasGPS = true
		}
	}
	if !hasGPS {
		t.Errorf("evidence = %v, want the acronym counted as shared", r.Evidence)
	}
}

func TestSharedEntityStrengthIsCapped(t *testing.T) {
	names := []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9", "A10", "A11", "A12"}
	doc := DocumentRef{ID: "d1", FileName: "a.pdf", Entities: names}
	corpus := []DocumentRef{{ID: "d2", FileName: "b.pdf", Entities: names}}

	rels := Detect(doc, "", corpus)
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	if rels[0].Strength != 0.9 {
		t.Errorf("strength = %v, want cap 0.9", rels[0].Strength)
	}
	if len(rels[0].Evidence) != 10 {
		t.Errorf("evidence length = %d, want cap 10", len(rels[0].Evidence))
	}
}

func TestFuzzyMatchRatioBoundary(t *testing.T) {
	// three edits over length ten is a similarity of exactly 0.7
	if !fuzzyMatch("abcdefghij", "abcdefgxyz") {
		t.Error("similarity at the threshold should match")
	}
	if fuzzyMatch("abcdefghij", "abcdefwxyz") {
		t.Error("similarity below the threshold should not match")
	}
}

func TestLevenshteinRatio(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"manual", "manual", 1, 1},
		{"manual", "manuel", 0.8, 0.9},
		{"abc", "xyz", 0, 0.01},
		{"", "abc", 0, 0},
	}
	for _, tt := range tests {
		got := levenshteinRatio(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("levenshteinRatio(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}
