package models

import "testing"

func TestFormatAndParsePlaceholder(t *testing.T) {
	ph := FormatPlaceholder(GapTypeEntityName, "S___ LLC")
	if !IsPlaceholder(ph) {
		t.Fatalf("expected %q to be recognized as a placeholder", ph)
	}
	gapType, hint, ok := ParsePlaceholder(ph)
	if !ok {
		t.Fatalf("ParsePlaceholder(%q) ok = false", ph)
	}
	if gapType != GapTypeEntityName {
		t.Errorf("gapType = %q, want %q", gapType, GapTypeEntityName)
	}
	if hint != "S___ LLC" {
		t.Errorf("hint = %q, want %q", hint, "S___ LLC")
	}
}

func TestIsPlaceholder_PlainValue(t *testing.T) {
	if IsPlaceholder("Alice Smith") {
		t.Error("plain value should not be recognized as a placeholder")
	}
}

func TestExtractedData_Validate(t *testing.T) {
	valid := &ExtractedData{
		Parties: []ExtractedParty{{Name: FormatPlaceholder(GapTypeEntityName, "S___ LLC")}},
		Unknowns: []ExtractedUnknown{
			{Type: GapTypeEntityName, FieldPath: "parties[0].name", PartialValue: "S___ LLC"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid data to pass, got %v", err)
	}

	invalid := &ExtractedData{
		Parties: []ExtractedParty{{Name: FormatPlaceholder(GapTypeEntityName, "S___ LLC")}},
	}
	if err := invalid.Validate(); err == nil {
		t.Error("expected missing unknowns entry to fail validation")
	}
}
