// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package validation

import "testing"

func TestIsCNJCaseNumber(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"0001234-56.2026.8.26.0100", true},
		{"1234567-89.2020.1.00.0001", true},
		{"00012345620268260100", true}, // bare 20-digit form
		{"", false},
		{"0001234-56.2026.8.26.010", false},   // short segment
		{"0001234-56.2026.8.26.01000", false}, // long segment
		{"0001234-56.2026.88.26.0100", false}, // two-digit segment where one expected
		{"000123456202682601001", false},      // 21 bare digits
		{"0001234.56.2026.8.26.0100", false},  // wrong punctuation
		{"abc1234-56.2026.8.26.0100", false},
		{"  0001234-56.2026.8.26.0100 ", true}, // surrounding whitespace tolerated
	}

	for _, tt := range tests {
		if got := IsCNJCaseNumber(tt.value); got != tt.want {
			t.Errorf("IsCNJCaseNumber(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestValidateStructCNJTag(t *testing.T) {
	type request struct {
		CaseNumber string `json:"case_number" validate:"omitempty,cnj"`
		Name       string `json:"name" validate:"required,min=2,max=10"`
	}

	if err := ValidateStruct(&request{CaseNumber: "0001234-56.2026.8.26.0100", Name: "ok"}); err != nil {
		t.Errorf("valid struct rejected: %v", err)
	}
	if err := ValidateStruct(&request{Name: "ok"}); err != nil {
		t.Errorf("omitempty case number rejected: %v", err)
	}

	err := ValidateStruct(&request{CaseNumber: "not-a-case", Name: "ok"})
	if err == nil {
		t.Fatal("expected cnj validation failure")
	}
	fields := err.Fields()
	if _, ok := fields["case_number"]; !ok {
		t.Errorf("expected case_number in error fields, got %v", fields)
	}
}

func TestValidateStructMessages(t *testing.T) {
	type request struct {
		Name string `json:"name" validate:"required,min=2"`
	}

	err := ValidateStruct(&request{})
	if err == nil {
		t.Fatal("expected required failure")
	}
	errs := err.Errors()
	if len(errs) != 1 || errs[0].Tag() != "required" {
		t.Fatalf("expected one required error, got %+v", errs)
	}
	if errs[0].Error() == "" {
		t.Error("expected a human-readable message")
	}

	err = ValidateStruct(&request{Name: "x"})
	if err == nil || err.Errors()[0].Tag() != "min" {
		t.Fatalf("expected min failure, got %v", err)
	}
}
