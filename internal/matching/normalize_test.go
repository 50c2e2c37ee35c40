package matching

import (
	"reflect"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "lowercase passthrough",
			input:    "edf energie",
			expected: "edf energie",
		},
		{
			name:     "uppercase and punctuation",
			input:    "PRLV EDF-ENERGIE, JANVIER!",
			expected: "prlv edf energie janvier",
		},
		{
			name:     "accents stripped",
			input:    "Société Générale Électricité",
			expected: "societe generale electricite",
		},
		{
			name:     "whitespace collapsed",
			input:    "  VIR   SEPA\tDURAND  ",
			expected: "vir sepa durand",
		},
		{
			name:     "digits kept",
			input:    "FACT-2026-00458",
			expected: "fact 2026 00458",
		},
		{
			name:     "only punctuation",
			input:    "---...///",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.expected {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSignificantWords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
		{
			name:     "banking boilerplate removed",
			input:    "VIR SEPA DURAND PEINTURE",
			expected: []string{"sepa", "durand", "peinture"},
		},
		{
			name:     "legal forms and short words removed",
			input:    "Boulangerie Dupont SARL et fils",
			expected: []string{"boulangerie", "dupont", "fils"},
		},
		{
			name:     "short tokens dropped",
			input:    "LA CB DU 12",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SignificantWords(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("SignificantWords(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
