package model

import "testing"

// TestParsePhoneNumber tests normalization of raw phone input.
func TestParsePhoneNumber(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected PhoneNumber
	}{
		{"digits only", "5511987654321", "5511987654321"},
		{"international format", "+55 (11) 98765-4321", "5511987654321"},
		{"dots and slashes", "55.11/98765.4321", "5511987654321"},
		{"full-width digits", "５５１１９８７６５４３２１", "5511987654321"},
		{"letters dropped", "tel:55abc11", "5511"},
		{"empty", "", ""},
		{"no digits", "+()-", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ParsePhoneNumber(tc.input)
			if got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

// TestPhoneNumberLast tests trailing digit extraction.
func TestPhoneNumberLast(t *testing.T) {
	t.Parallel()

	p := PhoneNumber("5511987654321")

	testCases := []struct {
		n        int
		expected string
	}{
		{4, "4321"},
		{8, "87654321"},
		{9, "987654321"},
		{0, "5511987654321"},
		{13, "5511987654321"},
		{20, "5511987654321"},
	}

	for _, tc := range testCases {
		if got := p.Last(tc.n); got != tc.expected {
			t.Errorf("Last(%d): expected %q, got %q", tc.n, tc.expected, got)
		}
	}
}

// TestPhoneNumberMasked tests that only the last four digits stay visible.
func TestPhoneNumberMasked(t *testing.T) {
	t.Parallel()

	if got := PhoneNumber("5511987654321").Masked(); got != "*********4321" {
		t.Errorf("expected *********4321, got %q", got)
	}
	if got := PhoneNumber("123").Masked(); got != "***" {
		t.Errorf("expected ***, got %q", got)
	}
}
