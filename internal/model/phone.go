package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PhoneNumber is a normalized, digit-only phone number.
// The zero value is an empty number and is never valid input for a search.
type PhoneNumber string

// ParsePhoneNumber normalizes raw user input into a PhoneNumber.
// Punctuation, spaces and a leading "+" are dropped.
//
// Input is NFKC-normalized first so that full-width digits ("５５１１…") pasted
// from messaging apps are folded into ASCII digits rather than discarded.
func ParsePhoneNumber(raw string) PhoneNumber {
	folded := norm.NFKC.String(raw)

	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range folded {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return PhoneNumber(sb.String())
}

// String returns the digits.
func (p PhoneNumber) String() string {
	return string(p)
}

// Len returns the number of digits.
func (p PhoneNumber) Len() int {
	return len(p)
}

// Last returns the trailing n digits. If n is zero, negative or larger than
// the number itself, the full number is returned.
func (p PhoneNumber) Last(n int) string {
	if n <= 0 || n >= len(p) {
		return string(p)
	}
	return string(p[len(p)-n:])
}

// Masked returns the number with every digit but the last four replaced by
// '*'. It is used wherever a number reaches logs or stored history.
func (p PhoneNumber) Masked() string {
	const visible = 4
	if len(p) <= visible {
		return strings.Repeat("*", len(p))
	}
	return strings.Repeat("*", len(p)-visible) + string(p[len(p)-visible:])
}
