package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+447700900123", "+447700900123"},
		{"07700 900123", "+447700900123"},
		{"  +44 7700 900123  ", "+447700900123"},
		{"(07700) 900-123", "+447700900123"},
		{"+15551234567", "+15551234567"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizePhone(tc.in), "input %q", tc.in)
	}
}

func TestNormalizePhoneFallbackKeepsDigits(t *testing.T) {
	// not a possible number anywhere: fall back to digit cleanup
	assert.Equal(t, "+12", NormalizePhone("+1-2 junk"))
	assert.Equal(t, "12", NormalizePhone("1x2"))
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("+447700900123"))
	assert.True(t, ValidPhone("07700 900123"))
	assert.False(t, ValidPhone("not a phone"))
	assert.False(t, ValidPhone(""))
}

func TestNewLeadCodeFormat(t *testing.T) {
	re := regexp.MustCompile(`^#[A-Z]{3}\d{3}$`)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code := NewLeadCode()
		assert.Regexp(t, re, code)
		seen[code] = true
	}
	// 200 draws from a 17.5M space should essentially never all collide
	assert.Greater(t, len(seen), 150)
}

func TestNewSandboxPhoneFormat(t *testing.T) {
	re := regexp.MustCompile(`^\+4477009\d{6}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, re, NewSandboxPhone())
	}
}
