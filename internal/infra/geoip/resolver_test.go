package geoip

import (
	"errors"
	"testing"
)

func TestLocaleForCountry(t *testing.T) {
	cases := map[string]string{
		"":    "",
		"cn":  "zh",
		"TW":  "zh",
		" SG": "zh",
		"US":  "en",
		"ID":  "en",
	}
	for code, want := range cases {
		if got := LocaleForCountry(code); got != want {
			t.Fatalf("LocaleForCountry(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestNilResolver(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("empty path should give nil resolver, got %v %v", r, err)
	}
	if _, err := r.CountryCode("1.1.1.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close nil resolver: %v", err)
	}
}
