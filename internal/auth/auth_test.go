package auth

import (
	"errors"
	"testing"
)

func TestStaticToken(t *testing.T) {
	v := StaticToken("s3cret")
	if err := v.Validate("s3cret"); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := v.Validate("nope"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := v.Validate(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for empty token, got %v", err)
	}
	if err := StaticToken("").Validate("anything"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected empty validator to reject, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := BearerToken(tc.header)
		if token != tc.token || ok != tc.ok {
			t.Fatalf("BearerToken(%q) = %q,%v want %q,%v", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}
