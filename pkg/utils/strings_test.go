package utils

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"alice@example.com", true},
		{"  Bob@Example.COM ", true},
		{"", false},
		{"not-an-email", false},
		{"a@b", false},
		{"a@@example.com", false},
		{"a b@example.com", false},
		{"a@example.", false},
	}
	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone(" +33 (6) 12-34-56-78 "); got != "+33612345678" {
		t.Fatalf("unexpected %q", got)
	}
	if !IsValidPhone("06 12 34 56 78") {
		t.Fatal("expected valid phone")
	}
	if IsValidPhone("123") {
		t.Fatal("expected invalid phone")
	}
}

func TestNormalizeString(t *testing.T) {
	if got := NormalizeString("  Alice   Martin "); got != "Alice Martin" {
		t.Fatalf("unexpected %q", got)
	}
}
