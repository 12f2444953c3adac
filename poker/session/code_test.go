package session

import "testing"

func TestRandomCode(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := RandomCode()
		if err != nil {
			t.Fatalf("RandomCode failed: %v", err)
		}
		if !ValidCode(code) {
			t.Fatalf("RandomCode returned malformed code %q", code)
		}
		if code[0] == '0' {
			t.Fatalf("RandomCode returned a leading zero: %q", code)
		}
	}
}

func TestValidCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"123456", true},
		{"000000", true},
		{"999999", true},
		{"12345", false},
		{"1234567", false},
		{"12345a", false},
		{"１２３４５６", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidCode(tt.code); got != tt.want {
			t.Errorf("ValidCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
