package dataflows

import "testing"

func TestToLongportSymbol(t *testing.T) {
	cases := map[string]string{
		"AAPL":      "AAPL.US",
		"700.HK":    "700.HK",
		"BRK.B":     "BRK.B.US",
		"600519.SH": "600519.SH",
	}
	for in, want := range cases {
		if got := toLongportSymbol(in); got != want {
			t.Errorf("toLongportSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewLongportClientRequiresCredentials(t *testing.T) {
	if _, err := NewLongportClient("", "", ""); err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if _, err := NewLongportClient("key", "", "token"); err == nil {
		t.Fatal("expected error for partial credentials")
	}
}
