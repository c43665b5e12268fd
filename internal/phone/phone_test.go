package phone

import "testing"

func TestNormalize_Variants(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0930063585", "0930063585"},
		{"930063585", "0930063585"},
		{"380930063585", "0930063585"},
		{"+380930063585", "0930063585"},
		{"+380 93 006 35 85", "0930063585"},
		{"tel:+38-093-006-35-85", "0930063585"},
		{"", ""},
		{"12345", "12345"}, // not a subscriber number; digits passthrough
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSame(t *testing.T) {
	if !Same("+380930063585", "0930063585") {
		t.Fatalf("expected numbers to match")
	}
	if Same("", "") {
		t.Fatalf("empty numbers must never match")
	}
	if Same("0930063585", "0933297777") {
		t.Fatalf("distinct numbers must not match")
	}
}
