package main

import "testing"

func TestParsePosting(t *testing.T) {
	cases := []struct {
		in          string
		wantAccount int64
		wantRaw     int64
	}{
		{"1=12.34", 1, 1234},
		{"2=-100.00", 2, -10000},
		{"0=5", 0, 500},
		{" 7 = 0.015", 7, 2},
	}
	for _, tc := range cases {
		account, raw, err := parsePosting(tc.in)
		if err != nil {
			t.Fatalf("parsePosting(%q): %v", tc.in, err)
		}
		if account != tc.wantAccount || raw != tc.wantRaw {
			t.Fatalf("parsePosting(%q) = (%d, %d), want (%d, %d)",
				tc.in, account, raw, tc.wantAccount, tc.wantRaw)
		}
	}
}

func TestParsePostingRejectsMalformed(t *testing.T) {
	for _, in := range []string{"12.34", "x=12.34", "1=abc", "1="} {
		if _, _, err := parsePosting(in); err == nil {
			t.Fatalf("parsePosting(%q): expected error", in)
		}
	}
}
