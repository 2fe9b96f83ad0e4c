package domain

import "testing"

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{0, "0"},
		{1, "1"},
		{999, "999"},
		{1000, "1k"},
		{1500, "1.5k"},
		{999999, "999.999k"},
		{1000000, "1m"},
		{1500000, "1.5m"},
		{2000000, "2m"},
		{12345678, "12.345678m"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.amount); got != tc.want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}
