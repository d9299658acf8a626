package main

import "testing"

func TestFormatTics(t *testing.T) {
	tests := []struct {
		tics int
		want string
	}{
		{0, "0:00"},
		{35, "0:01"},
		{35 * 75, "1:15"},
		{35*3600 + 34, "60:00"},
	}
	for _, tt := range tests {
		if got := formatTics(tt.tics); got != tt.want {
			t.Errorf("formatTics(%d) = %q, want %q", tt.tics, got, tt.want)
		}
	}
}
