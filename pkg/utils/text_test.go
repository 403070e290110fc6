package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short string unchanged", "Asthma", 10, "Asthma"},
		{"exact length unchanged", "Asthma", 6, "Asthma"},
		{"cut with ellipsis", "Electronic Cigarettes", 10, "Electronic..."},
		{"zero returns as-is", "Child", 0, "Child"},
		{"counts characters not bytes", "Sjögren Syndrome", 4, "Sjög..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}
