package logger

import (
	"strings"
	"testing"
)

var (
	ansiSample  = "\x1b[31mError:\x1b[0m Something went \x1b[1;33mwrong\x1b[0m"
	strippedOut = "Error: Something went wrong"
)

func TestStripAnsiCodes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"colours", ansiSample, strippedOut},
		{"plain", "connection restored", "connection restored"},
		{"hyperlink", "see \x1b]8;;http://localhost:1234\x07LM Studio\x1b]8;;\x07\x1b[0m now", "see LM Studio now"},
		{"hyperlink with ST", "\x1b]8;;http://x\x1b\\link\x1b]8;;\x1b\\", "link"},
		{"trailing escape", "text\x1b", "text\x1b"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripAnsiCodes(tc.in); got != tc.want {
				t.Errorf("stripAnsiCodes(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func BenchmarkStripAnsiCodes_Large(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		sb.WriteString(ansiSample)
	}
	large := sb.String()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stripAnsiCodes(large)
	}
}
