package compiler

import (
	"strings"
	"testing"
)

func analyzeSource(t *testing.T, src string) []string {
	t.Helper()
	var out []string
	for _, w := range Analyze(resolveSource(t, src)) {
		out = append(out, w.String())
	}
	return out
}

func TestSemanticAnalyzer_UnusedLet(t *testing.T) {
	got := analyzeSource(t, "main [ x = 1. y = 2. y + 1 ]")
	want := []string{"test.slate:1:8: x declared and not used"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("warnings = %q, want %q", got, want)
	}
}

func TestSemanticAnalyzer_NoFalsePositives(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"captured by inner block", "main [ x = 1. [ get [ x ] ] get ]"},
		{"used as argument", "main [ x = 1. print: x ]"},
		{"value of last statement", "main [ 1 ]"},
		{"accessors are synthetic", "counter = [ n := 0 ]. main [ counter n ]"},
		{"sends have effects", "main [ 1 + 2. 3 ]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := analyzeSource(t, tc.src); len(got) != 0 {
				t.Errorf("unexpected warnings: %q", got)
			}
		})
	}
}

func TestSemanticAnalyzer_DiscardedValues(t *testing.T) {
	got := analyzeSource(t, "main [\n  1.\n  'a'.\n  self.\n  2 + 3\n]")
	want := []string{
		"test.slate:2:3: expression has no effect",
		"test.slate:3:3: expression has no effect",
		"test.slate:4:3: expression has no effect",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("warnings:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}
