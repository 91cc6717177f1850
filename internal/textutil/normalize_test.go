package textutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercase", "Hello World", "hello world"},
		{"collapse whitespace", "a   b\t\nc", "a b c"},
		{"strip punctuation", "Hello, world! (really)", "hello world really"},
		{"keep apostrophes", "Don't stop", "don't stop"},
		{"keep digits", "Go 1.21 rocks", "go 1 21 rocks"},
		{"trim", "  padded  ", "padded"},
		{"only punctuation", "?!...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("one two  three"); got != 3 {
		t.Errorf("WordCount = %d, want 3", got)
	}
	if got := WordCount(""); got != 0 {
		t.Errorf("WordCount of empty = %d, want 0", got)
	}
}
