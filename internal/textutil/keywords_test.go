package textutil

import (
	"reflect"
	"testing"
)

func TestKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"drops stopwords", "the cat and the dog", []string{"cat", "dog"}},
		{"drops short words", "a an ox is big", []string{"big"}},
		{"dedup preserves order", "photosynthesis uses light, light drives photosynthesis", []string{"photosynthesis", "uses", "light", "drives"}},
		{"case folded", "TCP and tcp", []string{"tcp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Keywords(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Keywords(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRequiredKeywords(t *testing.T) {
	tests := []struct {
		name   string
		rubric string
		want   []string
	}{
		{"empty rubric", "", nil},
		{"no directives", "Award full marks for a complete answer", nil},
		{"must mention", "Must mention: recursion", []string{"recursion"}},
		{"must include", "must include base case", []string{"base", "case"}},
		{"required", "Required: encapsulation, inheritance", []string{"encapsulation"}},
		{"key concepts", "Key concepts: mitosis division", []string{"mitosis", "division"}},
		{"should mention", "The answer should mention entropy.", []string{"entropy"}},
		{"stopwords filtered", "must contain the most important keyword", []string{"important", "keyword"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequiredKeywords(tt.rubric); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RequiredKeywords(%q) = %v, want %v", tt.rubric, got, tt.want)
			}
		})
	}
}

func TestRequiredKeywordsDeduplicates(t *testing.T) {
	got := RequiredKeywords("Must mention: gravity. Required: gravity")
	if !reflect.DeepEqual(got, []string{"gravity"}) {
		t.Errorf("RequiredKeywords = %v, want [gravity]", got)
	}
}

func TestConcepts(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := Concepts(""); got != nil {
			t.Errorf("Concepts(\"\") = %v, want nil", got)
		}
	})

	t.Run("bigram skips stopwords", func(t *testing.T) {
		got := Concepts("neural network with gradient descent")
		wantBigrams := []string{"neural network", "gradient descent"}
		for _, w := range wantBigrams {
			if !contains(got, w) {
				t.Errorf("Concepts missing %q in %v", w, got)
			}
		}
		if contains(got, "network with") {
			t.Errorf("Concepts should skip bigrams containing stopwords, got %v", got)
		}
	})

	t.Run("trigram needs two content words", func(t *testing.T) {
		got := Concepts("speed of light")
		if !contains(got, "speed of light") {
			t.Errorf("Concepts should keep trigrams with two content words, got %v", got)
		}
	})

	t.Run("capped", func(t *testing.T) {
		long := ""
		for i := 0; i < 60; i++ {
			long += "alpha beta gamma delta "
		}
		if got := Concepts(long); len(got) > maxConcepts {
			t.Errorf("Concepts returned %d phrases, cap is %d", len(got), maxConcepts)
		}
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
