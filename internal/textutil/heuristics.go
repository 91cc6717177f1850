package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

// mashPatterns are keyboard rows that show up in mashed input.
var mashPatterns = []string{"asdf", "qwer", "zxcv", "hjkl", "uiop"}

// commonWords is a small set of very frequent English words. A long answer
// sharing none of them is almost certainly not English prose.
var commonWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the be to of and a in that have i
		it for not on with he as you do at
		this but his by from they we say her she
		or an will my one all would there their what
		is are was were been being has had does did`) {
		commonWords[w] = struct{}{}
	}
}

// IsGibberish reports whether text looks like random or mashed input rather
// than an attempted answer. Texts under ten characters are too short to
// judge and are never flagged.
func IsGibberish(text string) bool {
	if len(text) < 10 {
		return false
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return true
	}

	if hasRepeatedRun(text, 5) {
		return true
	}

	lower := strings.ToLower(text)
	if len(text) < 50 {
		for _, p := range mashPatterns {
			if strings.Contains(lower, p) {
				return true
			}
		}
	}

	total := 0
	for _, w := range words {
		total += len(w)
	}
	avg := float64(total) / float64(len(words))
	if avg > 15 || avg < 2 {
		return true
	}

	alpha := 0
	runes := []rune(text)
	for _, r := range runes {
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if float64(alpha)/float64(len(runes)) < 0.5 {
		return true
	}

	if len(words) > 10 {
		for _, w := range words {
			if _, ok := commonWords[strings.ToLower(w)]; ok {
				return false
			}
		}
		return true
	}
	return false
}

// hasRepeatedRun reports whether any rune repeats at least n times in a row.
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// defaultExpectedWords stands in when a reference answer gives no length hint.
const defaultExpectedWords = 50

// LengthScore rates answer length against the reference answer on a
// [0.3,1.0] scale. The sweet spot is 0.8-1.5 times the expected length;
// shorter and longer answers taper off piecewise.
func LengthScore(answer, expected string) float64 {
	answerWords := WordCount(answer)
	expectedWords := WordCount(expected)
	if expectedWords == 0 {
		expectedWords = defaultExpectedWords
	}
	ratio := float64(answerWords) / float64(expectedWords)

	switch {
	case ratio >= 0.8 && ratio <= 1.5:
		return 1.0
	case ratio >= 0.5 && ratio < 0.8:
		return 0.7 + (ratio - 0.5)
	case ratio > 1.5 && ratio <= 2.5:
		return 1.0 - (ratio-1.5)*0.2
	case ratio < 0.5:
		return maxf(0.3, ratio*1.4)
	default:
		return 0.6
	}
}

var sentenceRe = regexp.MustCompile(`[.!?]+`)

// StructureScore rates how organized an answer looks: sentence terminators
// and, for longer answers, paragraph breaks. The result is in [0,1].
func StructureScore(answer string) float64 {
	if answer == "" {
		return 0
	}
	sentences := len(sentenceRe.FindAllString(answer, -1))
	paragraphs := 0
	for _, p := range strings.Split(answer, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	words := WordCount(answer)

	score := 0.5
	if sentences >= 2 {
		score += 0.2
	}
	if sentences >= 4 {
		score += 0.1
	}
	if words > 100 && paragraphs >= 2 {
		score += 0.2
	}
	return minf(1.0, score)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
