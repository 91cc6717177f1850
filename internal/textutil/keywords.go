package textutil

import (
	"regexp"
	"strings"
)

// stopwords are common English function words excluded from keyword and
// concept matching.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the and for are but not you all can had
		her was one our out has have been were being
		their there this that with they from which what
		when where will would could should about into
		through during before after above below between
		under again further then once here why how
		both each few more most other some such only
		same than very just also now used using use`) {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether the word is in the fixed stopword set.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

var wordRe = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)

// Keywords extracts content words from text: letters-only tokens of three
// or more characters, stopwords removed, deduplicated in first-seen order.
func Keywords(text string) []string {
	if text == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var keywords []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if IsStopword(w) {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}
	return keywords
}

// requiredRes are the directive patterns scanned for in rubric text, in
// order. Rubric parsing is heuristic by design: a directive the patterns do
// not cover is simply not treated as required.
var requiredRes = []*regexp.Regexp{
	regexp.MustCompile(`must\s+(?:mention|include|have|contain)[:\s]+([^,.]+)`),
	regexp.MustCompile(`required[:\s]+([^,.]+)`),
	regexp.MustCompile(`key\s+(?:concepts?|terms?|words?)[:\s]+([^,.]+)`),
	regexp.MustCompile(`should\s+(?:mention|include)[:\s]+([^,.]+)`),
}

// RequiredKeywords scans rubric text for "must mention X" style directives
// and returns the deduplicated union of the content words that follow each
// match. An empty rubric or one without directives yields nil.
func RequiredKeywords(rubric string) []string {
	if rubric == "" {
		return nil
	}
	lower := strings.ToLower(rubric)
	seen := make(map[string]struct{})
	var required []string
	for _, re := range requiredRes {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			for _, w := range wordRe.FindAllString(m[1], -1) {
				if IsStopword(w) {
					continue
				}
				if _, ok := seen[w]; ok {
					continue
				}
				seen[w] = struct{}{}
				required = append(required, w)
			}
		}
	}
	return required
}

// maxConcepts caps how many multi-word phrases Concepts returns.
const maxConcepts = 20

// Concepts extracts two and three word phrases from text. Bigrams must
// contain no stopwords; trigrams need at least two content words. At most
// maxConcepts phrases are returned, bigrams first.
func Concepts(text string) []string {
	if text == "" {
		return nil
	}
	words := strings.Fields(strings.ToLower(text))
	var concepts []string
	for i := 0; i+1 < len(words) && len(concepts) < maxConcepts; i++ {
		if IsStopword(words[i]) || IsStopword(words[i+1]) {
			continue
		}
		concepts = append(concepts, words[i]+" "+words[i+1])
	}
	for i := 0; i+2 < len(words) && len(concepts) < maxConcepts; i++ {
		meaningful := 0
		for _, w := range words[i : i+3] {
			if !IsStopword(w) {
				meaningful++
			}
		}
		if meaningful >= 2 {
			concepts = append(concepts, words[i]+" "+words[i+1]+" "+words[i+2])
		}
	}
	return concepts
}
