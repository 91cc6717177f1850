package textutil

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

// SimilarityFeatures is the vocabulary cap used for two-text similarity.
const SimilarityFeatures = 2000

// ErrEmptyVocabulary is returned when no term of any document survives
// tokenization and stopword removal.
var ErrEmptyVocabulary = errors.New("textutil: empty vocabulary")

// Vector is a sparse TF-IDF document vector keyed by vocabulary index.
type Vector map[int]float64

// Vectorizer builds TF-IDF vectors over a small corpus. The vocabulary is
// fit on exactly the documents passed to FitTransform, so a Vectorizer is
// constructed fresh for every comparison and holds no state between calls.
type Vectorizer struct {
	NGramMin    int
	NGramMax    int
	MaxFeatures int
	SublinearTF bool
}

// NewVectorizer returns a unigram-through-trigram vectorizer with the given
// vocabulary cap.
func NewVectorizer(maxFeatures int, sublinearTF bool) *Vectorizer {
	return &Vectorizer{NGramMin: 1, NGramMax: 3, MaxFeatures: maxFeatures, SublinearTF: sublinearTF}
}

var tokenRe = regexp.MustCompile(`\b\w\w+\b`)

// terms tokenizes one document into stopword-filtered n-grams.
func (v *Vectorizer) terms(doc string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(doc), -1)
	tokens := raw[:0]
	for _, t := range raw {
		if !IsStopword(t) {
			tokens = append(tokens, t)
		}
	}
	var out []string
	for n := v.NGramMin; n <= v.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// FitTransform fits the vocabulary on docs and returns one L2-normalized
// TF-IDF vector per document. It fails only when the corpus produces no
// vocabulary at all.
func (v *Vectorizer) FitTransform(docs []string) ([]Vector, error) {
	termsPerDoc := make([][]string, len(docs))
	corpusCount := make(map[string]int)
	docFreq := make(map[string]int)
	for i, doc := range docs {
		ts := v.terms(doc)
		termsPerDoc[i] = ts
		inDoc := make(map[string]struct{}, len(ts))
		for _, t := range ts {
			corpusCount[t]++
			inDoc[t] = struct{}{}
		}
		for t := range inDoc {
			docFreq[t]++
		}
	}
	if len(corpusCount) == 0 {
		return nil, ErrEmptyVocabulary
	}

	vocabTerms := make([]string, 0, len(corpusCount))
	for t := range corpusCount {
		vocabTerms = append(vocabTerms, t)
	}
	if v.MaxFeatures > 0 && len(vocabTerms) > v.MaxFeatures {
		sort.Slice(vocabTerms, func(i, j int) bool {
			a, b := vocabTerms[i], vocabTerms[j]
			if corpusCount[a] != corpusCount[b] {
				return corpusCount[a] > corpusCount[b]
			}
			return a < b
		})
		vocabTerms = vocabTerms[:v.MaxFeatures]
	}
	vocab := make(map[string]int, len(vocabTerms))
	for i, t := range vocabTerms {
		vocab[t] = i
	}

	n := float64(len(docs))
	idf := make([]float64, len(vocabTerms))
	for t, i := range vocab {
		// Smoothed IDF keeps every weight positive.
		idf[i] = math.Log((1+n)/(1+float64(docFreq[t]))) + 1
	}

	vectors := make([]Vector, len(docs))
	for d, ts := range termsPerDoc {
		tf := make(map[int]float64)
		for _, t := range ts {
			if i, ok := vocab[t]; ok {
				tf[i]++
			}
		}
		vec := make(Vector, len(tf))
		var norm float64
		for i, f := range tf {
			if v.SublinearTF {
				f = 1 + math.Log(f)
			}
			w := f * idf[i]
			vec[i] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for i := range vec {
				vec[i] /= norm
			}
		}
		vectors[d] = vec
	}
	return vectors, nil
}

// Cosine returns the cosine similarity of two sparse vectors. Vectors from
// FitTransform are already L2-normalized, so this is a plain dot product; a
// zero vector yields 0.
func Cosine(a, b Vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for i, av := range a {
		if bv, ok := b[i]; ok {
			dot += av * bv
		}
	}
	return dot
}

// Jaccard returns intersection-over-union of the lowercase word sets of two
// texts, or 0 when either text has no words.
func Jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

// Similarity scores how alike two texts are on a [0,1] scale. The primary
// path is TF-IDF vectorization over exactly the two texts plus cosine
// similarity; degenerate input (no vocabulary) falls back to Jaccard word
// overlap. Similarity never fails.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	vec := NewVectorizer(SimilarityFeatures, true)
	vectors, err := vec.FitTransform([]string{a, b})
	if err != nil {
		return Jaccard(a, b)
	}
	return Clamp01(Cosine(vectors[0], vectors[1]))
}

// Clamp01 clamps v to the [0,1] interval.
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
