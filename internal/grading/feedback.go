package grading

import (
	"context"
	"strings"

	"github.com/avorobey/autograder/internal/i18n"
)

// essayComponents are the weighted factors behind an essay score, kept
// together so feedback can point at the weak ones.
type essayComponents struct {
	similarity float64
	keyword    float64
	concept    float64
	length     float64
	structure  float64
	required   float64
}

// Feedback wording is localized presentation; only the score bands that
// select the messages are contractual.

func shortFeedback(ctx context.Context, combined, keywordScore float64, keywords, required []string, student string) string {
	switch {
	case combined >= 0.90:
		return i18n.T(ctx, "ShortExcellent")
	case combined >= 0.80:
		return i18n.T(ctx, "ShortVeryGood")
	case combined >= 0.70:
		return i18n.T(ctx, "ShortGood")
	case combined >= 0.50:
		parts := []string{i18n.T(ctx, "PartialCredit")}
		if keywordScore < 0.5 && len(keywords) > 0 {
			parts = append(parts, i18n.Td(ctx, "ConsiderIncluding", map[string]any{
				"Keywords": joinFirst(keywords, 3),
			}))
		}
		if missing := missingKeywords(student, required, 2); len(missing) > 0 {
			parts = append(parts, i18n.Td(ctx, "KeyTermsNeeded", map[string]any{
				"Keywords": strings.Join(missing, ", "),
			}))
		}
		return strings.Join(parts, " ")
	default:
		parts := []string{i18n.T(ctx, "NeedsImprovement")}
		if len(keywords) > 0 {
			parts = append(parts, i18n.Td(ctx, "ConceptsToAddress", map[string]any{
				"Keywords": joinFirst(keywords, 4),
			}))
		}
		return strings.Join(parts, " ")
	}
}

func essayFeedback(ctx context.Context, combined float64, parts essayComponents, keywords, required []string, student string) string {
	var out []string

	switch {
	case combined >= 0.85:
		out = append(out, i18n.T(ctx, "EssayExcellent"))
	case combined >= 0.70:
		out = append(out, i18n.T(ctx, "EssayGood"))
	case combined >= 0.55:
		out = append(out, i18n.T(ctx, "EssaySatisfactory"))
	case combined >= 0.40:
		out = append(out, i18n.T(ctx, "EssayPartial"))
	default:
		out = append(out, i18n.T(ctx, "EssayPoor"))
	}

	if parts.keyword < 0.4 && len(keywords) > 0 {
		out = append(out, i18n.Td(ctx, "MoreTerminology", map[string]any{
			"Keywords": joinFirst(keywords, 3),
		}))
	}
	if missing := missingKeywords(student, required, 2); len(missing) > 0 {
		out = append(out, i18n.Td(ctx, "MissingRequired", map[string]any{
			"Keywords": strings.Join(missing, ", "),
		}))
	}
	// A length score of exactly 0.6 only comes from the far-too-long band.
	if parts.length < 0.5 {
		out = append(out, i18n.T(ctx, "ExpandResponse"))
	} else if parts.length == 0.6 {
		out = append(out, i18n.T(ctx, "MoreConcise"))
	}
	if parts.structure < 0.5 {
		out = append(out, i18n.T(ctx, "ImproveStructure"))
	}
	if parts.similarity < 0.3 && combined < 0.6 {
		out = append(out, i18n.T(ctx, "AddressQuestion"))
	}

	return strings.Join(out, " ")
}

func joinFirst(words []string, n int) string {
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, ", ")
}
