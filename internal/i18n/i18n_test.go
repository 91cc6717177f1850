package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "Correct")
	if got != "Correct!" {
		t.Errorf("T(Correct) = %q, want 'Correct!'", got)
	}

	got = T(ctx, "NoAnswer")
	if got != "No answer provided." {
		t.Errorf("T(NoAnswer) = %q, want 'No answer provided.'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "Correct")
	if got != "Верно!" {
		t.Errorf("T(Correct) = %q, want 'Верно!'", got)
	}

	got = T(ctx, "NoAnswer")
	if got != "Ответ не предоставлен." {
		t.Errorf("T(NoAnswer) = %q, want 'Ответ не предоставлен.'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "IncorrectWithAnswer", map[string]any{"Choice": "Paris"})
	if got != "Incorrect. The correct answer was: Paris" {
		t.Errorf("Td(IncorrectWithAnswer) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "FlaggedPairs", 1)
	if got1 != "1 suspicious answer pair found." {
		t.Errorf("Tp(FlaggedPairs, 1) = %q", got1)
	}

	got5 := Tp(ctx, "FlaggedPairs", 5)
	if got5 != "5 suspicious answer pairs found." {
		t.Errorf("Tp(FlaggedPairs, 5) = %q", got5)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}
