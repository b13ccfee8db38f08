package generator

import (
	"fmt"
	"strings"
	"testing"

	"retrotunes-service/internal/domain"
)

func TestBuildPromptBoundsExclusionHint(t *testing.T) {
	texts := make([]string, 50)
	for i := range texts {
		texts[i] = fmt.Sprintf("pergunta-%02d", i)
	}

	prompt := BuildPrompt(Request{
		Count:        10,
		Decade:       domain.Decade90s,
		Category:     domain.CategoryBoth,
		ExcludeTexts: texts,
	})

	// Only the 30 most recent texts may appear, freshest first.
	if strings.Contains(prompt, "pergunta-19") {
		t.Fatal("prompt contains a text older than the hint bound")
	}
	last := strings.Index(prompt, "pergunta-49")
	older := strings.Index(prompt, "pergunta-20")
	if last == -1 || older == -1 {
		t.Fatalf("prompt missing expected hint entries:\n%s", prompt)
	}
	if last > older {
		t.Fatal("hint is not most-recent-first")
	}
}

func TestBuildPromptRegionConstraints(t *testing.T) {
	pt := BuildPrompt(Request{Count: 5, Decade: domain.Decade80s, Category: domain.CategoryPortuguese})
	if !strings.Contains(pt, "NÃO incluas artistas brasileiros") {
		t.Fatalf("portuguese prompt missing contamination guard:\n%s", pt)
	}

	intl := BuildPrompt(Request{Count: 5, Decade: domain.Decade80s, Category: domain.CategoryInternational})
	if !strings.Contains(intl, "NÃO incluas artistas portugueses") {
		t.Fatalf("international prompt missing contamination guard:\n%s", intl)
	}
}

func TestBuildPromptOmitsEmptyHint(t *testing.T) {
	prompt := BuildPrompt(Request{Count: 5, Decade: domain.DecadeAll, Category: domain.CategoryBoth})
	if strings.Contains(prompt, "NÃO repitas") {
		t.Fatalf("prompt should not carry an empty exclusion rule:\n%s", prompt)
	}
	if !strings.Contains(prompt, "dos anos 80 até hoje") {
		t.Fatalf("wildcard decade not rendered:\n%s", prompt)
	}
}
