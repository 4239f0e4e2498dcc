package kb

import (
	"strings"
	"testing"
)

func TestResolveLang_FallsBackToEnglish(t *testing.T) {
	code, _ := resolveLang("fr-FR")
	if code != defaultLang {
		t.Errorf("expected fallback to %q, got %q", defaultLang, code)
	}
}

func TestResolveLang_KnownLanguage(t *testing.T) {
	for _, lang := range []string{"en", "zh-HK", "zh-CN", "ja", "ko", "th-TH", "vi-VN"} {
		code, tpl := resolveLang(lang)
		if code != lang {
			t.Errorf("expected %q to resolve to itself, got %q", lang, code)
		}
		if tpl.template == "" {
			t.Errorf("language %q has an empty template", lang)
		}
	}
}

func TestBuildPrompt_SubstitutesPlaceholders(t *testing.T) {
	prompt := buildPrompt("en", "user: hi there", "Relevant information:\n\n[Document 1] foo", "what is foo?")
	for _, placeholder := range []string{"{preferred_language}", "{conversation_history}", "{context}", "{query}"} {
		if strings.Contains(prompt, placeholder) {
			t.Errorf("prompt still contains unresolved placeholder %q: %q", placeholder, prompt)
		}
	}
	if !strings.Contains(prompt, "what is foo?") {
		t.Errorf("prompt missing query text: %q", prompt)
	}
	if !strings.Contains(prompt, "user: hi there") {
		t.Errorf("prompt missing conversation history: %q", prompt)
	}
	if !strings.Contains(prompt, "English") {
		t.Errorf("prompt missing resolved language display name: %q", prompt)
	}
}
