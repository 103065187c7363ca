package chat

import (
	"strings"
	"testing"
)

func TestBuildSystemPrompt(t *testing.T) {
	ctx := "create table users (id int)\n---\n"
	got := BuildSystemPrompt(ctx)

	if !strings.HasSuffix(got, "\n\nContext sections:\n"+ctx) {
		t.Errorf("context must follow the section header, got %q", got)
	}
	for _, phrase := range []string{
		"Data Analyst",
		"SQL",
		"Sorry, I don't know or have context to answer that question",
		"I am unable to comply with this request.",
	} {
		if !strings.Contains(got, phrase) {
			t.Errorf("prompt is missing %q", phrase)
		}
	}
}

func TestBuildSystemPrompt_EmptyContext(t *testing.T) {
	got := BuildSystemPrompt("")
	if got != instructions+"\n\nContext sections:\n" {
		t.Errorf("unexpected prompt for empty context: %q", got)
	}
	if strings.Contains(instructions, "\n") {
		t.Error("instructions must be a single paragraph")
	}
}
