package responder

import (
	"strings"
	"testing"
)

func TestBuildMessagesOrder(t *testing.T) {
	t.Parallel()

	history := []Turn{
		{Role: RoleUser, Text: "oi"},
		{Role: RoleAssistant, Text: "olá!"},
	}
	messages := buildMessages("tudo bem?", history, nil)

	if len(messages) != 4 {
		t.Fatalf("len = %d, want 4", len(messages))
	}
	if messages[0].OfSystem == nil {
		t.Fatal("first message must be the system prompt")
	}
	if messages[1].OfUser == nil || messages[1].OfUser.Content.OfString.Value != "oi" {
		t.Fatalf("second message = %+v, want user turn", messages[1])
	}
	if messages[2].OfAssistant == nil || messages[2].OfAssistant.Content.OfString.Value != "olá!" {
		t.Fatalf("third message = %+v, want assistant turn", messages[2])
	}
	if messages[3].OfUser == nil || messages[3].OfUser.Content.OfString.Value != "tudo bem?" {
		t.Fatalf("last message = %+v, want the question", messages[3])
	}
}

func TestBuildMessagesSkipsEmptyTurns(t *testing.T) {
	t.Parallel()

	history := []Turn{
		{Role: RoleUser, Text: ""},
		{Role: RoleAssistant, Text: "resposta"},
	}
	messages := buildMessages("pergunta", history, nil)
	if len(messages) != 3 {
		t.Fatalf("len = %d, want 3 (empty turn skipped)", len(messages))
	}
}

func TestBuildMessagesInjectsReferences(t *testing.T) {
	t.Parallel()

	messages := buildMessages("pergunta", nil, []string{"doc um", "doc dois"})
	system := messages[0].OfSystem.Content.OfString.Value
	if !strings.Contains(system, "doc um") || !strings.Contains(system, "doc dois") {
		t.Fatalf("references missing from system prompt: %q", system)
	}
	if !strings.Contains(system, "português do Brasil") {
		t.Fatalf("base prompt missing: %q", system)
	}
}

func TestBuildMessagesWithoutHistory(t *testing.T) {
	t.Parallel()

	messages := buildMessages("pergunta", nil, nil)
	if len(messages) != 2 {
		t.Fatalf("len = %d, want 2", len(messages))
	}
	system := messages[0].OfSystem.Content.OfString.Value
	if strings.Contains(system, "Contexto:") {
		t.Fatal("context block added without references")
	}
}
