package prompt

import (
	"reflect"
	"testing"
)

var renderFixture = []Message{
	{Role: RoleSystem, Content: "sys one"},
	{Role: RoleSystem, Content: "sys two"},
	{Role: RoleUser, Name: "Sam", Content: "hello"},
	{Role: RoleAssistant, Content: "hi there"},
}

func TestParseFormatAliases(t *testing.T) {
	cases := map[string]Format{
		"openai":    FormatOpenAI,
		"claude":    FormatAnthropic,
		"Anthropic": FormatAnthropic,
		"google":    FormatGemini,
		"plain":     FormatText,
		"tagged":    FormatTagged,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseFormat(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestRenderOpenAIRoundTrip(t *testing.T) {
	payload, err := Render(renderFixture, FormatOpenAI)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(payload.OpenAI) != len(renderFixture) {
		t.Fatalf("got %d wire messages", len(payload.OpenAI))
	}
	if payload.OpenAI[2].Name != "Sam" {
		t.Fatalf("name dropped: %+v", payload.OpenAI[2])
	}

	back, err := DecodeOpenAI(payload.OpenAI)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range renderFixture {
		if back[i].Role != renderFixture[i].Role || back[i].Content != renderFixture[i].Content {
			t.Fatalf("message %d = %+v, want %+v", i, back[i], renderFixture[i])
		}
	}
}

func TestRenderAnthropicFoldsSystem(t *testing.T) {
	payload, err := Render(renderFixture, FormatAnthropic)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if payload.Anthropic.System != "sys one\n\nsys two" {
		t.Fatalf("system = %q", payload.Anthropic.System)
	}
	if len(payload.Anthropic.Messages) != 2 {
		t.Fatalf("got %d non-system messages", len(payload.Anthropic.Messages))
	}
}

func TestRenderGeminiRoleMappingAndRoundTrip(t *testing.T) {
	payload, err := Render(renderFixture, FormatGemini)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if payload.Gemini[3].Role != "model" {
		t.Fatalf("assistant must map to model, got %q", payload.Gemini[3].Role)
	}
	if payload.Gemini[2].Parts[0].Text != "hello" {
		t.Fatalf("parts = %+v", payload.Gemini[2].Parts)
	}

	back, err := DecodeGemini(payload.Gemini)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []Message{
		{Role: RoleSystem, Content: "sys one"},
		{Role: RoleSystem, Content: "sys two"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
	}
	if !reflect.DeepEqual(back, want) {
		t.Fatalf("round trip = %+v, want %+v", back, want)
	}
}

func TestRenderTagged(t *testing.T) {
	payload, err := Render(renderFixture[2:], FormatTagged)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "[user]\nhello\n\n[assistant]\nhi there"
	if payload.Text != want {
		t.Fatalf("tagged = %q, want %q", payload.Text, want)
	}
}

func TestRenderText(t *testing.T) {
	payload, err := Render(renderFixture, FormatText)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if payload.Text != "sys one\nsys two\nhello\nhi there" {
		t.Fatalf("text = %q", payload.Text)
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if _, err := Render(renderFixture, Format("xml")); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
