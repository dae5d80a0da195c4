package prompt

import (
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

// Format selects the wire shape of the rendered payload.
type Format string

const (
	FormatOpenAI    Format = "openai"
	FormatAnthropic Format = "anthropic"
	FormatGemini    Format = "gemini"
	FormatTagged    Format = "tagged"
	FormatText      Format = "text"
)

// ParseFormat normalizes and validates a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return FormatOpenAI, nil
	case "anthropic", "claude":
		return FormatAnthropic, nil
	case "gemini", "google":
		return FormatGemini, nil
	case "tagged":
		return FormatTagged, nil
	case "text", "plain":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format %q: must be one of openai, anthropic, gemini, tagged, text", s)
	}
}

// GeminiPart wraps one text chunk of a Gemini content block.
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiContent is one role-tagged content block in the Gemini wire shape.
type GeminiContent struct {
	Role  string       `json:"role"`
	Parts []GeminiPart `json:"parts"`
}

// AnthropicPayload splits system text from the alternating message feed, the
// way the Anthropic API expects it.
type AnthropicPayload struct {
	System   string              `json:"system,omitempty"`
	Messages []anthropic.Message `json:"messages"`
}

// Payload is the rendered output of one format. Exactly one of the
// format-specific fields is populated.
type Payload struct {
	Format    Format                         `json:"format"`
	OpenAI    []openai.ChatCompletionMessage `json:"openai,omitempty"`
	Anthropic *AnthropicPayload              `json:"anthropic,omitempty"`
	Gemini    []GeminiContent                `json:"gemini,omitempty"`
	Text      string                         `json:"text,omitempty"`
}

// Render serializes a message sequence into the requested wire format.
// openai and gemini round-trip role and content; anthropic folds system
// messages into the system field; tagged and text are lossy by design and
// must not be re-ingested.
func Render(messages []Message, format Format) (*Payload, error) {
	switch format {
	case FormatOpenAI:
		return &Payload{Format: format, OpenAI: renderOpenAI(messages)}, nil
	case FormatAnthropic:
		return &Payload{Format: format, Anthropic: renderAnthropic(messages)}, nil
	case FormatGemini:
		return &Payload{Format: format, Gemini: renderGemini(messages)}, nil
	case FormatTagged:
		return &Payload{Format: format, Text: renderTagged(messages)}, nil
	case FormatText:
		return &Payload{Format: format, Text: renderText(messages)}, nil
	default:
		return nil, fmt.Errorf("unknown format %q", string(format))
	}
}

func renderOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Name:    msg.Name,
			Content: msg.Content,
		})
	}
	return out
}

// DecodeOpenAI reconstructs the pipeline message sequence from an openai
// payload. Provenance is not carried on the wire and comes back empty.
func DecodeOpenAI(in []openai.ChatCompletionMessage) ([]Message, error) {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		role, err := ParseRole(m.Role)
		if err != nil {
			return nil, err
		}
		out = append(out, Message{Role: role, Name: m.Name, Content: m.Content})
	}
	return out, nil
}

func renderAnthropic(messages []Message) *AnthropicPayload {
	payload := &AnthropicPayload{}
	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			payload.Messages = append(payload.Messages, anthropic.NewAssistantTextMessage(msg.Content))
		default:
			payload.Messages = append(payload.Messages, anthropic.NewUserTextMessage(msg.Content))
		}
	}
	payload.System = strings.Join(system, "\n\n")
	return payload
}

func renderGemini(messages []Message) []GeminiContent {
	out := make([]GeminiContent, 0, len(messages))
	for _, msg := range messages {
		role := string(msg.Role)
		if msg.Role == RoleAssistant {
			role = "model"
		}
		out = append(out, GeminiContent{
			Role:  role,
			Parts: []GeminiPart{{Text: msg.Content}},
		})
	}
	return out
}

// DecodeGemini reconstructs the message sequence from a gemini payload.
func DecodeGemini(in []GeminiContent) ([]Message, error) {
	out := make([]Message, 0, len(in))
	for _, c := range in {
		role, err := ParseRole(c.Role)
		if err != nil {
			return nil, err
		}
		var parts []string
		for _, p := range c.Parts {
			parts = append(parts, p.Text)
		}
		out = append(out, Message{Role: role, Content: strings.Join(parts, "")})
	}
	return out, nil
}

func renderTagged(messages []Message) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[")
		b.WriteString(string(msg.Role))
		b.WriteString("]\n")
		b.WriteString(msg.Content)
	}
	return b.String()
}

func renderText(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, "\n")
}
