package ai

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/king-app/king/backend/internal/model/chat"
	"github.com/king-app/king/backend/internal/model/persona"
)

// PromptTemplate defines the framing for one persona.
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PromptBuilder turns a dialogue into a single provider prompt. It is pure:
// identical inputs always yield identical text.
type PromptBuilder struct {
	templates map[string]*PromptTemplate
}

// NewPromptBuilder creates a builder with the default persona templates.
func NewPromptBuilder() *PromptBuilder {
	b := &PromptBuilder{
		templates: make(map[string]*PromptTemplate),
	}
	b.loadDefaultTemplates()
	return b
}

// Build frames the dialogue for p and appends message as the final user turn.
func (b *PromptBuilder) Build(p persona.Persona, history []chat.DialogueTurn, message string) string {
	var sb strings.Builder
	sb.WriteString(b.framing(p))
	sb.WriteString("\n\n")
	sb.WriteString(EncodeDialogue(history, message))
	return sb.String()
}

// EncodeDialogue renders the transcript section shared by every persona.
// Each turn is one line of the form `role: "content"`; content is Go-quoted
// so newlines or role-like text inside a message cannot be confused with
// turn boundaries.
func EncodeDialogue(history []chat.DialogueTurn, message string) string {
	var sb strings.Builder
	sb.WriteString("Conversation so far (oldest first):\n")
	for _, turn := range history {
		writeTurn(&sb, turn.Role, turn.Content)
	}
	writeTurn(&sb, chat.RoleUser, message)
	sb.WriteString("\nWrite the assistant's next reply to the last user message.")
	return sb.String()
}

func writeTurn(sb *strings.Builder, role chat.Role, content string) {
	sb.WriteString(string(role))
	sb.WriteString(": ")
	sb.WriteString(strconv.Quote(content))
	sb.WriteString("\n")
}

func (b *PromptBuilder) framing(p persona.Persona) string {
	template, ok := b.templates[p.ID]
	if !ok {
		return basicFraming(p)
	}

	return fmt.Sprintf(`%s

Persona:
- Name: %s
- Role: %s
- Tone: %s

Style hints:
- %s

Conversation rules:
- %s`,
		template.SystemPrompt,
		p.Name,
		p.Title,
		p.Tone,
		strings.Join(template.PersonalityHints, "\n- "),
		strings.Join(template.ContextRules, "\n- "),
	)
}

// basicFraming is used for personas without a dedicated template.
func basicFraming(p persona.Persona) string {
	return fmt.Sprintf(`You are %s, %s.

- Tone: %s
- Hint: %s

Stay in character and answer in the same language the user writes in.`,
		p.Name,
		p.Title,
		p.Tone,
		p.PromptHint,
	)
}

func (b *PromptBuilder) loadDefaultTemplates() {
	b.templates[persona.Logical] = &PromptTemplate{
		SystemPrompt: `You are a logical conversation partner for fans of Korean culture. You value accuracy and clear reasoning and help the user think problems through.`,
		PersonalityHints: []string{
			"Lead with the key point, then explain the reasoning",
			"Prefer facts, comparisons and concrete next steps",
			"Point out assumptions or missing information politely",
			"Keep emotional language to a minimum",
		},
		ContextRules: []string{
			"Use earlier turns to stay consistent with what was already said",
			"Answer in the same language the user writes in",
			"Keep replies short unless the user asks for detail",
		},
	}

	b.templates[persona.Emotional] = &PromptTemplate{
		SystemPrompt: `You are an empathetic conversation partner for fans of Korean culture. You care about how the user feels and respond with warmth.`,
		PersonalityHints: []string{
			"Acknowledge the user's feelings before anything else",
			"Mirror the user's excitement or sadness in your wording",
			"Encourage and reassure rather than correct",
			"Use friendly, expressive language",
		},
		ContextRules: []string{
			"Use earlier turns to remember what the user shared",
			"Answer in the same language the user writes in",
			"Keep replies short unless the user asks for detail",
		},
	}
}
