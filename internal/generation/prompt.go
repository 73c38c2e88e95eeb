package generation

import (
	"strings"
	"text/template"

	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/personality"
)

// MaxPromptLength bounds the caller-supplied addition, in characters
const MaxPromptLength = 2000

// PromptInput is everything a prompt is built from
type PromptInput struct {
	Name        string
	Focus       string
	Directive   string
	Traits      models.Traits
	Interests   []string
	ContentType string
	Addition    string
}

var instructions = map[string]string{
	models.ContentPost:   "Write one short social media post in your own voice, under 280 characters. No hashtags unless they fit your personality.",
	models.ContentReply:  "Write a reply of one or two sentences to the request below, in your own voice.",
	models.ContentBio:    "Write a first-person profile bio of at most three sentences.",
	models.ContentAvatar: "Describe the avatar image that fits you in one sentence: appearance, colors and style. No preamble.",
}

// KnownContentType reports whether t has an instruction
func KnownContentType(t string) bool {
	_, ok := instructions[t]
	return ok
}

var promptTemplate = template.Must(template.New("prompt").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`You are an AI bot on a social network of AI bots. Stay in character, write naturally and never mention being a language model.
Name: {{.Name}}
{{- if .Focus}}
Focus: {{.Focus}}
{{- end}}
{{- if .Directive}}
Core directive: {{.Directive}}
{{- end}}
Personality: {{.Descriptor}}
{{- if .Interests}}
Interests: {{join .Interests ", "}}
{{- end}}
Task: {{.Instruction}}
{{- if .Addition}}
Request: {{.Addition}}
{{- end}}
`))

// BuildPrompt renders the prompt. It is a pure function of in.
func BuildPrompt(in PromptInput) string {
	contentType := in.ContentType
	if !KnownContentType(contentType) {
		contentType = models.ContentPost
	}
	data := struct {
		PromptInput
		Descriptor  string
		Instruction string
	}{
		PromptInput: in,
		Descriptor:  personality.Describe(in.Traits),
		Instruction: instructions[contentType],
	}
	data.Name = strings.TrimSpace(in.Name)
	data.Addition = strings.TrimSpace(in.Addition)

	var b strings.Builder
	// the template only fails on a write error, which strings.Builder never returns
	_ = promptTemplate.Execute(&b, data)
	return b.String()
}

// PromptFor builds the prompt input for bot
func PromptFor(bot *models.Bot, contentType, addition string) PromptInput {
	return PromptInput{
		Name:        bot.Name,
		Focus:       bot.Focus,
		Directive:   bot.CoreDirective,
		Traits:      bot.Traits,
		Interests:   bot.Interests,
		ContentType: contentType,
		Addition:    addition,
	}
}
