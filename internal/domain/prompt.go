package domain

import "strings"

// ContextSeparator joins retrieved chunks in a prompt context.
const ContextSeparator = "\n\n---\n\n"

// Prompt is the input handed to a Generator. Text renders it for chat models;
// offline generators may read Context directly.
type Prompt struct {
	Mode     string
	Context  string
	Question string
}

// Text renders the prompt sent to a language model.
func (p Prompt) Text() string {
	var b strings.Builder
	b.WriteString("You are a document assistant.\n\n")
	b.WriteString("Mode: ")
	b.WriteString(p.Mode)
	b.WriteString("\n\nUse ONLY the context below.\n\nContext:\n")
	b.WriteString(p.Context)
	b.WriteString("\n")
	if p.Question != "" {
		b.WriteString("\nQuestion:\n")
		b.WriteString(p.Question)
		b.WriteString("\n")
	}
	return b.String()
}
