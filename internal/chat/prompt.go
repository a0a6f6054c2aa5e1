package chat

import (
	"fmt"
	"strings"
)

const assistantIdentity = "You are Mentat, an AI assistant with access to video transcripts."

// BuildRAGPrompt assembles the augmented user prompt. systemPrefix holds
// the merged style/memory context and may be empty. When no context was
// retrieved the prompt degrades to the plain form.
func BuildRAGPrompt(systemPrefix, contextBlock string, videoTitles []string, message string) string {
	if strings.TrimSpace(contextBlock) == "" {
		return BuildPlainPrompt(systemPrefix, message)
	}

	var b strings.Builder
	if systemPrefix != "" {
		b.WriteString(systemPrefix)
		b.WriteString("\n")
	}
	b.WriteString(assistantIdentity)
	b.WriteString("\n\nContext from videos:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\n---\nAvailable videos to cite:\n")
	for _, title := range videoTitles {
		fmt.Fprintf(&b, "- %s\n", title)
	}
	b.WriteString("\n---\nUser question: ")
	b.WriteString(message)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("1. Answer based on the video context when relevant\n")
	b.WriteString("2. Cite video titles naturally (no surrounding quotes)\n")
	b.WriteString("3. If the context doesn't help, say so and answer from general knowledge\n")
	b.WriteString("4. Be concise and helpful")
	return b.String()
}

// BuildPlainPrompt is the no-context form used on the plain endpoint and
// as the RAG fallback.
func BuildPlainPrompt(systemPrefix, message string) string {
	var b strings.Builder
	if systemPrefix != "" {
		b.WriteString(systemPrefix)
		b.WriteString("\n")
	}
	b.WriteString(assistantIdentity)
	b.WriteString("\n\nUser question: ")
	b.WriteString(message)
	return b.String()
}
