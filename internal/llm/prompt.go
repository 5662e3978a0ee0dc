package llm

import (
	"strings"

	"github.com/akshayavb99/offline-rag-cli/internal/domain"
)

// SystemPrompt constrains the assistant to the retrieved context.
const SystemPrompt = "You are a helpful assistant. Use the provided context. " +
	"If the answer is not in the context, say 'I don't know'."

// WelcomeMessage greets the user when the chat loop starts.
const WelcomeMessage = "Hello! I'm your RAG assistant. I can answer questions based on the " +
	"data in the vector store. Type 'exit' or 'end' to quit."

// BuildPrompt merges the retrieved chunks with the user question into a
// single prompt. With no results the question is passed through unchanged so
// the model can still answer (and admit it has no context).
func BuildPrompt(question string, results []domain.SearchResult) string {
	if len(results) == 0 {
		return question
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Chunk.Text)
	}
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(texts, "\n\n"))
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	return b.String()
}
