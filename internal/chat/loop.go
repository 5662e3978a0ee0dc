// Package chat runs the interactive question-answer loop on a terminal.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/akshayavb99/offline-rag-cli/internal/domain"
	"github.com/akshayavb99/offline-rag-cli/internal/llm"
)

// Retriever finds the chunks most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
}

// Generator produces an answer for a composed prompt, streaming tokens as
// they arrive.
type Generator interface {
	ChatStream(ctx context.Context, prompt string, onToken func(string)) (string, error)
}

var (
	welcomeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Loop reads questions, retrieves context, and streams answers until the
// user types an exit word or input ends.
type Loop struct {
	retriever Retriever
	generator Generator
	logger    *zap.Logger
	topK      int
	in        io.Reader
	out       io.Writer
}

// New builds a chat loop reading from in and writing to out.
func New(retriever Retriever, generator Generator, logger *zap.Logger, topK int, in io.Reader, out io.Writer) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		retriever: retriever,
		generator: generator,
		logger:    logger,
		topK:      topK,
		in:        in,
		out:       out,
	}
}

// Run blocks until the user quits or the input stream closes. Errors on a
// single turn are printed and the loop continues; only a read failure or
// context cancellation ends the loop with an error.
func (l *Loop) Run(ctx context.Context) error {
	fmt.Fprintln(l.out, welcomeStyle.Render(llm.WelcomeMessage))

	scanner := bufio.NewScanner(l.in)
	for {
		fmt.Fprint(l.out, promptStyle.Render("You: "))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintln(l.out)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if isExit(question) {
			fmt.Fprintln(l.out, "Goodbye!")
			return nil
		}

		if err := l.answer(ctx, question); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(l.out, errorStyle.Render("Error: "+err.Error()))
			l.logger.Warn("turn failed", zap.String("question", question), zap.Error(err))
		}
	}
}

func (l *Loop) answer(ctx context.Context, question string) error {
	results, err := l.retriever.Retrieve(ctx, question, l.topK)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	l.logger.Debug("retrieved context", zap.Int("chunks", len(results)))

	fmt.Fprint(l.out, promptStyle.Render("Assistant: "))
	_, err = l.generator.ChatStream(ctx, llm.BuildPrompt(question, results), func(tok string) {
		fmt.Fprint(l.out, tok)
	})
	fmt.Fprintln(l.out)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	return nil
}

// isExit matches the quit words case-insensitively.
func isExit(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "end":
		return true
	}
	return false
}
