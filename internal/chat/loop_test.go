package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akshayavb99/offline-rag-cli/internal/domain"
)

type fakeRetriever struct {
	calls   []string
	results []domain.SearchResult
	err     error
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _ int) ([]domain.SearchResult, error) {
	f.calls = append(f.calls, query)
	return f.results, f.err
}

type fakeGenerator struct {
	calls  []string
	tokens []string
	err    error
}

func (f *fakeGenerator) ChatStream(_ context.Context, prompt string, onToken func(string)) (string, error) {
	f.calls = append(f.calls, prompt)
	if f.err != nil {
		return "", f.err
	}
	var reply strings.Builder
	for _, tok := range f.tokens {
		reply.WriteString(tok)
		onToken(tok)
	}
	return reply.String(), nil
}

func runLoop(t *testing.T, input string, r Retriever, g Generator) string {
	t.Helper()
	var out bytes.Buffer
	loop := New(r, g, zap.NewNop(), 5, strings.NewReader(input), &out)
	require.NoError(t, loop.Run(context.Background()))
	return out.String()
}

func TestRun_AnswersAndExits(t *testing.T) {
	r := &fakeRetriever{results: []domain.SearchResult{
		{Chunk: domain.Chunk{Text: "The sky is blue."}, Score: 0.9},
	}}
	g := &fakeGenerator{tokens: []string{"It is ", "blue."}}

	out := runLoop(t, "What color is the sky?\nexit\n", r, g)

	assert.Equal(t, []string{"What color is the sky?"}, r.calls)
	require.Len(t, g.calls, 1)
	assert.Contains(t, g.calls[0], "The sky is blue.")
	assert.Contains(t, g.calls[0], "What color is the sky?")
	assert.Contains(t, out, "It is blue.")
	assert.Contains(t, out, "Goodbye!")
}

func TestRun_ExitWordsSkipPipeline(t *testing.T) {
	for _, word := range []string{"exit", "end", "EXIT", "End"} {
		t.Run(word, func(t *testing.T) {
			r := &fakeRetriever{}
			g := &fakeGenerator{}
			out := runLoop(t, word+"\n", r, g)

			assert.Empty(t, r.calls, "exit must not hit the retriever")
			assert.Empty(t, g.calls, "exit must not hit the model")
			assert.Contains(t, out, "Goodbye!")
		})
	}
}

func TestRun_EmptyInputReprompts(t *testing.T) {
	r := &fakeRetriever{}
	g := &fakeGenerator{tokens: []string{"hi"}}

	runLoop(t, "\n   \nexit\n", r, g)
	assert.Empty(t, r.calls)
}

func TestRun_ClosedInputEndsLoop(t *testing.T) {
	out := runLoop(t, "", &fakeRetriever{}, &fakeGenerator{})
	assert.Contains(t, out, "You:")
}

func TestRun_TurnErrorContinuesLoop(t *testing.T) {
	r := &fakeRetriever{err: errors.New("store offline")}
	g := &fakeGenerator{}

	out := runLoop(t, "question one\nquestion two\nexit\n", r, g)

	assert.Len(t, r.calls, 2, "loop keeps going after a failed turn")
	assert.Contains(t, out, "store offline")
	assert.Contains(t, out, "Goodbye!")
}

func TestRun_GeneratorErrorIsReported(t *testing.T) {
	r := &fakeRetriever{}
	g := &fakeGenerator{err: errors.New("model timed out")}

	out := runLoop(t, "hello\nexit\n", r, g)
	assert.Contains(t, out, "model timed out")
}

func TestRun_NoResultsStillAsksModel(t *testing.T) {
	r := &fakeRetriever{}
	g := &fakeGenerator{tokens: []string{"I don't know."}}

	out := runLoop(t, "anything?\nexit\n", r, g)

	require.Len(t, g.calls, 1)
	assert.Equal(t, "anything?", g.calls[0], "no context means the question goes through unchanged")
	assert.Contains(t, out, "I don't know.")
}

func TestRun_CancelledContextStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	loop := New(&fakeRetriever{}, &fakeGenerator{}, zap.NewNop(), 5, strings.NewReader("question\nexit\n"), &out)
	assert.Error(t, loop.Run(ctx))
}
