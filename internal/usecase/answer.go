package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"

	"paperrag/internal/domain"
	"paperrag/internal/port"
)

const (
	// FallbackAnswer is returned without calling the model when nothing was retrieved.
	FallbackAnswer = "I could not find relevant content in the indexed papers."
	// UnknownAnswer is what the model is told to say when the context is insufficient.
	UnknownAnswer = "I don't know based on the indexed papers."
	// EmptyAnswer replaces an empty model reply.
	EmptyAnswer = "No answer returned."
)

//go:embed templates/*.txt
var promptTemplates embed.FS

var answerPrompt = template.Must(
	template.New("answer_prompt.txt").
		Funcs(template.FuncMap{"context": BuildContext}).
		ParseFS(promptTemplates, "templates/answer_prompt.txt"),
)

type promptData struct {
	Question string
	Unknown  string
	Sources  []domain.ScoredChunk
}

// AnswerComposer turns retrieved chunks into a grounded answer.
type AnswerComposer struct {
	llm port.LLM
}

func NewAnswerComposer(llm port.LLM) *AnswerComposer {
	return &AnswerComposer{llm: llm}
}

// Compose asks the model to answer question from docs only. The returned
// answer carries the docs that were placed in the prompt.
func (c *AnswerComposer) Compose(ctx context.Context, question string, docs []domain.ScoredChunk) (domain.Answer, error) {
	if len(docs) == 0 {
		return domain.Answer{Text: FallbackAnswer, Sources: []domain.ScoredChunk{}}, nil
	}

	prompt, err := BuildPrompt(question, docs)
	if err != nil {
		return domain.Answer{}, err
	}
	log.Debug().Str("model", c.llm.ModelName()).Int("prompt_chars", len(prompt)).Msg("generating answer")

	reply, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}
	if reply == "" {
		reply = EmptyAnswer
	}
	return domain.Answer{Text: reply, Sources: docs}, nil
}

// BuildPrompt renders the answering instructions around the context blocks.
func BuildPrompt(question string, docs []domain.ScoredChunk) (string, error) {
	var buf bytes.Buffer
	err := answerPrompt.Execute(&buf, promptData{
		Question: question,
		Unknown:  UnknownAnswer,
		Sources:  docs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// BuildContext numbers each chunk in rank order, starting at 1.
func BuildContext(docs []domain.ScoredChunk) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = fmt.Sprintf("[%d] Source: %s | Page: %d\n%s", i+1, d.Chunk.SourceFile, d.Chunk.Page, d.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}
