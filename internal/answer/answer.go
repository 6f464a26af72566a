// Package answer builds the generation prompt and strictly validates the model's reply.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/groundchat/models"
	"github.com/mohammad-safakhou/groundchat/provider"
)

// ErrGenerationFormat is returned when the generator output is not exactly
// the two-field answer object.
var ErrGenerationFormat = errors.New("generation output does not match the answer format")

const systemInstruction = `You are a research assistant that answers questions about web pages.
When the user message contains grounding content, base your answer on it and cite the source URL.
When the grounding is "none", answer from general knowledge and say that no page content was available.
Respond only with a JSON object of exactly this shape:
{"response": "<your answer>", "followUpQuestions": ["<question>", "..."]}
Do not add any other fields or text.`

const (
	noGrounding   = "none"
	emptyQuestion = "Summarize the referenced page."
)

// Grounding is the page content an answer is based on.
type Grounding struct {
	Source     string   `json:"source"`
	Paragraphs []string `json:"paragraphs"`
}

type Orchestrator struct {
	generator provider.Generator
	logger    *zap.Logger
}

func New(generator provider.Generator, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{generator: generator, logger: logger.With(zap.String("component", "answer"))}
}

// Answer asks the generator once and validates its output. Generator failures
// are returned wrapped as-is; malformed output wraps ErrGenerationFormat.
func (o *Orchestrator) Answer(ctx context.Context, userText string, grounding *Grounding, history []models.ConversationTurn) (models.GroundedAnswer, error) {
	prompt, err := BuildPrompt(userText, grounding, history)
	if err != nil {
		return models.GroundedAnswer{}, err
	}
	raw, err := o.generator.Complete(ctx, prompt)
	if err != nil {
		return models.GroundedAnswer{}, fmt.Errorf("generate: %w", err)
	}
	ans, err := Parse(raw)
	if err != nil {
		o.logger.Warn("rejected generation output", zap.Error(err), zap.Int("bytes", len(raw)))
		return models.GroundedAnswer{}, err
	}
	return ans, nil
}

// BuildPrompt assembles the instruction frame, prior turns and the user message
// carrying the question and the serialised grounding block.
func BuildPrompt(userText string, grounding *Grounding, history []models.ConversationTurn) (models.Prompt, error) {
	question := strings.TrimSpace(userText)
	if question == "" {
		question = emptyQuestion
	}

	block := noGrounding
	if grounding != nil {
		b, err := json.Marshal(grounding)
		if err != nil {
			return models.Prompt{}, fmt.Errorf("encode grounding: %w", err)
		}
		block = string(b)
	}

	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nGrounding: ")
	sb.WriteString(block)

	return models.Prompt{
		System:  systemInstruction,
		History: history,
		User:    sb.String(),
	}, nil
}

type wireAnswer struct {
	Response          *string   `json:"response"`
	FollowUpQuestions *[]string `json:"followUpQuestions"`
}

// Parse decodes raw as a GroundedAnswer. Unknown fields, trailing data, a
// missing or blank response and a missing followUpQuestions list are rejected.
func Parse(raw string) (models.GroundedAnswer, error) {
	if strings.TrimSpace(raw) == "" {
		return models.GroundedAnswer{}, fmt.Errorf("%w: empty output", ErrGenerationFormat)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	var w wireAnswer
	if err := dec.Decode(&w); err != nil {
		return models.GroundedAnswer{}, fmt.Errorf("%w: %v", ErrGenerationFormat, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return models.GroundedAnswer{}, fmt.Errorf("%w: trailing data after object", ErrGenerationFormat)
	}

	switch {
	case w.Response == nil:
		return models.GroundedAnswer{}, fmt.Errorf("%w: missing response", ErrGenerationFormat)
	case strings.TrimSpace(*w.Response) == "":
		return models.GroundedAnswer{}, fmt.Errorf("%w: empty response", ErrGenerationFormat)
	case w.FollowUpQuestions == nil:
		return models.GroundedAnswer{}, fmt.Errorf("%w: missing followUpQuestions", ErrGenerationFormat)
	}

	return models.GroundedAnswer{
		Response:          *w.Response,
		FollowUpQuestions: *w.FollowUpQuestions,
	}, nil
}
