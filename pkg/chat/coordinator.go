// Package chat drives one question-answering exchange end to end: admit
// the caller, retrieve context passages, stream the generated answer and
// reconcile a usage figure.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/perbu/docchat/pkg/generator"
	"github.com/perbu/docchat/pkg/index"
	"go.uber.org/zap"
)

const systemInstruction = "You are a helpful assistant that answers questions based on provided context."

// Event is one frame of the exchange's output sequence.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Usage   *Usage `json:"usage,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Usage carries the token accounting for a completed exchange.
type Usage struct {
	TotalTokens int `json:"total_tokens"`
}

// EmitFunc delivers one event to the caller. A non-nil error means the
// caller can no longer receive events.
type EmitFunc func(Event) error

// Retriever answers top-k passage lookups.
type Retriever interface {
	Query(ctx context.Context, question string, k int) ([]index.Passage, error)
}

// Admitter decides whether a client may start an exchange now.
type Admitter interface {
	Allow(clientID string, now time.Time) bool
}

// Coordinator runs exchanges against a shared retriever, admitter and
// generation provider.
type Coordinator struct {
	admitter Admitter
	retr     Retriever
	gen      generator.Generator
	topK     int
	logger   *zap.Logger
}

// NewCoordinator creates a coordinator. topK is the number of passages
// retrieved as context for every question.
func NewCoordinator(admitter Admitter, retr Retriever, gen generator.Generator, topK int, logger *zap.Logger) (*Coordinator, error) {
	if admitter == nil {
		return nil, fmt.Errorf("admitter cannot be nil")
	}
	if retr == nil {
		return nil, fmt.Errorf("retriever cannot be nil")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		admitter: admitter,
		retr:     retr,
		gen:      gen,
		topK:     topK,
		logger:   logger,
	}, nil
}

// Run performs one exchange. Events are pushed through emit in provider
// arrival order; the done (or error) event is always last. An error
// return before the first emit means no event was sent and the caller
// should report a request-level failure instead.
func (c *Coordinator) Run(ctx context.Context, clientID, question string, emit EmitFunc) error {
	if !c.admitter.Allow(clientID, time.Now()) {
		return fmt.Errorf("%w: client %s", ErrRateLimited, clientID)
	}

	passages, err := c.retr.Query(ctx, question, c.topK)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}
	prompt := composePrompt(passages, question)

	stream, err := c.gen.Stream(ctx, systemInstruction, prompt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGenerationInterrupted, err)
	}
	defer stream.Close()

	var transcript strings.Builder
	emitted := false

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			genErr := fmt.Errorf("%w: %w", ErrGenerationInterrupted, err)
			if ctx.Err() != nil {
				// Caller is gone; nothing left to notify.
				return genErr
			}
			if emitted {
				c.logger.Warn("provider stream failed mid-answer",
					zap.String("client", clientID), zap.Error(err))
				_ = emit(Event{Type: "error", Detail: "generation interrupted"})
			}
			return genErr
		}
		if delta == "" {
			continue
		}

		transcript.WriteString(delta)
		if err := emit(Event{Type: "content", Content: delta}); err != nil {
			return fmt.Errorf("%w: %w", ErrGenerationInterrupted, err)
		}
		emitted = true
	}

	if ctx.Err() != nil {
		// Cancelled between the last increment and end of stream. Skip
		// finalization entirely.
		return fmt.Errorf("%w: %w", ErrGenerationInterrupted, ctx.Err())
	}

	usage := c.totalTokens(ctx, clientID, prompt, transcript.String())
	return emit(Event{Type: "done", Usage: &Usage{TotalTokens: usage}})
}

// totalTokens asks the provider for the exchange's token count. Best
// effort: a failure degrades to zero rather than failing the answer the
// caller already holds.
func (c *Coordinator) totalTokens(ctx context.Context, clientID, prompt, answer string) int {
	total, err := c.gen.CountTokens(ctx, systemInstruction, prompt, answer)
	if err != nil {
		c.logger.Warn("usage accounting unavailable, reporting zero",
			zap.String("client", clientID), zap.Error(err))
		return 0
	}
	return total
}

// composePrompt joins the retrieved passages, in retrieval order, with
// the verbatim question.
func composePrompt(passages []index.Passage, question string) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Text
	}
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(parts, "\n\n"), question)
}
