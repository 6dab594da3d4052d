package generator

import "context"

// Stream delivers a completion as a sequence of text increments.
// Recv returns io.EOF when the provider has finished.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Generator produces chat completions from a system instruction and a
// user prompt.
type Generator interface {
	// Stream opens an incremental completion.
	Stream(ctx context.Context, system, user string) (Stream, error)
	// CountTokens runs one non-streamed completion over the full
	// exchange, including the answer already produced, and returns the
	// provider's total token count. The generated text is discarded.
	CountTokens(ctx context.Context, system, user, answer string) (int, error)
}
