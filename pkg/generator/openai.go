package generator

import (
	"context"
	"errors"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator uses the OpenAI chat completions API
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates an OpenAI chat completion generator
func NewOpenAIGenerator(model string) (*OpenAIGenerator, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	return &OpenAIGenerator{
		client: openai.NewClient(key),
		model:  model,
	}, nil
}

// Stream opens a token-by-token completion for the given prompt
func (g *OpenAIGenerator) Stream(ctx context.Context, system, user string) (Stream, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Stream: true,
	})
	if err != nil {
		return nil, errors.New("OpenAI API error: " + err.Error())
	}

	return &openaiStream{inner: stream}, nil
}

// CountTokens re-sends the exchange without streaming to obtain the
// provider's usage accounting
func (g *OpenAIGenerator) CountTokens(ctx context.Context, system, user, answer string) (int, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
			{Role: openai.ChatMessageRoleAssistant, Content: answer},
		},
	})
	if err != nil {
		return 0, errors.New("OpenAI API error: " + err.Error())
	}

	return resp.Usage.TotalTokens, nil
}

type openaiStream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next text increment, or io.EOF at end of stream
func (s *openaiStream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

// Close releases the underlying HTTP stream
func (s *openaiStream) Close() error {
	return s.inner.Close()
}
