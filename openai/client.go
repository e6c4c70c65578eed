package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// EndOfSequence stops generation at the model's end marker when the backend
// is a raw instruction-tuned model served behind an OpenAI compatible API.
const EndOfSequence = "</s>"

// deterministicSeed pins sampling so identical prompts produce identical
// reports on backends that honour it.
const deterministicSeed = 42

var ErrEmptyCompletion = errors.New("openai: empty completion")

// GenerateOptions controls a single completion.
type GenerateOptions struct {
	MaxNewTokens  int
	Temperature   float32
	Deterministic bool
}

type Client struct {
	api            *openai.Client
	ChatModel      string
	EmbeddingModel string
}

// NewClient builds a client for the OpenAI API or any compatible server when
// baseURL is set.
func NewClient(key, baseURL, chatModel, embeddingModel string) *Client {
	cfg := openai.DefaultConfig(key)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		api:            openai.NewClientWithConfig(cfg),
		ChatModel:      chatModel,
		EmbeddingModel: embeddingModel,
	}
}

// Generate runs one chat completion for prompt and returns the trimmed text.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxNewTokens,
		Temperature: opts.Temperature,
		Stop:        []string{EndOfSequence},
	}
	if opts.Deterministic {
		// temperature 0 is dropped by omitempty and the server then samples at 1
		req.Temperature = math.SmallestNonzeroFloat32
		seed := deterministicSeed
		req.Seed = &seed
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}
