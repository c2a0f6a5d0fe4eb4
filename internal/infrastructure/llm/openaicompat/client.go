// Package openaicompat talks to an OpenAI-compatible inference endpoint for
// embeddings and chat completions.
package openaicompat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lexgo/statute-consult/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := e.client.call(ctx, "/embeddings", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d inputs", len(response.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embed returned out-of-range index %d", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question, history, fragments string) (string, error) {
	return g.client.complete(ctx, buildAnswerPrompt(question, history, fragments))
}

func (g *Generator) GenerateSummary(ctx context.Context, conversation, keyPoints string) (string, error) {
	return g.client.complete(ctx, buildSummaryPrompt(conversation, keyPoints))
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model": c.genModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.1,
		"stream":      false,
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.call(ctx, "/chat/completions", request, &response, "generate"); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("generate returned no choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func (c *Client) call(ctx context.Context, path string, payload, out any, operation string) error {
	post := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "llm."+operation, post, classifyUpstreamError)
	} else {
		err = post(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}
