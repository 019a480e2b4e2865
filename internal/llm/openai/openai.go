// Package openai implements the llm interfaces on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/outreachkit/prospector/internal/llm"
	"github.com/outreachkit/prospector/internal/prospect"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the API base URL. Useful for proxies/testing.
	BaseURL string
}

type Client struct {
	client oai.Client
	model  string
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("openai model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
	}

	return &Client{
		client: oai.NewClient(opts...),
		model:  strings.TrimSpace(cfg.Model),
	}, nil
}

func (c *Client) DraftEmail(ctx context.Context, p prospect.Prospect, style llm.Style) (string, error) {
	return c.complete(ctx, llm.DraftPrompt(p, style))
}

func (c *Client) SummarizeTitle(ctx context.Context, description string) (string, error) {
	title, err := c.complete(ctx, llm.TitlePrompt(description))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(title), nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{oai.UserMessage(prompt)},
	})
	if err != nil {
		return "", classifyErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", errors.New("openai: empty completion")
	}
	return text, nil
}

// classifyErr wraps retryable failures so the draft worker pool retries them
// with backoff.
func classifyErr(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode/100 == 5 {
			return &llm.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &llm.TransientError{Err: err}
	}
	return err
}
