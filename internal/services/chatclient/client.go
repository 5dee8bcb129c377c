package chatclient

import (
	"context"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/ssestream"
)

// Client issues chat completions against one resolved custom endpoint.
type Client struct {
	client *openai.Client
	opts   models.ClientOptions
}

// Options returns the options the client was built with.
func (c *Client) Options() models.ClientOptions {
	return c.opts
}

// StreamRate is the delay between streamed chunks, zero when unpaced.
func (c *Client) StreamRate() time.Duration {
	if c.opts.StreamRate == nil || *c.opts.StreamRate <= 0 {
		return 0
	}
	return time.Duration(*c.opts.StreamRate) * time.Millisecond
}

func (c *Client) ChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	c.applyModelOptions(&params)
	return c.client.Chat.Completions.New(ctx, params, c.requestOptions()...)
}

func (c *Client) ChatCompletionStream(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk] {
	c.applyModelOptions(&params)
	return c.client.Chat.Completions.NewStreaming(ctx, params, c.requestOptions()...)
}

func (c *Client) applyModelOptions(params *openai.ChatCompletionNewParams) {
	mo := c.opts.ModelOptions
	if mo.Model != "" {
		params.Model = mo.Model
	}
	if mo.Temperature != nil {
		params.Temperature = openai.Float(*mo.Temperature)
	}
	if mo.TopP != nil {
		params.TopP = openai.Float(*mo.TopP)
	}
	if mo.MaxTokens != nil {
		params.MaxTokens = openai.Int(*mo.MaxTokens)
	}
	if mo.User != "" {
		params.User = openai.String(mo.User)
	}
}

// requestOptions rewrites the request body with the endpoint's addParams and dropParams.
func (c *Client) requestOptions() []option.RequestOption {
	opts := make([]option.RequestOption, 0, len(c.opts.AddParams)+len(c.opts.DropParams))
	for key, value := range c.opts.AddParams {
		opts = append(opts, option.WithJSONSet(key, value))
	}
	for _, key := range c.opts.DropParams {
		opts = append(opts, option.WithJSONDel(key))
	}
	return opts
}
