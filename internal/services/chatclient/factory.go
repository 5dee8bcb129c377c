package chatclient

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"
	"github.com/Egham-7/custom-endpoint-proxy/internal/utils/clientcache"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Factory builds chat clients for resolved endpoint options. Underlying
// openai clients are shared between requests with identical connection settings.
type Factory struct {
	clients     *clientcache.Cache[*openai.Client]
	httpClients *clientcache.Cache[*http.Client]
}

func NewFactory(size int) *Factory {
	return &Factory{
		clients:     clientcache.NewCache[*openai.Client](size),
		httpClients: clientcache.NewCache[*http.Client](16),
	}
}

// New returns a Client bound to apiKey and opts.
func (f *Factory) New(apiKey string, opts *models.ClientOptions) (*Client, error) {
	if opts == nil {
		return nil, models.NewInternalError("client options are nil", nil)
	}
	if apiKey == "" {
		return nil, models.NewValidationError("API key cannot be empty", nil)
	}

	hash, err := configHash(apiKey, opts)
	if err != nil {
		return nil, fmt.Errorf("hash client config: %w", err)
	}

	oc, err := f.clients.GetOrCreate(hash, func() (*openai.Client, error) {
		fiberlog.Debugf("Creating chat client for %s (config hash: %s)", opts.ReverseProxyURL, hash[:8])
		return f.build(apiKey, opts)
	})
	if err != nil {
		return nil, err
	}

	return &Client{client: oc, opts: *opts}, nil
}

func (f *Factory) build(apiKey string, opts *models.ClientOptions) (*openai.Client, error) {
	httpClient, err := f.httpClients.GetOrCreate(opts.Proxy, func() (*http.Client, error) {
		return NewHTTPClient(opts.Proxy)
	})
	if err != nil {
		return nil, err
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	}
	if opts.ReverseProxyURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.ReverseProxyURL))
	}
	for key, value := range opts.Headers {
		reqOpts = append(reqOpts, option.WithHeader(key, value))
	}

	client := openai.NewClient(reqOpts...)
	return &client, nil
}

// configHash identifies the connection settings of a client without exposing the key.
func configHash(apiKey string, opts *models.ClientOptions) (string, error) {
	apiKeyHash := sha256.Sum256([]byte(apiKey))

	data, err := json.Marshal(struct {
		APIKeyHash string
		BaseURL    string
		Headers    map[string]string
		Proxy      string
	}{
		APIKeyHash: fmt.Sprintf("%x", apiKeyHash[:8]),
		BaseURL:    opts.ReverseProxyURL,
		Headers:    opts.Headers,
		Proxy:      opts.Proxy,
	})
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash[:16]), nil
}
