package modelfetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/tokenconfig"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// Provider prices are quoted per token; token configs are per million tokens.
const pricePerMillion = 1_000_000

// fetchTimeout bounds a shared listing call, which outlives any single caller.
const fetchTimeout = 30 * time.Second

// FetchParams carries resolved credentials for one model listing call.
type FetchParams struct {
	APIKey  string
	BaseURL string
	Name    string
	UserID  string
	// TokenKey is the cache key the derived token config is stored under.
	TokenKey string
	Headers  map[string]string
	// UserIDQuery appends ?user=<UserID> to the listing request.
	UserIDQuery bool
}

// Fetcher lists an endpoint's models and caches their token metadata.
type Fetcher struct {
	cache      tokenconfig.Cache
	ttl        time.Duration
	httpClient *http.Client
	sfGroup    singleflight.Group
}

func NewFetcher(cache tokenconfig.Cache, ttl time.Duration, httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{cache: cache, ttl: ttl, httpClient: httpClient}
}

// Fetch lists models from {BaseURL}/models and stores the derived token config
// under TokenKey. Concurrent calls for the same key share one request; a
// caller that gives up does not cancel it for the others.
func (f *Fetcher) Fetch(ctx context.Context, p FetchParams) ([]string, error) {
	key := p.TokenKey
	if key == "" {
		key = p.Name
	}

	ch := f.sfGroup.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return f.fetch(fetchCtx, p, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			fiberlog.Debugf("Model fetch for %s shared with a concurrent caller", key)
		}
		ids, _ := res.Val.([]string)
		return ids, nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, p FetchParams, key string) ([]string, error) {
	if p.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required to fetch models for %s", p.Name)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(p.APIKey),
		option.WithBaseURL(p.BaseURL),
		option.WithHTTPClient(f.httpClient),
		option.WithMaxRetries(0),
	}
	for name, value := range p.Headers {
		opts = append(opts, option.WithHeader(name, value))
	}
	if p.UserIDQuery && p.UserID != "" {
		opts = append(opts, option.WithQuery("user", p.UserID))
	}

	client := openai.NewClient(opts...)
	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models for %s: %w", p.Name, err)
	}

	ids := make([]string, 0, len(page.Data))
	tokenConfig := make(models.TokenConfig, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
		if rate, ok := tokenRate(m.RawJSON()); ok {
			tokenConfig[m.ID] = rate
		}
	}

	if len(tokenConfig) > 0 {
		if err := f.cache.Set(ctx, key, tokenConfig, f.ttl); err != nil {
			return nil, fmt.Errorf("cache token config for %s: %w", key, err)
		}
	}

	fiberlog.Infof("Fetched %d models (%d priced) for %s", len(ids), len(tokenConfig), p.Name)
	return ids, nil
}

// tokenRate reads the OpenRouter-style extras of one model entry.
func tokenRate(raw string) (models.TokenRate, bool) {
	pricing := gjson.Get(raw, "pricing")
	contextLength := gjson.Get(raw, "context_length")
	if !pricing.Exists() && !contextLength.Exists() {
		return models.TokenRate{}, false
	}

	return models.TokenRate{
		Prompt:     pricing.Get("prompt").Float() * pricePerMillion,
		Completion: pricing.Get("completion").Float() * pricePerMillion,
		Context:    contextLength.Int(),
	}, true
}
