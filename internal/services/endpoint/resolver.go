package endpoint

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/config"
	"github.com/Egham-7/custom-endpoint-proxy/internal/models"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/chatclient"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/modelfetch"

	"dario.cat/mergo"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type ConfigStore interface {
	Get(ctx context.Context) (*models.EndpointsConfig, error)
}

type UserKeyStore interface {
	CheckExpiry(expiresAt time.Time, endpoint string) error
	GetValues(ctx context.Context, userID, name string) (*models.UserKeyValues, error)
}

type HeaderResolver interface {
	Resolve(ctx context.Context, templates map[string]string, userID string) (map[string]string, error)
}

type TokenConfigCache interface {
	Get(ctx context.Context, key string) (models.TokenConfig, bool, error)
}

type ModelFetcher interface {
	Fetch(ctx context.Context, p modelfetch.FetchParams) ([]string, error)
}

type ClientFactory interface {
	New(apiKey string, opts *models.ClientOptions) (*chatclient.Client, error)
}

// Dependencies are the collaborators a Resolver reads from.
type Dependencies struct {
	Configs ConfigStore
	Keys    UserKeyStore
	Headers HeaderResolver
	Cache   TokenConfigCache
	Fetcher ModelFetcher
	Factory ClientFactory
}

// ResolveRequest identifies the endpoint and the requesting user.
type ResolveRequest struct {
	Endpoint string
	UserID   string
	// ExpiresAt is the client's cached expiry of a user-provided credential.
	ExpiresAt *time.Time
}

// Result is a ready client and the API key it was built with.
type Result struct {
	Client *chatclient.Client
	APIKey string
}

// Resolver assembles a chat client for a custom endpoint per request.
type Resolver struct {
	deps      Dependencies
	global    models.GlobalOptions
	fetchable map[string]bool
}

// NewResolver creates a Resolver. fetchTokenConfig names the endpoints
// (case-insensitive) whose token metadata may be fetched from the provider.
func NewResolver(deps Dependencies, global models.GlobalOptions, fetchTokenConfig []string) *Resolver {
	fetchable := make(map[string]bool, len(fetchTokenConfig))
	for _, name := range fetchTokenConfig {
		fetchable[strings.ToLower(name)] = true
	}
	return &Resolver{deps: deps, global: global, fetchable: fetchable}
}

// credentials is the per-request outcome of resolving an endpoint's secrets.
type credentials struct {
	endpoint     *models.CustomEndpointConfig
	apiKey       string
	baseURL      string
	headers      map[string]string
	userProvided bool
	all          *models.AllEndpointsConfig
}

// Resolve builds the client for req. overrides are applied last and may be nil.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest, overrides *models.ClientOptions) (*Result, error) {
	creds, err := r.resolveCredentials(ctx, req)
	if err != nil {
		return nil, err
	}
	ep := creds.endpoint

	tokenConfig, err := r.tokenConfig(ctx, req, creds)
	if err != nil {
		return nil, err
	}

	opts, err := r.clientOptions(creds, tokenConfig, overrides)
	if err != nil {
		return nil, err
	}

	client, err := r.deps.Factory.New(creds.apiKey, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", ep.Name, err)
	}

	return &Result{Client: client, APIKey: creds.apiKey}, nil
}

// ListModels resolves credentials for req and returns the endpoint's models.
// A failed provider listing falls back to the configured defaults.
func (r *Resolver) ListModels(ctx context.Context, req ResolveRequest) ([]string, error) {
	creds, err := r.resolveCredentials(ctx, req)
	if err != nil {
		return nil, err
	}
	ep := creds.endpoint

	if !ep.Models.Fetch {
		return ep.Models.Default, nil
	}

	ids, err := r.deps.Fetcher.Fetch(ctx, r.fetchParams(req, creds))
	if err != nil {
		fiberlog.Warnf("Failed to fetch models for %s, using defaults: %v", ep.Name, err)
		return ep.Models.Default, nil
	}
	if len(ids) == 0 {
		return ep.Models.Default, nil
	}
	return ids, nil
}

func (r *Resolver) resolveCredentials(ctx context.Context, req ResolveRequest) (*credentials, error) {
	if req.Endpoint == "" || req.UserID == "" {
		return nil, models.NewValidationError("endpoint and user are required", nil)
	}

	cfg, err := r.deps.Configs.Get(ctx)
	if err != nil {
		return nil, models.NewInternalError("failed to load custom config", err)
	}
	if cfg == nil {
		return nil, models.NewConfigNotFoundError(req.Endpoint)
	}

	ep, ok := cfg.FindCustom(req.Endpoint)
	if !ok {
		return nil, models.NewEndpointNotFoundError(req.Endpoint)
	}

	apiKey := config.ExtractEnvVariable(ep.APIKey)
	baseURL := config.ExtractEnvVariable(ep.BaseURL)
	if config.HasUnresolvedPlaceholder(apiKey) {
		return nil, models.NewMissingCredentialTemplateError(ep.Name, "API key")
	}
	if config.HasUnresolvedPlaceholder(baseURL) {
		return nil, models.NewMissingCredentialTemplateError(ep.Name, "base URL")
	}

	headers, err := r.deps.Headers.Resolve(ctx, ep.Headers, req.UserID)
	if err != nil {
		return nil, err
	}

	userProvidesKey := models.IsUserProvided(apiKey)
	userProvidesURL := models.IsUserProvided(baseURL)
	userProvided := userProvidesKey || userProvidesURL

	if userProvided {
		if req.ExpiresAt != nil {
			if err := r.deps.Keys.CheckExpiry(*req.ExpiresAt, ep.Name); err != nil {
				return nil, err
			}
		}

		values, err := r.deps.Keys.GetValues(ctx, req.UserID, ep.Name)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) {
				return nil, err
			}
			return nil, models.NewInternalError("failed to read user key", err)
		}

		if userProvidesKey {
			apiKey = values.APIKey
			if apiKey == "" {
				return nil, models.NewMissingUserKeyError(ep.Name)
			}
		}
		if userProvidesURL {
			baseURL = values.BaseURL
			if baseURL == "" {
				return nil, models.NewMissingBaseURLError(ep.Name)
			}
		}
	}

	if apiKey == "" {
		return nil, models.NewCredentialNotConfiguredError(ep.Name, "API key")
	}
	if baseURL == "" {
		return nil, models.NewCredentialNotConfiguredError(ep.Name, "base URL")
	}

	return &credentials{
		endpoint:     ep,
		apiKey:       apiKey,
		baseURL:      baseURL,
		headers:      headers,
		userProvided: userProvided,
		all:          cfg.All,
	}, nil
}

// TokenKey is the cache key for an endpoint's token metadata. Users share an
// entry unless their own credentials decide which models they can see.
func TokenKey(ep *models.CustomEndpointConfig, userID string, userProvided bool) string {
	if ep.HasStaticTokenConfig() || !userProvided {
		return ep.Name
	}
	return ep.Name + ":" + userID
}

func (r *Resolver) tokenConfig(ctx context.Context, req ResolveRequest, creds *credentials) (models.TokenConfig, error) {
	ep := creds.endpoint
	if ep.HasStaticTokenConfig() {
		return ep.TokenConfig, nil
	}
	if !r.fetchable[strings.ToLower(ep.Name)] || !ep.Models.Fetch {
		return nil, nil
	}

	key := TokenKey(ep, req.UserID, creds.userProvided)
	cached, ok := r.cachedTokenConfig(ctx, key)
	if ok {
		return cached, nil
	}

	fiberlog.Debugf("Token config for %s not cached, fetching models", key)
	if _, err := r.deps.Fetcher.Fetch(ctx, r.fetchParams(req, creds)); err != nil {
		return nil, models.NewModelFetchError(ep.Name, err)
	}

	cached, _ = r.cachedTokenConfig(ctx, key)
	return cached, nil
}

func (r *Resolver) cachedTokenConfig(ctx context.Context, key string) (models.TokenConfig, bool) {
	cached, ok, err := r.deps.Cache.Get(ctx, key)
	if err != nil {
		fiberlog.Warnf("Token config cache read for %s failed: %v", key, err)
		return nil, false
	}
	return cached, ok
}

func (r *Resolver) fetchParams(req ResolveRequest, creds *credentials) modelfetch.FetchParams {
	return modelfetch.FetchParams{
		APIKey:      creds.apiKey,
		BaseURL:     creds.baseURL,
		Name:        creds.endpoint.Name,
		UserID:      req.UserID,
		TokenKey:    TokenKey(creds.endpoint, req.UserID, creds.userProvided),
		Headers:     creds.headers,
		UserIDQuery: creds.endpoint.Models.UserIDQuery,
	}
}

// cloneInt copies p so merging never writes through to shared config.
func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneParams deep-copies nested maps and slices, since mergo merges map
// values recursively and would otherwise write into the endpoint config.
func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneParams(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// streamRate prefers the currently loaded endpoints.all over the startup value
// so a reload takes effect without restarting.
func (r *Resolver) streamRate(creds *credentials) *int {
	if creds.all != nil {
		return cloneInt(creds.all.StreamRate)
	}
	return cloneInt(r.global.StreamRate)
}

// clientOptions layers endpoint settings, then process-wide options, then
// caller overrides. Non-zero fields of a later layer win; maps merge per key.
func (r *Resolver) clientOptions(creds *credentials, tokenConfig models.TokenConfig, overrides *models.ClientOptions) (*models.ClientOptions, error) {
	ep := creds.endpoint

	opts := models.ClientOptions{
		ReverseProxyURL:     creds.baseURL,
		Headers:             creds.headers,
		AddParams:           cloneParams(ep.AddParams),
		DropParams:          slices.Clone(ep.DropParams),
		TitleConvo:          ep.TitleConvo,
		TitleModel:          ep.TitleModel,
		ForcePrompt:         ep.ForcePrompt,
		SummaryModel:        ep.SummaryModel,
		ModelDisplayLabel:   ep.ModelDisplayLabel,
		TitleMethod:         ep.TitleMethod,
		DirectEndpoint:      ep.DirectEndpoint,
		TitleMessageRole:    ep.TitleMessageRole,
		StreamRate:          cloneInt(ep.StreamRate),
		EndpointTokenConfig: maps.Clone(tokenConfig),
	}
	if opts.TitleMethod == "" {
		opts.TitleMethod = models.DefaultTitleMethod
	}
	if ep.Summarize {
		opts.ContextStrategy = models.ContextStrategySummarize
	}

	global := models.ClientOptions{
		StreamRate: r.streamRate(creds),
		Proxy:      r.global.Proxy,
	}
	if err := mergo.Merge(&opts, global, mergo.WithOverride); err != nil {
		return nil, models.NewInternalError("failed to apply global options", err)
	}

	if overrides != nil {
		caller := *overrides
		caller.StreamRate = cloneInt(overrides.StreamRate)
		caller.AddParams = cloneParams(overrides.AddParams)
		caller.DropParams = slices.Clone(overrides.DropParams)
		caller.Headers = maps.Clone(overrides.Headers)
		if err := mergo.Merge(&opts, caller, mergo.WithOverride); err != nil {
			return nil, models.NewInternalError("failed to apply client overrides", err)
		}
	}

	return &opts, nil
}
