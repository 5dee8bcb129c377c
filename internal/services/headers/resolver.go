package headers

import (
	"context"
	"strings"
	"sync"

	"github.com/Egham-7/custom-endpoint-proxy/internal/config"
	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"golang.org/x/sync/errgroup"
)

// Strategy resolves one header template for the requesting user.
type Strategy interface {
	Resolve(ctx context.Context, template, userID string) (string, error)
}

// EnvStrategy expands ${VAR} placeholders from the environment.
type EnvStrategy struct{}

func (EnvStrategy) Resolve(_ context.Context, template, _ string) (string, error) {
	return config.ExtractEnvVariable(template), nil
}

// Resolver resolves header templates, dispatching each header to the strategy
// registered for its (case-insensitive) name or to the default strategy.
type Resolver struct {
	fallback   Strategy
	strategies map[string]Strategy
}

// NewResolver returns a Resolver that env-expands every header.
func NewResolver() *Resolver {
	return &Resolver{
		fallback:   EnvStrategy{},
		strategies: make(map[string]Strategy),
	}
}

// NewFromConfig registers the identity strategy described by cfg.
func NewFromConfig(cfg models.HeadersConfig, users UserFinder) *Resolver {
	r := NewResolver()
	if cfg.Identity != nil && users != nil {
		id := cfg.Identity
		r.Register(id.Header, &IdentityStrategy{
			Header:      id.Header,
			Users:       users,
			Placeholder: id.Placeholder,
			Fallback:    id.Fallback,
		})
	}
	return r
}

// Register binds a strategy to a header name. Not safe to call concurrently with Resolve.
func (r *Resolver) Register(header string, s Strategy) {
	r.strategies[strings.ToLower(header)] = s
}

func (r *Resolver) strategyFor(header string) Strategy {
	if s, ok := r.strategies[strings.ToLower(header)]; ok {
		return s
	}
	return r.fallback
}

// Resolve returns a new map with every template resolved. Headers are resolved
// concurrently; the first failure cancels the rest.
func (r *Resolver) Resolve(ctx context.Context, templates map[string]string, userID string) (map[string]string, error) {
	resolved := make(map[string]string, len(templates))
	if len(templates) == 0 {
		return resolved, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, template := range templates {
		name, template := name, template
		strategy := r.strategyFor(name)
		g.Go(func() error {
			value, err := strategy.Resolve(gctx, template, userID)
			if err != nil {
				return err
			}
			mu.Lock()
			resolved[name] = value
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}
