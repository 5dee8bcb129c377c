package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/singleflight"
)

// FileStore serves the endpoints section of a YAML config file. The file is
// read on first use and cached until Reload.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	cached  *models.EndpointsConfig
	loaded  bool
	sfGroup singleflight.Group
}

// NewFileStore creates a store backed by the config file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// NewStaticStore creates a store that always returns the endpoints of cfg.
func NewStaticStore(cfg *Config) *FileStore {
	s := &FileStore{loaded: true}
	if cfg != nil {
		endpoints := cfg.Endpoints
		s.cached = &endpoints
	}
	return s
}

// Get returns the configured endpoints, or nil when no config file exists.
func (s *FileStore) Get(ctx context.Context) (*models.EndpointsConfig, error) {
	s.mu.RLock()
	if s.loaded {
		cached := s.cached
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.sfGroup.Do(s.path, func() (any, error) {
		return s.load()
	})
	if err != nil {
		return nil, err
	}
	endpoints, _ := v.(*models.EndpointsConfig)
	return endpoints, nil
}

// Reload drops the cached config so the next Get reads the file again.
func (s *FileStore) Reload() {
	if s.path == "" {
		return
	}
	s.mu.Lock()
	s.loaded = false
	s.cached = nil
	s.mu.Unlock()
}

func (s *FileStore) load() (*models.EndpointsConfig, error) {
	var endpoints *models.EndpointsConfig

	cfg, err := LoadFromFile(s.path)
	switch {
	case err == nil:
		endpoints = &cfg.Endpoints
		fiberlog.Debugf("Loaded %d custom endpoints from %s", len(endpoints.Custom), s.path)
	case errors.Is(err, fs.ErrNotExist):
		fiberlog.Warnf("Config file %s not found", s.path)
	default:
		return nil, fmt.Errorf("failed to load custom config: %w", err)
	}

	s.mu.Lock()
	s.cached = endpoints
	s.loaded = true
	s.mu.Unlock()

	return endpoints, nil
}
