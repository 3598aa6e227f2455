// Package app assembles a ready-to-use searcher from a Config: cache store,
// authenticated rate-limited client, terminology service, vocabulary table.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sanonone/termgraph/internal/config"
	"github.com/sanonone/termgraph/pkg/cache"
	"github.com/sanonone/termgraph/pkg/client"
	"github.com/sanonone/termgraph/pkg/definitions"
	"github.com/sanonone/termgraph/pkg/similarity"
	"github.com/sanonone/termgraph/pkg/uts"
	"github.com/sanonone/termgraph/pkg/vocab"
)

// ErrMissingAPIKey is returned when no UMLS API key was configured.
var ErrMissingAPIKey = errors.New("no UMLS API key configured (set umls.api_key or " + config.EnvAPIKey + ")")

// App owns the long-lived components of a termgraph process.
type App struct {
	Config   config.Config
	Cache    cache.Store
	Client   *client.Client
	Service  *uts.Service
	Vocab    *vocab.Table
	Searcher *definitions.Searcher
	Logger   *slog.Logger
}

// New builds an App. The caller must Close it.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UMLS.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	table := vocab.Default()
	if cfg.VocabularyFile != "" {
		t, err := vocab.LoadTable(cfg.VocabularyFile)
		if err != nil {
			return nil, err
		}
		table = t
	}

	store, err := cache.Open(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.UMLS.Timeout}

	var auth client.Authenticator = client.APIKey(cfg.UMLS.APIKey)
	if cfg.UMLS.Auth == config.AuthTicket {
		tg := client.NewTicketGranter(cfg.UMLS.APIKey, httpClient)
		if cfg.UMLS.AuthURL != "" {
			tg.AuthURL = cfg.UMLS.AuthURL
		}
		auth = tg
	}

	opts := client.Options{
		BaseURL:              cfg.UMLS.BaseURL,
		Auth:                 auth,
		HTTPClient:           httpClient,
		Cache:                store,
		RateLimit:            cfg.UMLS.RateLimit,
		MaxAttempts:          cfg.UMLS.MaxAttempts,
		RetryInitialInterval: cfg.UMLS.RetryInitialInterval,
		RetryMaxInterval:     cfg.UMLS.RetryMaxInterval,
		Logger:               logger,
	}
	if cfg.UMLS.Breaker.Enabled {
		opts.Breaker = &client.BreakerSettings{
			Name:                "uts",
			ConsecutiveFailures: cfg.UMLS.Breaker.ConsecutiveFailures,
			OpenTimeout:         cfg.UMLS.Breaker.OpenTimeout,
		}
	}
	c, err := client.New(opts)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	svc := uts.NewService(c, uts.WithVersion(cfg.UMLS.Version), uts.WithLogger(logger))
	searcher := definitions.New(svc, table,
		definitions.WithLogger(logger),
		definitions.WithTopK(cfg.Search.TopK),
		definitions.WithDistance(DistanceByName(cfg.Search.Distance)),
	)

	logger.Info("termgraph ready",
		"base_url", cfg.UMLS.BaseURL,
		"version", cfg.UMLS.Version,
		"auth", cfg.UMLS.Auth,
		"cache", cfg.Cache.Backend,
	)

	return &App{
		Config:   cfg,
		Cache:    store,
		Client:   c,
		Service:  svc,
		Vocab:    table,
		Searcher: searcher,
		Logger:   logger,
	}, nil
}

// DistanceByName maps a configured distance name to its function. Unknown
// names fall back to Jaccard.
func DistanceByName(name string) similarity.DistanceFunc {
	if name == "cosine" {
		return similarity.CosineDistance
	}
	return similarity.JaccardDistance
}

// Close releases the cache store.
func (a *App) Close() error {
	if a.Cache == nil {
		return nil
	}
	return a.Cache.Close()
}
