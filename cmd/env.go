package main

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quizlens/internal/analysis"
	"github.com/sells-group/quizlens/internal/config"
	"github.com/sells-group/quizlens/internal/extract"
	"github.com/sells-group/quizlens/internal/gateway"
	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/internal/registry"
	"github.com/sells-group/quizlens/internal/relay"
	"github.com/sells-group/quizlens/internal/session"
	"github.com/sells-group/quizlens/internal/store"
)

// appEnv holds the store, registry and LLM plumbing shared by commands.
type appEnv struct {
	Store    store.Store
	Registry *registry.Registry
	Gateway  *gateway.Gateway
	Analyzer *analysis.Analyzer
	Settings *settingsSource

	prefsMu  sync.Mutex
	redis    *redis.Client
	memPrefs map[string]*session.MemoryPreferences
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured settings store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// initEnv validates config for mode and builds the environment. Callers
// should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	reg, err := initRegistry(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	gw := gateway.New(initRelay(), gateway.Options{
		BaseURLs: map[model.Provider]string{
			model.ProviderOpenAI:   cfg.Providers.OpenAI.BaseURL,
			model.ProviderClaude:   cfg.Providers.Claude.BaseURL,
			model.ProviderGrok:     cfg.Providers.Grok.BaseURL,
			model.ProviderDeepSeek: cfg.Providers.DeepSeek.BaseURL,
		},
		RequestsPerSecond: cfg.Gateway.RequestsPerSecond,
	})

	zap.L().Debug("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("default_model", reg.Default()),
		zap.Bool("remote_relay", cfg.Relay.URL != ""),
	)

	return &appEnv{
		Store:    st,
		Registry: reg,
		Gateway:  gw,
		Analyzer: analysis.NewAnalyzer(gw),
		Settings: &settingsSource{store: st, providers: cfg.Providers},
	}, nil
}

// initRegistry builds the model table from the built-ins plus the
// optional override file. A default saved in the store beats config.
func initRegistry(ctx context.Context, st store.Store) (*registry.Registry, error) {
	tables := [][]model.ModelDescriptor{}
	if cfg.Models.File != "" {
		extra, err := registry.LoadFile(cfg.Models.File)
		if err != nil {
			return nil, err
		}
		tables = append(tables, extra)
	}
	tables = append(tables, registry.Builtin())
	reg := registry.New(cfg.Models.Default, tables...)

	saved, err := st.GetSettings(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load settings")
	}
	if saved.DefaultModel != "" {
		if err := reg.SetDefault(saved.DefaultModel); err != nil {
			zap.L().Warn("ignoring saved default model", zap.String("model", saved.DefaultModel), zap.Error(err))
		}
	}
	return reg, nil
}

// initRelay returns a remote relay client when relay.url is set and an
// in-process relay otherwise.
func initRelay() relay.Relay {
	if cfg.Relay.URL != "" {
		return relay.NewClient(cfg.Relay.URL, cfg.Relay.Token, nil)
	}
	return relay.NewHTTPRelay(
		time.Duration(cfg.Relay.DialTimeoutSecs)*time.Second,
		time.Duration(cfg.Relay.TLSTimeoutSecs)*time.Second,
	)
}

// initPreferences returns Redis-backed display preferences when
// session.redis_url is set, otherwise in-memory ones that last as long as
// the environment. The Redis client is opened once and shared by every
// session.
func (e *appEnv) initPreferences(ctx context.Context, sessionID string) (session.PreferenceStore, error) {
	e.prefsMu.Lock()
	defer e.prefsMu.Unlock()

	if cfg.Session.RedisURL == "" {
		if e.memPrefs == nil {
			e.memPrefs = map[string]*session.MemoryPreferences{}
		}
		p, ok := e.memPrefs[sessionID]
		if !ok {
			p = session.NewMemoryPreferences()
			e.memPrefs[sessionID] = p
		}
		return p, nil
	}
	if e.redis == nil {
		opts, err := redis.ParseURL(cfg.Session.RedisURL)
		if err != nil {
			return nil, eris.Wrap(err, "parse session.redis_url")
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, eris.Wrap(err, "connect session redis")
		}
		e.redis = client
	}
	return session.NewRedisPreferences(e.redis, sessionID, time.Duration(cfg.Session.TTLHours)*time.Hour), nil
}

// newController builds a session controller for page. An empty modelID
// keeps the saved selection; nil prefs fall back to in-memory ones.
func (e *appEnv) newController(page extract.Page, modelID string, prefs session.PreferenceStore) *session.Controller {
	opts := []session.Option{}
	if prefs != nil {
		opts = append(opts, session.WithPreferences(prefs))
	}
	return session.NewController(page, e.Analyzer, e.Registry, e.Settings.withModel(modelID), opts...)
}

// settingsSource loads saved settings, fills provider keys missing from
// the store with the configured ones, and applies a model override.
type settingsSource struct {
	store     store.Store
	providers config.ProvidersConfig
	override  string
}

func (s *settingsSource) GetSettings(ctx context.Context) (model.Settings, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	if settings.APIKeys == nil {
		settings.APIKeys = map[model.Provider]string{}
	}
	for p, key := range map[model.Provider]string{
		model.ProviderOpenAI:   s.providers.OpenAI.Key,
		model.ProviderClaude:   s.providers.Claude.Key,
		model.ProviderGrok:     s.providers.Grok.Key,
		model.ProviderDeepSeek: s.providers.DeepSeek.Key,
	} {
		if settings.APIKey(p) == "" && key != "" {
			settings.APIKeys[p] = key
		}
	}
	if s.override != "" {
		settings.SelectedModel = s.override
	}
	return settings, nil
}

// withModel returns a copy of s whose selected model is id. An empty id
// keeps the saved selection.
func (s *settingsSource) withModel(id string) *settingsSource {
	c := *s
	if id != "" {
		c.override = id
	}
	return &c
}
