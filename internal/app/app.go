package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/vire-insights/internal/clients/completion"
	"github.com/bobmcallan/vire-insights/internal/clients/gemini"
	"github.com/bobmcallan/vire-insights/internal/clients/positions"
	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
	"github.com/bobmcallan/vire-insights/internal/models"
	"github.com/bobmcallan/vire-insights/internal/services/insights"
	"github.com/bobmcallan/vire-insights/internal/services/trace"
	"github.com/bobmcallan/vire-insights/internal/storage"
)

// App holds all initialized services, clients, and the MCP server.
// cmd/insights-server builds one and hands it to the HTTP server.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Store           interfaces.KVStore
	Cache           interfaces.InsightsCache
	Positions       interfaces.PositionSource
	Completion      interfaces.CompletionClient
	Traces          interfaces.TraceCorrelator
	InsightsService *insights.Service
	MCPServer       *server.MCPServer
	StartupTime     time.Time
}

// Option overrides a dependency before the services are wired. Used by tests.
type Option func(*App)

// WithPositionSource replaces the configured positions client.
func WithPositionSource(src interfaces.PositionSource) Option {
	return func(a *App) { a.Positions = src }
}

// WithCompletionClient replaces the configured narrative provider.
func WithCompletionClient(c interfaces.CompletionClient) Option {
	return func(a *App) { a.Completion = c }
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath checks the provided path, INSIGHTS_CONFIG, the binary dir, then config/.
func resolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("INSIGHTS_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "insights.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/insights.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes all services, clients, storage, and the MCP server.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string, opts ...Option) (*App, error) {
	common.LoadVersionFromBuildInfo()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Backend == common.BackendBadger && !filepath.IsAbs(config.Storage.Badger.Path) {
		config.Storage.Badger.Path = filepath.Join(getBinaryDir(), config.Storage.Badger.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	return NewAppWithConfig(context.Background(), config, logger, opts...)
}

// NewAppWithConfig wires an App from an already loaded configuration.
func NewAppWithConfig(ctx context.Context, config *common.Config, logger *common.Logger, opts ...Option) (*App, error) {
	startupStart := time.Now()

	a := &App{
		Config:      config,
		Logger:      logger,
		StartupTime: startupStart,
	}
	for _, opt := range opts {
		opt(a)
	}

	store, err := storage.NewKVStore(ctx, logger, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.Store = store
	a.Cache = storage.NewInsightsCache(store, logger)
	a.Traces = trace.NewService(store, logger)

	if a.Positions == nil {
		a.Positions = newPositionSource(config, logger)
	}
	if a.Completion == nil {
		a.Completion = newCompletionClient(ctx, config, logger)
	}

	requester := insights.NewRequester(a.Completion,
		insights.WithPromptCharCap(config.Insights.PromptCharCap),
		insights.WithNarrativeTimeout(config.Clients.Narrative.GetTimeout()),
		insights.WithRequesterLogger(logger),
	)

	a.InsightsService = insights.NewService(a.Positions, requester, a.Cache, a.Traces, logger,
		insights.WithDefaults(config.Insights.DefaultParams()),
		insights.WithRequestTimeout(config.Insights.GetRequestTimeout()),
	)

	a.MCPServer = server.NewMCPServer(
		"vire-insights",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)
	a.registerTools()

	logger.Info().
		Str("backend", config.Storage.Backend).
		Str("provider", config.Clients.Narrative.Provider).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if closer, ok := a.Completion.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close narrative client")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Store = nil
	}
}

func newPositionSource(config *common.Config, logger *common.Logger) interfaces.PositionSource {
	cfg := config.Clients.Positions
	if cfg.BaseURL == "" {
		logger.Warn().Msg("Positions base URL not configured - insights will be unavailable")
		return unavailableSource{reason: "positions source not configured"}
	}

	key, err := common.ResolveAPIKey("positions_api_key", cfg.APIKey)
	if err != nil {
		logger.Debug().Msg("Positions API key not configured - calling without credentials")
	}

	return positions.NewClient(cfg.BaseURL, key,
		positions.WithLogger(logger),
		positions.WithRateLimit(cfg.RateLimit),
		positions.WithTimeout(cfg.GetTimeout()),
	)
}

func newCompletionClient(ctx context.Context, config *common.Config, logger *common.Logger) interfaces.CompletionClient {
	cfg := config.Clients.Narrative

	if cfg.Provider == common.ProviderGemini {
		key, err := common.ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey)
		if err != nil {
			logger.Warn().Msg("Gemini API key not configured - narratives will be unavailable")
			return unavailableCompletion{reason: "gemini API key not configured"}
		}
		client, err := gemini.NewClient(ctx, key,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
			return unavailableCompletion{reason: err.Error()}
		}
		return client
	}

	if cfg.BaseURL == "" {
		logger.Warn().Msg("Narrative service URL not configured - narratives will be unavailable")
		return unavailableCompletion{reason: "narrative service not configured"}
	}

	key, err := common.ResolveAPIKey("narrative_api_key", cfg.APIKey)
	if err != nil {
		logger.Debug().Msg("Narrative API key not configured - calling without credentials")
	}

	return completion.NewClient(cfg.BaseURL, key,
		completion.WithLogger(logger),
		completion.WithRateLimit(cfg.RateLimit),
		completion.WithTimeout(cfg.GetTimeout()),
	)
}

// errNotConfigured marks a dependency that was left out of the configuration.
var errNotConfigured = errors.New("not configured")

// unavailableSource fails every lookup. The pipeline reports it as a source error.
type unavailableSource struct{ reason string }

func (u unavailableSource) ListPositions(context.Context, string) ([]models.Position, error) {
	return nil, fmt.Errorf("%w: %s", errNotConfigured, u.reason)
}

// unavailableCompletion fails every narrative request. The pipeline reports it as a
// transport error and still returns the prepared data.
type unavailableCompletion struct{ reason string }

func (u unavailableCompletion) Complete(context.Context, models.CompletionRequest) (*models.CompletionResponse, error) {
	return nil, fmt.Errorf("%w: %s", errNotConfigured, u.reason)
}
