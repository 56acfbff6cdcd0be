package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"intranet-portal/pkg/api"
	"intranet-portal/pkg/audit"
	"intranet-portal/pkg/auth"
	"intranet-portal/pkg/cache"
	"intranet-portal/pkg/cache/memory"
	"intranet-portal/pkg/cache/redis"
	"intranet-portal/pkg/chain"
	"intranet-portal/pkg/config"
	"intranet-portal/pkg/lock"
	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/manual"
	"intranet-portal/pkg/poll"
	"intranet-portal/pkg/storage/postgres"
	"intranet-portal/pkg/treasury"

	promcollector "intranet-portal/pkg/metrics/prometheus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/rueidis"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrateOnStart && cfg.Storage.Driver == "postgres" {
		if err := postgres.MigrateUp(cfg.Database); err != nil {
			return err
		}
		logger.Info("database schema up to date")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := promcollector.NewPrometheusCollector("portal")
	if err := collector.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	var rdb rueidis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		logger.Info("connected to redis")
	}

	renderChain, err := newRenderChain(cfg, rdb, collector, logger)
	if err != nil {
		return err
	}
	defer renderChain.Close()

	auditWriter := audit.NewWriter(st.audit, audit.WriterConfig{}, collector, logger)
	defer auditWriter.Close()

	var locker treasury.Locker = lock.NewLocal()
	if rdb != nil {
		locker = lock.NewRedis(rdb, lock.RedisConfig{KeyPrefix: cfg.Redis.KeyPrefix + "lock:"})
	}

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o750); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	files := afero.NewBasePathFs(afero.NewOsFs(), cfg.Uploads.Dir)

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(auth.Dependencies{
		Store:  st.users,
		Hasher: auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens: tokens,
		Audit:  auditWriter,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Dependencies{
		Treasury: treasury.NewService(treasury.Dependencies{
			Store:   st.ledger,
			Audit:   auditWriter,
			Locker:  locker,
			Metrics: collector,
			Logger:  logger,
		}),
		Manual: manual.NewService(manual.Dependencies{
			Store:          st.articles,
			Files:          files,
			Renderer:       manual.NewCachedRenderer(renderChain, cfg.RenderCache.TTL, collector, logger),
			Audit:          auditWriter,
			Logger:         logger,
			MaxUploadBytes: cfg.Uploads.MaxBytes,
		}),
		Polls:    poll.NewService(st.polls, auditWriter, logger),
		Auth:     authSvc,
		Tokens:   tokens,
		Ping:     st.ping,
		Registry: registry,
		Logger:   logger,
	}, serverConfig(cfg))
	if err != nil {
		return err
	}

	errc := server.Start()
	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := auditWriter.Flush(cfg.Server.ShutdownTimeout); err != nil {
		logger.Warn("audit queue not drained", zap.Error(err))
	}
	return nil
}

// newRenderChain builds the markdown render cache: process memory first,
// then Redis when configured.
func newRenderChain(cfg config.Config, rdb rueidis.Client, collector *promcollector.PrometheusCollector, logger *logging.Logger) (*chain.Chain, error) {
	layers := []cache.Layer{
		memory.NewMemoryCache(memory.MemoryCacheConfig{
			Name:       "memory",
			MaxSize:    cfg.RenderCache.MemorySize,
			DefaultTTL: cfg.RenderCache.TTL,
		}),
	}
	if rdb != nil {
		layers = append(layers, redis.New(rdb, "redis", cfg.Redis.KeyPrefix))
	}
	return chain.New(chain.Config{
		WarmTTL: cfg.RenderCache.TTL,
		Metrics: collector,
		Logger:  logger,
	}, layers...)
}

func serverConfig(cfg config.Config) api.ServerConfig {
	sc := api.DefaultServerConfig()
	sc.Address = cfg.Server.Address
	sc.ReadTimeout = cfg.Server.ReadTimeout
	sc.WriteTimeout = cfg.Server.WriteTimeout
	sc.CookieName = cfg.Auth.CookieName
	sc.SecureCookies = cfg.Auth.SecureCookies
	sc.MaxUploadBytes = cfg.Uploads.MaxBytes
	return sc
}
