package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/syncgate/internal/auth"
	"github.com/dropDatabas3/syncgate/internal/config"
	"github.com/dropDatabas3/syncgate/internal/domain/repository"
	httpserver "github.com/dropDatabas3/syncgate/internal/http"
	healthctrl "github.com/dropDatabas3/syncgate/internal/http/controllers/health"
	syncctrl "github.com/dropDatabas3/syncgate/internal/http/controllers/sync"
	"github.com/dropDatabas3/syncgate/internal/janitor"
	"github.com/dropDatabas3/syncgate/internal/observability/logger"
	"github.com/dropDatabas3/syncgate/internal/rate"
	"github.com/dropDatabas3/syncgate/internal/store/memory"
	pgstore "github.com/dropDatabas3/syncgate/internal/store/pg"
	syncsvc "github.com/dropDatabas3/syncgate/internal/sync"
	"github.com/dropDatabas3/syncgate/internal/sync/providers"
	"github.com/dropDatabas3/syncgate/internal/sync/providers/dropbox"
	"github.com/dropDatabas3/syncgate/internal/sync/providers/github"

	"github.com/jackc/pgx/v5/pgxpool"
)

var version = "dev"

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// loadConfig tolera que el archivo default no exista: en ese caso todo
// sale de defaults + env.
func loadConfig(path string) (*config.Config, error) {
	if !fileExists(path) {
		path = ""
	}
	return config.Load(path)
}

func main() {
	// .env es opcional; en producción todo llega por entorno.
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:     "syncgate",
		Short:   "Servicio de onboarding de sincronización con providers externos",
		Version: version,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "ruta al archivo de configuración")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de base de datos y termina",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cfgPath)
		},
	}

	root.AddCommand(serveCmd, migrateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigrate(cfgPath string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "syncgate"})
	defer func() { _ = logger.Sync() }()

	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrate requiere storage.driver=postgres (actual: %s)", cfg.Storage.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := pgstore.New(ctx, cfg.Storage.DSN, pgstore.Tuning{
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Migrate(ctx)
}

func runServe(cfgPath string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "syncgate"})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		repo     repository.SyncRepository
		pinger   healthctrl.Pinger
		poolFn   func() *pgxpool.Pool
		closeFns []func()
	)
	switch cfg.Storage.Driver {
	case "postgres":
		store, err := pgstore.New(ctx, cfg.Storage.DSN, pgstore.Tuning{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		closeFns = append(closeFns, store.Close)
		if cfg.Flags.Migrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
		repo = store
		pinger = store
		poolFn = store.Pool
	case "memory":
		log.Warn("storage en memoria: solo para desarrollo, los datos no sobreviven reinicios")
		repo = memory.New()
	default:
		return fmt.Errorf("storage.driver desconocido: %s", cfg.Storage.Driver)
	}
	defer func() {
		for _, fn := range closeFns {
			fn()
		}
	}()

	// Providers
	registry := providers.NewRegistry()
	if cfg.Providers.Dropbox.AppKey != "" {
		registry.Register(dropbox.New(
			cfg.Providers.Dropbox.AppKey,
			cfg.Providers.Dropbox.AppSecret,
			cfg.RedirectURI(dropbox.ProviderName),
		))
	}
	if cfg.Providers.GitHub.ClientID != "" {
		registry.Register(github.New(
			cfg.Providers.GitHub.ClientID,
			cfg.Providers.GitHub.ClientSecret,
			cfg.RedirectURI(github.ProviderName),
		))
	}
	if len(registry.Available()) == 0 {
		return fmt.Errorf("ningún provider configurado: setear credenciales de dropbox y/o github")
	}
	log.Info("providers registrados", logger.Any("providers", registry.Available()))

	service := syncsvc.NewService(repo, registry, cfg.Sync.UpstreamTimeout)

	// Rate limiting del authorize
	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		window, err := time.ParseDuration(cfg.Rate.Authorize.Window)
		if err != nil || window <= 0 {
			window = time.Minute
		}
		switch cfg.Rate.Backend {
		case "redis":
			client := rdb.NewClient(&rdb.Options{
				Addr:     cfg.Rate.Redis.Addr,
				Password: cfg.Rate.Redis.Password,
				DB:       cfg.Rate.Redis.DB,
			})
			closeFns = append(closeFns, func() { _ = client.Close() })
			limiter = rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.Authorize.Limit, window)
		default:
			limiter = rate.NewMemoryLimiter(cfg.Rate.Authorize.Limit, window)
		}
	}

	// Métricas
	metricsHandler, err := httpserver.RegisterMetrics(httpserver.MetricsConfig{Pool: poolFn})
	if err != nil {
		return err
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Verifier:           auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Sync:               syncctrl.NewControllers(service),
		Health:             healthctrl.NewHealthController(pinger, version),
		Limiter:            limiter,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		MetricsHandler:     metricsHandler,
	})

	srv := httpserver.NewServer(cfg.Server.Addr, router)
	jan := janitor.New(repo, cfg.Sync.PendingTTL, cfg.Sync.JanitorInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		return jan.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	log.Info("syncgate stopped")
	return nil
}
