// Package cli wires the service together: config, logging, chain adapters,
// backend client, journal and the HTTP surface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/availops/creditflow/internal/core/config"
	"github.com/availops/creditflow/internal/core/domain"
	"github.com/availops/creditflow/internal/health"
	"github.com/availops/creditflow/internal/infra/api"
	"github.com/availops/creditflow/internal/infra/chain"
	"github.com/availops/creditflow/internal/infra/chain/avail"
	"github.com/availops/creditflow/internal/infra/chain/evm"
	"github.com/availops/creditflow/internal/infra/emitter"
	"github.com/availops/creditflow/internal/infra/journal"
	"github.com/availops/creditflow/internal/purchase/engine"
	"github.com/availops/creditflow/internal/purchase/notify"
	"github.com/availops/creditflow/internal/purchase/reconcile"
	"github.com/availops/creditflow/internal/purchase/registry"
)

var (
	cfgPath       string
	isDebug       bool
	migrationsDir string
)

var rootCmd = &cobra.Command{
	Use:   "creditflow",
	Short: "Credit purchase service",
	Long:  `Creditflow drives credit purchases across chains: backend order, on-chain payment, finality watch, inclusion report and balance reconciliation.`,
	Run:   runService,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "migrations", "migrations", "journal migrations directory")
}

func runService(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapters, closers, err := buildAdapters(ctx, cfg.Chains, log)
	if err != nil {
		slog.Error("Failed to initialize chain adapters", "error", err)
		os.Exit(1)
	}
	defer func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}()

	em := buildEmitter(cfg.Events, log)
	defer em.Close()

	jnl, err := buildJournal(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to initialize purchase journal", "error", err)
		os.Exit(1)
	}
	defer jnl.Close()

	backend := api.NewClient(cfg.API)
	reg := registry.New()
	router := notify.NewRouter(reg, notify.NewLogPresenter(log), log)
	poller := reconcile.NewPoller(backend, em, log)
	defer poller.Stop()

	eng := engine.New(backend, backend, adapters, reg, em, jnl, poller, router, log)

	server := health.NewServer(reg, jnl, eng, cfg.Server.Port)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	slog.Info("creditflow started",
		"port", cfg.Server.Port, "chains", len(adapters), "config", cfgPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("creditflow stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	if isDebug || cfg.Level == "debug" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	}
	return slog.New(handler)
}

// buildAdapters constructs one adapter per configured chain. The strategy is
// chosen here, once; nothing downstream inspects chain names.
func buildAdapters(ctx context.Context, chains []config.ChainConfig, log *slog.Logger) ([]chain.Adapter, []func(), error) {
	var (
		adapters []chain.Adapter
		closers  []func()
	)
	for _, c := range chains {
		switch c.Kind {
		case domain.ChainKindEVM:
			wallet, err := evm.NewWallet(ctx, c.RPCURL, c.PrivateKey)
			if err != nil {
				return nil, closers, fmt.Errorf("chain %d: %w", c.ID, err)
			}
			closers = append(closers, wallet.Close)
			adapters = append(adapters, evm.NewAdapter(evm.Config{
				ChainID:         c.ID,
				DepositContract: c.DepositContract,
				Spender:         c.Spender,
				Tokens:          c.Tokens,
				ReceiptInterval: c.ReceiptInterval,
			}, wallet, log))

		case domain.ChainKindAvail:
			submitter := avail.NewSidecarSubmitter(c.SidecarURL, c.SubmitTimeout)
			adapters = append(adapters, avail.NewAdapter(avail.Config{
				ChainID:       c.ID,
				TokenAddress:  c.TokenAddress,
				SubmitTimeout: c.SubmitTimeout,
			}, submitter, log))
		}
	}
	return adapters, closers, nil
}

func buildEmitter(cfg emitter.RedisConfig, log *slog.Logger) emitter.Emitter {
	if cfg.URL == "" {
		return emitter.NewLogEmitter(log)
	}
	em, err := emitter.NewRedisEmitter(cfg)
	if err != nil {
		slog.Warn("Redis emitter unavailable, falling back to log", "error", err)
		return emitter.NewLogEmitter(log)
	}
	return em
}

func buildJournal(ctx context.Context, cfg journal.Config) (journal.Journal, error) {
	if cfg.URL == "" {
		slog.Warn("No database configured, purchase journal is in-memory only")
		return journal.NewMemoryJournal(), nil
	}
	return journal.NewPostgresJournal(ctx, cfg, migrationsDir)
}
