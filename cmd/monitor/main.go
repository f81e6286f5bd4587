package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/connection"
	"github.com/zero-given/token-monitor/internal/metrics"
	"github.com/zero-given/token-monitor/internal/monitor"
	"github.com/zero-given/token-monitor/internal/providers"
	"github.com/zero-given/token-monitor/internal/push"
	"github.com/zero-given/token-monitor/internal/scanner"
	"github.com/zero-given/token-monitor/internal/server"
	"github.com/zero-given/token-monitor/internal/storage"
	"github.com/zero-given/token-monitor/pkg/utils"
)

var (
	cfgFile string
	version = "1.0.0"
)

// Application holds all initialized components
type Application struct {
	config  *config.Config
	logger  *logrus.Logger
	prom    *metrics.PrometheusMetrics
	conn    *connection.ConnectionManager
	store   storage.Storage
	hub     *push.Hub
	monitor *monitor.PairMonitor
	server  *server.Server
}

var rootCmd = &cobra.Command{
	Use:   "token-monitor",
	Short: "Liquidity pair monitor with honeypot and security scanning",
	Long: `token-monitor watches a Uniswap V2 style factory for new liquidity
pairs, scans each token against honeypot and contract security APIs,
tracks liquidity over time and serves the results over HTTP and a
WebSocket push channel.`,
	RunE: runMonitor,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("token-monitor %s\n", version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration is valid (storage=%s, server=%s)\n",
			cfg.Storage.Type, cfg.GetServerAddress())
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test chain and storage connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format,
			cfg.Logging.Output, cfg.Logging.File); err != nil {
			return err
		}

		store, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			return err
		}
		if err := store.Connect(); err != nil {
			return fmt.Errorf("storage check failed: %w", err)
		}
		defer store.Close()
		fmt.Println("Storage: OK")

		conn := connection.NewConnectionManager(&cfg.Chain, nil)
		defer conn.Close()
		if err := conn.HealthCheck(); err != nil {
			return fmt.Errorf("chain check failed: %w", err)
		}
		fmt.Println("Chain: OK")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(testCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format,
		cfg.Logging.Output, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &Application{
		config: cfg,
		logger: utils.GetLogger(),
	}

	app.logger.WithFields(logrus.Fields{
		"version":     version,
		"environment": cfg.App.Environment,
		"storage":     cfg.Storage.Type,
	}).Info("Starting token monitor")

	if err := app.initialize(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.start(ctx); err != nil {
		app.shutdown()
		return err
	}

	<-ctx.Done()
	app.logger.Info("Shutdown signal received")
	app.shutdown()
	return nil
}

// initialize wires all components together
func (app *Application) initialize() error {
	cfg := app.config

	app.prom = metrics.NewPrometheusMetrics()
	app.conn = connection.NewConnectionManager(&cfg.Chain, app.prom)

	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		return err
	}
	if err := store.Connect(); err != nil {
		return err
	}
	app.store = store

	app.hub = push.NewHub(app.prom)

	honeypot := providers.NewHoneypotClient(&cfg.Providers, app.prom)
	security := providers.NewSecurityClient(&cfg.Providers, app.prom)

	orchestrator := scanner.NewOrchestrator(app.store, honeypot, security,
		&cfg.Scanner, app.hub, app.prom)
	selector := scanner.NewSelector(app.store, &cfg.Scanner)

	app.monitor = monitor.NewPairMonitor(&cfg.Chain, &cfg.Scanner,
		app.conn, app.store, orchestrator, selector, app.prom)

	app.server = server.NewServer(&cfg.Server, &cfg.App,
		app.store, app.monitor, app.conn, app.hub, app.prom)

	return nil
}

// start launches the hub, monitor and HTTP server
func (app *Application) start(ctx context.Context) error {
	app.hub.Start()

	if err := app.monitor.Start(ctx); err != nil {
		return err
	}

	if err := app.server.Start(app.config.GetServerAddress()); err != nil {
		return err
	}

	app.logger.WithField("addr", app.config.GetServerAddress()).Info("Token monitor started")
	return nil
}

// shutdown stops components in reverse dependency order
func (app *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if app.monitor != nil {
		if err := app.monitor.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop monitor")
		}
	}
	if app.server != nil {
		if err := app.server.Stop(shutdownCtx); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}
	if app.hub != nil {
		app.hub.Stop()
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}
	if app.conn != nil {
		app.conn.Close()
	}

	app.logger.Info("Shutdown complete")
}
