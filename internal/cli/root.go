package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/firehose/internal/control"
	"github.com/vietddude/firehose/internal/core/config"
	"github.com/vietddude/firehose/internal/stream/reconnect"
)

// exitDefect is the exit code for failures outside the transport taxonomy.
const exitDefect = 2

var (
	cfgPath    string
	isDebug    bool
	tweetsOnly bool
)

var rootCmd = &cobra.Command{
	Use:   "firehose",
	Short: "Streaming API consumer",
	Long:  `Firehose holds a long-lived connection to the streaming API and writes every decoded record to stdout as one JSON document per line.`,
	Run:   runFirehose,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&tweetsOnly, "tweets-only", false, "drop control messages and emit tweets only")
}

// loadConfig loads .env and the config file and sets up logging. A
// missing default config file falls back to built-in defaults.
func loadConfig(cmd *cobra.Command) *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Parse([]byte("{}"))
	}
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging, isDebug)
	return cfg
}

func controlConfig(cfg *config.AppConfig) control.Config {
	return control.Config{
		Port:        cfg.Server.Port,
		Stream:      cfg.Stream,
		Credentials: cfg.Credentials,
		Decode:      cfg.Decode,
		Backoff:     cfg.Backoff,
		Replay:      cfg.Replay,
		TweetsOnly:  tweetsOnly,
	}
}

func runFirehose(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	run(controlConfig(cfg))
}

// run drives a Firehose until the stream ends or a signal arrives.
func run(controlCfg control.Config) {
	app, err := control.NewFirehose(controlCfg)
	if err != nil {
		slog.Error("Failed to initialize Firehose", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start Firehose", "error", err)
		os.Exit(1)
	}

	writer := control.NewRecordWriter(os.Stdout)
	drainResult := make(chan error, 1)
	go func() { drainResult <- writer.Drain(app.Records()) }()
	drained := drainResult

	var writeErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		drained = nil
	case writeErr = <-drained:
		if writeErr != nil {
			slog.Error("Failed to write records", "error", writeErr)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	if drained == nil {
		// Stop closed the records channel; let the writer finish.
		writeErr = <-drainResult
	}

	err = app.Wait()
	switch {
	case err == nil && writeErr != nil:
		os.Exit(1)
	case err == nil:
		slog.Info("Firehose stopped gracefully", "records", writer.Count())
	case reconnect.IsDefect(err):
		slog.Error("Firehose aborted", "error", err)
		os.Exit(exitDefect)
	default:
		slog.Error("Firehose terminated", "error", err)
		os.Exit(1)
	}
}
