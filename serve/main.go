// Command qgend is the question generation service.
// It loads the knowledge base and model once at startup, then serves
// interview question requests over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	qgen "github.com/Paranoid-AF/qgen"
	"github.com/Paranoid-AF/qgen/generate"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: $QGEN_CONFIG_DIR/config.toml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log prompts, retrieved context and every request")
	flag.Parse()

	if *showVersion {
		fmt.Println("qgend", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range qgen.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting", "version", Version)
	engine, err := generate.NewEngineFromConfig(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	srv := NewServer(engine)
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	addr := qgen.ResolveListenAddr(cfg)
	slog.Info("ready", "addr", addr)
	if err := srv.Listen(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}

// loadConfig reads an explicit config file, or the default location.
func loadConfig(path string) (*qgen.Config, error) {
	if path != "" {
		return qgen.LoadConfigFile(path)
	}
	return qgen.LoadConfig()
}
