// Command dedupectl runs and manages a request-deduplicating gateway in
// front of the item, sales and purchase services.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/Keksclan/goRawrDedupe/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Globals are flags shared by every command.
type Globals struct {
	Config string `help:"Path to the YAML config file." short:"c" default:"dedupe.yaml" type:"path"`

	stdout io.Writer
	stderr io.Writer
}

// CLI is the top-level command structure for dedupectl.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version." short:"V"`
	Serve   ServeCmd         `cmd:"" help:"Run the admin gRPC server and the HTTP gateway."`
	Search  SearchCmd        `cmd:"" help:"Search items once through the deduplicator."`
	Verify  VerifyCmd        `cmd:"" help:"Check whether an item name is free."`
	Stats   StatsCmd         `cmd:"" help:"Print a running server's deduplicator stats."`
	Clear   ClearCmd         `cmd:"" help:"Clear a running server's cache."`
}

func main() {
	cli := CLI{Globals: Globals{stdout: os.Stdout, stderr: os.Stderr}}
	ctx := kong.Parse(&cli,
		kong.Name("dedupectl"),
		kong.Description("Coalesce, cache and debounce backend requests."),
		kong.Vars{"version": version + " " + commit},
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig loads g.Config, applies environment overrides and validates
// the result.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the slog handler described by cfg.
func newLogger(w io.Writer, cfg config.Log) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (g *Globals) out() io.Writer {
	if g.stdout == nil {
		return os.Stdout
	}
	return g.stdout
}

func (g *Globals) errOut() io.Writer {
	if g.stderr == nil {
		return os.Stderr
	}
	return g.stderr
}

