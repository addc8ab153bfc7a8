package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Keksclan/goRawrDedupe/contextx"
	"github.com/Keksclan/goRawrDedupe/server"
)

// SearchCmd searches items once, going through the same deduplicator and
// backend client the server uses.
type SearchCmd struct {
	Query   string `arg:"" help:"Search text."`
	Company string `help:"Company ID the search is scoped to." required:"" env:"DEDUPE_COMPANY"`
}

// Run executes the search command.
func (c *SearchCmd) Run(g *Globals) error {
	return runOnce(g, c.Company, func(ctx context.Context, a *app) error {
		items, err := a.items.Search(ctx, c.Query)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		return printJSON(g.out(), items)
	})
}

// VerifyCmd checks whether an item name is free to use.
type VerifyCmd struct {
	Name    string `arg:"" help:"Proposed item name."`
	Company string `help:"Company ID the check is scoped to." required:"" env:"DEDUPE_COMPANY"`
}

// Run executes the verify command.
func (c *VerifyCmd) Run(g *Globals) error {
	return runOnce(g, c.Company, func(ctx context.Context, a *app) error {
		nc, err := a.items.VerifyName(ctx, c.Name)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if nc.Available {
			fmt.Fprintf(g.out(), "%q is available\n", nc.Name)
		} else {
			fmt.Fprintf(g.out(), "%q is taken by item %s\n", nc.Name, nc.ExistingID)
		}
		return nil
	})
}

// StatsCmd prints the stats of a running server.
type StatsCmd struct {
	Timeout time.Duration `help:"RPC timeout." default:"5s"`
}

// Run executes the stats command.
func (c *StatsCmd) Run(g *Globals) error {
	return withAdmin(g, c.Timeout, func(ctx context.Context, client *server.AdminClient) error {
		st, err := client.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		return printJSON(g.out(), st)
	})
}

// ClearCmd clears cached results on a running server.
type ClearCmd struct {
	Pattern string        `arg:"" optional:"" help:"Only clear keys containing this substring. Clears everything when omitted."`
	Timeout time.Duration `help:"RPC timeout." default:"5s"`
}

// Run executes the clear command.
func (c *ClearCmd) Run(g *Globals) error {
	return withAdmin(g, c.Timeout, func(ctx context.Context, client *server.AdminClient) error {
		resp, err := client.ClearCache(ctx, c.Pattern)
		if err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		fmt.Fprintf(g.out(), "removed %d cached entries\n", resp.Removed)
		return nil
	})
}

// runOnce builds the app, scopes ctx to company and runs fn.
func runOnce(g *Globals, company string, fn func(context.Context, *app) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, newLogger(g.errOut(), cfg.Log), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = contextx.WithCompany(ctx, company)
	ctx = contextx.WithRequestID(ctx, contextx.NewRequestID())
	return fn(ctx, a)
}

// withAdmin dials the configured admin address and runs fn with a client.
func withAdmin(g *Globals, timeout time.Duration, fn func(context.Context, *server.AdminClient) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	conn, err := grpc.NewClient(cfg.Admin.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Admin.Addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, server.NewAdminClient(conn, cfg.Admin.Token))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
