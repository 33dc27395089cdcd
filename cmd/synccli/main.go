// Command synccli runs one sync orchestration or audit from a shell or a
// Kubernetes CronJob, and mints admin tokens for the HTTP API.
//
//	synccli run [-kind events|cinema]
//	synccli audit [-orphans]
//	synccli token -sub ops [-ttl 1h]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/iliyamo/venue-directory/internal/app"
	"github.com/iliyamo/venue-directory/internal/config"
	"github.com/iliyamo/venue-directory/internal/database"
	"github.com/iliyamo/venue-directory/internal/ingest"
	"github.com/iliyamo/venue-directory/internal/logging"
	"github.com/iliyamo/venue-directory/internal/middleware"
	"github.com/iliyamo/venue-directory/internal/utils"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "token":
		os.Exit(token(cfg, args))
	case "run", "audit":
	default:
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		logging.Fatal().Err(err).Msg("open database")
	}
	p, err := app.Build(cfg, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("build pipeline")
	}

	var code int
	if cmd == "run" {
		code = run(ctx, p, cfg.Sync.RunTimeout, args)
	} else {
		code = audit(ctx, p, args)
	}
	// os.Exit skips deferred calls
	stop()
	db.Close()
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: synccli run [-kind events|cinema] | audit [-orphans] | token -sub NAME [-ttl 1h]")
	os.Exit(2)
}

func run(ctx context.Context, p *app.Pipeline, timeout time.Duration, args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	kind := fs.String("kind", "", "run only sources of this kind (events or cinema)")
	_ = fs.Parse(args)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var s *ingest.Summary
	switch *kind {
	case "":
		s = p.Orchestrator.Run(ctx)
	case string(ingest.KindEvents), string(ingest.KindCinema):
		s = p.Orchestrator.RunKind(ctx, ingest.SourceKind(*kind))
	default:
		fmt.Fprintf(os.Stderr, "unknown kind %q\n", *kind)
		return 2
	}
	if err := printJSON(s); err != nil {
		return 1
	}
	if !s.Success {
		return 1
	}
	return 0
}

func audit(ctx context.Context, p *app.Pipeline, args []string) int {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	orphansOnly := fs.Bool("orphans", false, "list orphan movies only")
	_ = fs.Parse(args)

	var (
		out any
		err error
	)
	if *orphansOnly {
		out, err = p.Auditor.Orphans(ctx)
	} else {
		out, err = p.Auditor.Report(ctx)
	}
	if err != nil {
		logging.Error().Err(err).Msg("audit failed")
		return 1
	}
	if err := printJSON(out); err != nil {
		return 1
	}
	return 0
}

func token(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	sub := fs.String("sub", "", "token subject, e.g. the operator's name")
	ttl := fs.Duration("ttl", time.Duration(cfg.AccessTTLMin)*time.Minute, "token lifetime")
	_ = fs.Parse(args)
	if *sub == "" {
		fmt.Fprintln(os.Stderr, "-sub is required")
		return 2
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, *sub, middleware.RoleAdmin, *ttl)
	if err != nil {
		logging.Error().Err(err).Msg("sign token")
		return 1
	}
	fmt.Println(tok.Token)
	return 0
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logging.Error().Err(err).Msg("write output")
		return err
	}
	return nil
}
