package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sigaid/sigaid-core/internal/authority"
	"github.com/sigaid/sigaid-core/internal/lease"
	"github.com/sigaid/sigaid-core/internal/platform/privacylog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	listenAddr := flag.String("listen-addr", "", "HTTP listen address override")
	flag.Parse()
	if *showVersion {
		fmt.Printf("sigaid-authority version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := authority.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("sigaid-authority failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stdout, nil)))

	tokenKey, err := authority.LoadOrCreateTokenKey(cfg.KeystorePath, cfg.KeystoreSecret)
	if err != nil {
		log.Fatalf("sigaid-authority failed to load token key: %v", err)
	}

	svc := authority.NewService(cfg, lease.NewTokenCodec(tokenKey))
	srv := authority.NewServer(cfg, svc, logger)

	log.Printf("sigaid-authority starting on %s", cfg.ListenAddr)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("sigaid-authority failed: %v", err)
	}
	log.Println("sigaid-authority stopped")
}
