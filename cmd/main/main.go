package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"digikala/crawler/internal/config"
	"digikala/crawler/internal/container"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.Log.Level, err)
	}
	log.SetLevel(level)

	log.Infof("Starting Digikala crawler (limit %.4f GB, queue %s, comments to %s)...",
		cfg.Crawl.LimitInGB, cfg.Crawl.Queue, cfg.Crawl.CommentsSink)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	runErr := app.Run(ctx)
	if err := app.Close(); err != nil {
		log.Errorf("Failed to shut down cleanly: %v", err)
	}
	if runErr != nil {
		log.Fatalf("Application exited with error: %v", runErr)
	}

	log.Info("Application finished successfully")
}
