// Command recapbot runs the summarizing reply bot daemon.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recapbot/recapbot/internal/bot"
	"github.com/recapbot/recapbot/internal/breaker"
	"github.com/recapbot/recapbot/internal/config"
	"github.com/recapbot/recapbot/internal/filter"
	"github.com/recapbot/recapbot/internal/genapi"
	"github.com/recapbot/recapbot/internal/retry"
	"github.com/recapbot/recapbot/internal/store"
	"github.com/recapbot/recapbot/internal/xapi"
)

func main() {
	os.Exit(run())
}

func run() int {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	defaultPath, err := config.ConfigPath()
	if err != nil {
		log.Printf("Failed to resolve config path: %v", err)
		return 1
	}
	configPath := flag.String("config", defaultPath, "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// First run - write a template for the user to fill in.
			cfg = config.Default()
			if saveErr := cfg.Save(*configPath); saveErr != nil {
				log.Printf("Could not write default config: %v", saveErr)
			} else {
				log.Printf("Created default config at %s - fill in search.query and credentials, then restart", *configPath)
			}
			return 1
		}
		log.Printf("Could not load config: %v", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("%v", err)
		return 1
	}

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		log.Printf("Failed to open store at %s: %v", cfg.Storage.DBPath, err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Failed to close store: %v", err)
		}
	}()

	xClient := xapi.New(cfg.Credentials.BearerToken, "", "")
	genClient := genapi.New(
		cfg.Generation.BaseURL,
		cfg.Credentials.GenerationAPIKey,
		time.Duration(cfg.Generation.PollIntervalSeconds)*time.Second,
		time.Duration(cfg.Generation.TimeoutSeconds)*time.Second,
	)

	pipeline := filter.New(st, xClient, filter.Config{
		MinLength:          cfg.Filter.MinLength,
		Language:           cfg.Filter.Language,
		MaxAge:             time.Duration(cfg.Filter.MaxAgeMinutes) * time.Minute,
		MinFollowers:       cfg.Filter.MinFollowers,
		MaxDailyReplies:    cfg.Limits.MaxDailyReplies,
		MinGap:             time.Duration(cfg.Limits.MinGapMinutes) * time.Minute,
		MaxPerAuthorPerDay: cfg.Limits.MaxPerAuthorPerDay,
	})

	brk := breaker.New(st, cfg.Breaker.FailureThreshold,
		time.Duration(cfg.Breaker.CooldownMinutes)*time.Minute)

	b := bot.New(xClient, genClient, xClient, pipeline, brk, st, bot.Config{
		Query:       cfg.Search.Query,
		SearchCount: cfg.Search.Count,
		Interval:    time.Duration(cfg.Search.PollIntervalMinutes) * time.Minute,
		SearchRetry: retry.Policy{
			MaxAttempts: cfg.Search.RetryAttempts,
			Strategy:    retry.Exponential,
			BaseDelay:   time.Duration(cfg.Search.RetryBaseSeconds) * time.Second,
			MaxDelay:    time.Minute,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("recapbot starting...")
	if err := b.Run(ctx); err != nil {
		log.Printf("Exiting on fatal error: %v", err)
		return 1
	}

	log.Println("recapbot stopped")
	return 0
}
