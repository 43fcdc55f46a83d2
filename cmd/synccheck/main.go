// Package main provides a one-shot CLI that runs a full sync for one
// account and prints the result. Useful for verifying credentials and
// upstream connectivity without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/insights-engine/internal/adapter"
	"github.com/insights-engine/internal/config"
	"github.com/insights-engine/internal/credential"
	"github.com/insights-engine/internal/logging"
	"github.com/insights-engine/internal/service"
	"github.com/insights-engine/internal/storage"
	"github.com/insights-engine/internal/types"
)

func main() {
	var (
		accountID = flag.String("account", "", "Account id to sync (required)")
		days      = flag.Int("days", 7, "Trailing window length in days")
		timeout   = flag.Duration("timeout", 5*time.Minute, "Overall run timeout")
	)
	flag.Parse()

	if *accountID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat("text"),
	)

	resolver, err := credential.NewResolver(cfg.Crypto.CredentialSecret)
	if err != nil {
		log.Fatalf("Credential secret not usable: %v", err)
	}

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	accountRepo := storage.NewAccountRepository(postgres)
	syncService := service.NewSyncService(
		adapter.NewGraphClient(&cfg.Graph),
		resolver,
		service.NewSanityFilter(cfg.Sanity.Ceilings),
		storage.NewProfileSnapshotRepository(postgres),
		storage.NewDailyInsightRepository(postgres),
		storage.NewPostCacheRepository(postgres),
		storage.NewSyncMetadataRepository(postgres),
		&cfg.Sync,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	account, err := accountRepo.Get(ctx, *accountID)
	if err != nil {
		log.Fatalf("Account lookup failed: %v", err)
	}

	today := types.TruncateDay(time.Now().UTC())
	window := types.DateWindow{Since: today.AddDate(0, 0, -(*days - 1)), Until: today}

	fmt.Printf("Syncing account %s over [%s, %s]...\n",
		account.ID,
		window.Since.Format("2006-01-02"),
		window.Until.Format("2006-01-02"),
	)

	result, err := syncService.Run(ctx, account, window)
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to render result: %v", err)
	}
	fmt.Println(string(out))
	fmt.Printf("Done in %s\n", result.Duration.Round(time.Millisecond))
}
