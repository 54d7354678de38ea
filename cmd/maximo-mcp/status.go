package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldstack/maximo-mcp/internal/store/sqlite"
)

// cmdStatus prints a summary of the last 24 hours of tool activity from
// the audit trail.
func cmdStatus() error {
	ctx := context.Background()

	env := loadEnv()
	cfg, err := loadFileConfig(env)
	if err != nil {
		return err
	}
	dbPath := cfg.Audit.DBPath
	if dbPath == "" {
		dbPath = defaultDataPath("audit.db")
	}

	db, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer func() { _ = db.Close() }()

	now := time.Now()
	stats, err := db.GetAuditStats(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		return fmt.Errorf("read audit stats: %w", err)
	}

	fmt.Printf("Activity, last 24h (db: %s)\n", dbPath)
	fmt.Printf("  Requests:     %d\n", stats.TotalRequests)
	fmt.Printf("  Succeeded:    %d\n", stats.SuccessCount)
	fmt.Printf("  Failed:       %d\n", stats.ErrorCount)
	fmt.Printf("  Cache hits:   %d\n", stats.CacheHits)
	fmt.Printf("  Avg latency:  %.1f ms\n", stats.AvgLatencyMs)
	fmt.Printf("  P95 latency:  %d ms\n", stats.P95LatencyMs)
	return nil
}
