package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldstack/maximo-mcp/internal/maximo"
)

// cmdCheck verifies the configured upstream is reachable with the
// configured credentials, using the low-cost whoami endpoint.
func cmdCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	env := loadEnv()
	cfg, err := loadFileConfig(env)
	if err != nil {
		return err
	}

	creds, err := loadCredentials(env)
	if err != nil {
		return err
	}

	client, err := maximo.NewClient(maximo.Config{
		BaseURL: cfg.Upstream.BaseURL,
		APIKey:  creds.apiKey,
		MaxAuth: creds.maxAuth,
		Timeout: cfg.UpstreamTimeout(),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.WhoAmI(ctx); err != nil {
		return fmt.Errorf("upstream check failed: %w", err)
	}
	fmt.Printf("Upstream OK: %s\n", cfg.Upstream.BaseURL)
	return nil
}
