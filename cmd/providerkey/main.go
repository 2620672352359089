package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"toonify/internal/infra"
	"toonify/internal/infra/credentials"
)

var envKeys = map[string]string{
	credentials.ProviderReplicate: "REPLICATE_API_TOKEN",
	credentials.ProviderDashScope: "DASHSCOPE_API_KEY",
}

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		regionFlag   string
		deleteFlag   bool
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (falls back to the environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderReplicate, "provider to configure (replicate or dashscope)")
	flag.StringVar(&regionFlag, "region", "", "DashScope region recorded alongside the key (beijing or singapore)")
	flag.BoolVar(&deleteFlag, "delete", false, "remove the stored key instead of setting one")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	envKey, ok := envKeys[provider]
	if !ok {
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envKey))
	}
	if key == "" && !deleteFlag {
		fmt.Fprintf(os.Stderr, "%s key is required via -key or %s\n", provider, envKey)
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" || strings.HasPrefix(dbURL, "sqlite:") {
		fmt.Fprintln(os.Stderr, "a postgres DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", os.Getenv("LOG_LEVEL")).With().Str("cmd", "providerkey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if deleteFlag {
		deleted, err := store.DeleteToken(ctx, provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete %s key: %v\n", provider, err)
			os.Exit(1)
		}
		if !deleted {
			fmt.Printf("no stored %s key\n", provider)
			return
		}
		fmt.Printf("%s key deleted\n", provider)
		return
	}

	props := map[string]any{"updated_by": "providerkey"}
	if region := strings.TrimSpace(strings.ToLower(regionFlag)); region != "" {
		props["region"] = region
	}
	if err := store.SetToken(ctx, provider, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s key: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s key stored successfully\n", provider)
}
