// ABOUTME: Entry point for the compass-gateway MCP server
// ABOUTME: Bridges AI agents to the product backend with OAuth-verified, workspace-scoped tools

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/compass-gateway/internal/api"
	"github.com/2389/compass-gateway/internal/auth"
	"github.com/2389/compass-gateway/internal/config"
	"github.com/2389/compass-gateway/internal/mcp"
	"github.com/2389/compass-gateway/internal/metrics"
	"github.com/2389/compass-gateway/internal/store"
	"github.com/2389/compass-gateway/internal/tenant"
	"github.com/2389/compass-gateway/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ ___  _ __ ___  _ __   __ _ ___ ___
 / __/ _ \| '_ ' _ \| '_ \ / _' / __/ __|
| (_| (_) | | | | | | |_) | (_| \__ \__ \   gateway
 \___\___/|_| |_| |_| .__/ \__,_|___/___/
                    |_|
`

// getConfigPath returns the path to the gateway config file.
// Priority: COMPASS_CONFIG env var > XDG_CONFIG_HOME/compass/gateway.yaml > ~/.config/compass/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COMPASS_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "compass", "gateway.yaml")
}

// getDataPath returns the path to the compass data directory.
// Priority: XDG_DATA_HOME/compass > ~/.local/share/compass
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "compass")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: compass-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve   Start the gateway server")
		fmt.Println("  init    Create a new config file interactively")
		fmt.Println("  health  Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:      %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:        %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Environment: ")
	cyan.Println(cfg.Auth.Environment)
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:     %s\n", cfg.Metrics.Path)
	}
	fmt.Println()

	logger.Info("starting compass-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"environment", cfg.Auth.Environment,
	)

	// Token verification: introspection client behind a bounded cache.
	introspector, err := auth.NewIntrospectionClient(auth.IntrospectionConfig{
		BaseURL:      cfg.AuthBaseURL(),
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating introspection client: %w", err)
	}
	cache := auth.NewIntrospectionCache(cfg.Auth.CacheTTL, cfg.Auth.CacheMaxSize)
	verifier := auth.NewVerifier(introspector, cache, logger)

	// Downstream product API client.
	apiClient, err := api.NewClient(api.Config{
		BaseURL: cfg.APIBaseURL(),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	// Workspace selection store and tenant resolver.
	selections := tenant.NewSelectionStore(cfg.Workspace.SelectionTTL, cfg.Workspace.MaxSelections)
	defer selections.Close()
	resolver := tenant.NewResolver(selections, apiClient, logger)

	// Audit database.
	auditStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer auditStore.Close()

	// Tool registry and dispatcher.
	registry := tools.NewRegistry()
	if err := tools.RegisterWorkspaceTools(registry, resolver, apiClient); err != nil {
		return fmt.Errorf("registering workspace tools: %w", err)
	}
	if err := tools.RegisterEntityTools(registry, apiClient); err != nil {
		return fmt.Errorf("registering entity tools: %w", err)
	}

	dispatcher, err := tools.NewDispatcher(tools.DispatcherConfig{
		Registry: registry,
		Resolver: resolver,
		Audit:    auditStore,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry:   registry,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	// The MCP endpoint sits behind bearer-token auth; health and metrics do not.
	mcpMux := http.NewServeMux()
	mcpServer.RegisterRoutes(mcpMux)

	mux := http.NewServeMux()
	mux.Handle("/mcp", auth.HTTPAuthMiddleware(verifier)(mcpMux))
	mux.HandleFunc("/health", handleHealth)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": version,
	})
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("compass-gateway configuration setup")
	fmt.Println("===================================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "gateway.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", ":8585")

	// Auth
	fmt.Println("\n--- Authorization Server ---")
	environment := prompt(reader, "Environment (production/staging/dev)", "production")
	clientID := prompt(reader, "OAuth client ID", "")
	clientSecret := prompt(reader, "OAuth client secret (or ${ENV_VAR} reference)", "${COMPASS_CLIENT_SECRET}")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# compass-gateway configuration\n")
	cfg.WriteString("# Generated by compass-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  environment: \"%s\"\n", environment))
	cfg.WriteString(fmt.Sprintf("  client_id: \"%s\"\n", clientID))
	cfg.WriteString(fmt.Sprintf("  client_secret: \"%s\"\n", clientSecret))
	cfg.WriteString("  cache_ttl: \"60s\"\n")
	cfg.WriteString("  cache_max_size: 1000\n")
	cfg.WriteString("\n")

	cfg.WriteString("workspace:\n")
	cfg.WriteString("  selection_ttl: \"24h\"\n")
	cfg.WriteString("  max_selections: 10000\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  compass-gateway serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
