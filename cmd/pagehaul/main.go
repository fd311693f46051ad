package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagehaul/pagehaul/internal/config"
	"github.com/pagehaul/pagehaul/internal/fetcher"
	"github.com/pagehaul/pagehaul/internal/observability"
)

var (
	cfgFile     string
	verbose     bool
	backendName string
	timeoutMs   int64
	waitMs      int64
	headerFlags []string
	endpoint    string
	quiet       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pagehaul",
		Short: "pagehaul — fetch page content through direct HTTP or a render service",
		Long: `pagehaul retrieves a URL's body through one of two interchangeable
backends: a direct HTTP client for static pages, or a browser-automation
render service for pages that need JavaScript. Either way the result has
the same shape, and PDF/binary payloads are rejected before they reach
text extraction.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fetchCmd creates the "fetch" subcommand.
func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [url]",
		Short: "Fetch a URL and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
	}

	cmd.Flags().StringVarP(&backendName, "backend", "b", "direct", "backend: direct or browser")
	cmd.Flags().Int64VarP(&timeoutMs, "timeout", "t", 0, "request timeout in ms (direct backend, 0 = config default)")
	cmd.Flags().Int64VarP(&waitMs, "wait", "w", 0, "post-load wait in ms (browser backend)")
	cmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "custom header, Key: Value (repeatable)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "render service endpoint override")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the body, errors to stderr")

	return cmd
}

// runFetch executes the fetch command.
func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if endpoint != "" {
		cfg.Render.Endpoint = endpoint
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	rawURL := args[0]
	if err := config.ValidateURL(rawURL); err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	headers, err := parseHeaders(headerFlags)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)
	metrics := observability.NewMetrics(logger)
	sink := observability.NewFetchSink(logger, metrics)

	f, err := buildFetcher(cfg, logger, sink)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	res := f.Fetch(context.Background(), rawURL, fetcher.Options{
		Timeout:       timeoutMs,
		WaitAfterLoad: waitMs,
		Headers:       headers,
	})
	elapsed := time.Since(start)

	if quiet {
		if !res.OK() {
			fmt.Fprintf(os.Stderr, "fetch failed: %s\n", res.PageError)
			os.Exit(1)
		}
		fmt.Print(res.Content)
		return nil
	}

	fmt.Printf("URL:      %s\n", rawURL)
	fmt.Printf("Backend:  %s\n", f.Type())
	fmt.Printf("Elapsed:  %s\n", elapsed.Round(time.Millisecond))
	if res.StatusCode != nil {
		fmt.Printf("Status:   %d\n", *res.StatusCode)
	} else {
		fmt.Printf("Status:   (none)\n")
	}
	if res.OK() {
		fmt.Printf("Size:     %d bytes\n\n", len(res.Content))
		fmt.Println(res.Content)
		return nil
	}
	fmt.Printf("Error:    %s\n", res.PageError)
	if res.Content == "" && res.PageError == "" {
		fmt.Println("Empty body with no error reported")
	}
	os.Exit(1)
	return nil
}

// buildFetcher picks the backend named on the command line.
func buildFetcher(cfg *config.Config, logger *slog.Logger, sink fetcher.Sink) (fetcher.Fetcher, error) {
	switch backendName {
	case "direct":
		return fetcher.NewDirectFetcher(cfg, logger, sink), nil
	case "browser":
		params := fetcher.NewStaticParams(cfg.Sites)
		return fetcher.NewBrowserFetcher(cfg, params, logger, sink), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (valid: direct, browser)", backendName)
	}
}

// parseHeaders turns repeated "Key: Value" flags into a map.
func parseHeaders(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(flags))
	for _, h := range flags {
		key, value, found := strings.Cut(h, ":")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Key: Value'", h)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pagehaul %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Fetcher:\n")
			fmt.Printf("  Timeout:           %s\n", cfg.Fetcher.Timeout)
			fmt.Printf("  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nRender:\n")
			fmt.Printf("  Endpoint:          %s\n", cfg.Render.Endpoint)
			fmt.Printf("  Base Timeout:      %s\n", cfg.Render.BaseTimeout)
			fmt.Printf("  Max Wait:          %s\n", cfg.Render.MaxWait)
			fmt.Printf("\nSites:\n")
			fmt.Printf("  Rules:             %d configured\n", len(cfg.Sites))
			for _, s := range cfg.Sites {
				fmt.Printf("    %s: wait %s\n", s.Host, s.WaitAfterLoad)
			}
			fmt.Printf("\nLogging:\n")
			fmt.Printf("  Level:             %s\n", cfg.Logging.Level)
			fmt.Printf("  Format:            %s\n", cfg.Logging.Format)
			return nil
		},
	}
}

// setupLogger creates a structured logger per the logging config.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	out := os.Stderr
	if cfg.Logging.Output == "stdout" {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}
