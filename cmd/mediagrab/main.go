package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"mediagrab/internal/config"
	"mediagrab/internal/extractor"
	"mediagrab/pkg/httpx"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	outDir := flag.String("out", ".", "Directory to write downloaded media to")
	configPath := flag.String("config", "", "Path to config file")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mediagrab %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	text := strings.Join(flag.Args(), " ")
	if text == "" {
		// No args: read the message text from stdin.
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read stdin: %v\n", err)
			os.Exit(1)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		fmt.Fprintln(os.Stderr, "Error: message text is required")
		fmt.Fprintln(os.Stderr, "Usage: mediagrab [flags] <message text containing a link>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Setup logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	client := httpx.New(httpx.Options{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
	})
	engine := extractor.NewEngine(cfg, client, logger)

	// Cancel in-flight extraction on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	post, err := engine.ExtractMedia(ctx, text)
	if err != nil {
		logger.Error("extraction aborted", "error", err)
		os.Exit(1)
	}
	if post == nil {
		fmt.Println("no media found")
		return
	}

	fmt.Printf("%s: %s (@%s)\n", post.Website, post.AuthorName, post.AuthorHandle)
	if post.Text != "" {
		fmt.Println(post.Text)
	}
	for _, item := range post.Media {
		path := filepath.Join(*outDir, item.Filename)
		if err := os.WriteFile(path, item.Data, 0o644); err != nil {
			logger.Error("failed to write media file", "path", path, "error", err)
			os.Exit(1)
		}
		fmt.Printf("saved %s (%s, %d bytes)\n", path, item.Kind, len(item.Data))
	}
}
