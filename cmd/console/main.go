package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
	Tool       string
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    30 * time.Second,
		Tool:       getEnv("CONSOLE_TOOL", "rake"),
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not reach the verse engine at %s. Start it with: go run ./cmd/api\n", cfg.APIBaseURL)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The event stream must not share the request timeout
	events := make(chan SSEEvent, 64)
	go func() {
		if err := listenToSSE(ctx, &http.Client{}, cfg.APIBaseURL, events); err != nil && ctx.Err() == nil {
			events <- SSEEvent{Type: "stream.error", Data: map[string]interface{}{"error": err.Error()}}
		}
	}()

	p := tea.NewProgram(NewConsoleUI(cfg, client, events), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
