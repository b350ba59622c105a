package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jwebster45206/verse-engine/internal/handlers"
	"github.com/jwebster45206/verse-engine/pkg/plot"
	"github.com/jwebster45206/verse-engine/pkg/trigger"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// call sends a request and decodes a JSON answer into out
func call(client *http.Client, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func getWorld(client *http.Client, baseURL string) (*handlers.WorldResponse, error) {
	var w handlers.WorldResponse
	if err := call(client, http.MethodGet, baseURL+"/v1/world", nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func listSites(client *http.Client, baseURL string) ([]trigger.GateStatus, error) {
	var sites []trigger.GateStatus
	err := call(client, http.MethodGet, baseURL+"/v1/sites", nil, &sites)
	return sites, err
}

func listActions(client *http.Client, baseURL string) ([]trigger.ActionStatus, error) {
	var actions []trigger.ActionStatus
	err := call(client, http.MethodGet, baseURL+"/v1/actions", nil, &actions)
	return actions, err
}

func presentAt(client *http.Client, baseURL, siteID string) (bool, error) {
	var resp handlers.PresentResponse
	err := call(client, http.MethodPost, fmt.Sprintf("%s/v1/sites/%s/present", baseURL, siteID), nil, &resp)
	return resp.Started, err
}

func switchMode(client *http.Client, baseURL, view string) (bool, error) {
	var resp handlers.ModeResponse
	err := call(client, http.MethodPost, baseURL+"/v1/session/mode", handlers.ModeRequest{View: view}, &resp)
	return resp.Switched, err
}

func workPlot(client *http.Client, baseURL, plotID, tool string) (plot.State, error) {
	var st plot.State
	err := call(client, http.MethodPost, fmt.Sprintf("%s/v1/plots/%s/work", baseURL, plotID), handlers.WorkRequest{Tool: tool}, &st)
	return st, err
}

func runAction(client *http.Client, baseURL, actionID string) (bool, error) {
	var resp handlers.ActionResponse
	err := call(client, http.MethodPost, fmt.Sprintf("%s/v1/actions/%s", baseURL, actionID), nil, &resp)
	return resp.Started, err
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// listenToSSE connects to the SSE endpoint and streams events to a channel
func listenToSSE(ctx context.Context, client *http.Client, baseURL string, eventChan chan<- SSEEvent) error {
	// Per-character text events are left out; the verse panel polls the buffer
	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/v1/events?types=ambient,audio,visual,text.title_changed", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent SSEEvent

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		if line == "" {
			// Empty line signals end of event
			if currentEvent.Type != "" {
				eventChan <- currentEvent
				currentEvent = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			currentEvent.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			var payload struct {
				Data map[string]interface{} `json:"data"`
			}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err == nil {
				currentEvent.Data = payload.Data
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}

	return nil
}
