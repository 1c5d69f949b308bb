package ngrok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// BinPath is the path to the ngrok binary
var BinPath = "ngrok"

// APIURL is the address of the local ngrok agent api
var APIURL = "http://localhost:4040"

type tunnelsResponse struct {
	Tunnels []struct {
		Name      string `json:"name"`
		ID        string `json:"id"`
		PublicURL string `json:"public_url"`
		Proto     string `json:"proto"`
		Config    struct {
			Addr string `json:"addr"`
		} `json:"config"`
	} `json:"tunnels"`
}

// Run launches an ngrok tunnel to the local port and waits until the agent
// reports its public url. The returned cancel function stops the tunnel.
func Run(ctx context.Context, protocol string, port int, wait time.Duration) (string, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	bin, api := BinPath, APIURL
	go func() {
		cmd := exec.CommandContext(ctx, bin, protocol, fmt.Sprintf("%d", port))
		data, err := cmd.CombinedOutput()
		if err != nil && ctx.Err() == nil {
			log.Println(fmt.Errorf("ngrok: %w: %s", err, string(data)))
		}
	}()

	client := &http.Client{
		Timeout: 10 * time.Second,
	}
	deadline := time.Now().Add(wait)
	var lastErr error
	for {
		u, err := publicURL(ctx, client, api, port)
		if err == nil && u != "" {
			return u, cancel, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			cancel()
			return "", nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	cancel()
	if lastErr == nil {
		lastErr = fmt.Errorf("no tunnel found for port %d", port)
	}
	return "", nil, fmt.Errorf("ngrok: couldn't start: %w", lastErr)
}

func publicURL(ctx context.Context, client *http.Client, api string, port int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api+"/api/tunnels", nil)
	if err != nil {
		return "", fmt.Errorf("ngrok: couldn't create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ngrok: couldn't get tunnels: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ngrok: couldn't read response: %w", err)
	}
	var tr tunnelsResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("ngrok: couldn't unmarshal response (%s): %w", string(data), err)
	}
	suffix := fmt.Sprintf(":%d", port)
	for _, t := range tr.Tunnels {
		if !strings.HasSuffix(t.Config.Addr, suffix) {
			continue
		}
		return strings.Replace(t.PublicURL, "tcp://", "http://", 1), nil
	}
	return "", nil
}
