package musicgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultBaseURL = "http://127.0.0.1:8000"
	DefaultModel   = "facebook/musicgen-small"
)

type Client struct {
	client  *http.Client
	baseURL string
	token   string
	model   string
	options map[string]string
	debug   bool
	backoff []time.Duration
}

type Config struct {
	Debug   bool
	BaseURL string
	Token   string
	Model   string
	Options map[string]string
	Client  *http.Client
}

func New(cfg *Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 5 * time.Minute,
		}
	}
	return &Client{
		client:  client,
		baseURL: baseURL,
		token:   cfg.Token,
		model:   model,
		options: cfg.Options,
		debug:   cfg.Debug,
		backoff: defaultBackoff,
	}
}

// Name returns the configured model name.
func (c *Client) Name() string {
	return c.model
}

// Options returns the full load options.
func (c *Client) Options() map[string]string {
	return c.options
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

type loadRequest struct {
	Model   string            `json:"model"`
	Options map[string]string `json:"options,omitempty"`
}

type loadResponse struct {
	Model      string `json:"model"`
	SampleRate int    `json:"sample_rate"`
}

// Load asks the inference server to load the model. A nil options map sends
// only the model name. It is tried once, callers own the retry policy.
func (c *Client) Load(ctx context.Context, model string, options map[string]string) error {
	req := &loadRequest{
		Model:   model,
		Options: options,
	}
	var resp loadResponse
	if _, err := c.do(ctx, "POST", "load", req, &resp, 1); err != nil {
		return fmt.Errorf("musicgen: couldn't load model %s: %w", model, err)
	}
	c.log("musicgen: model %s loaded (sample rate %d)", model, resp.SampleRate)
	return nil
}

type Parameters struct {
	DoSample     bool    `json:"do_sample"`
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
}

type Request struct {
	Inputs     string     `json:"inputs"`
	Parameters Parameters `json:"parameters"`
}

type Response struct {
	SampleRate int       `json:"sample_rate"`
	Audio      []float64 `json:"audio"`
}

// Generate runs inference for a single prompt.
func (c *Client) Generate(ctx context.Context, req *Request) (*Response, error) {
	var resp Response
	if _, err := c.do(ctx, "POST", "generate", req, &resp, generateAttempts); err != nil {
		return nil, fmt.Errorf("musicgen: couldn't generate: %w", err)
	}
	return &resp, nil
}

const generateAttempts = 3

var defaultBackoff = []time.Duration{
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, maxAttempts int) ([]byte, error) {
	attempts := 0
	var err error
	for {
		if err != nil {
			log.Println("musicgen: retrying...", err)
		}
		var b []byte
		b, err = c.doAttempt(ctx, method, path, in, out)
		if err == nil {
			return b, nil
		}
		attempts++
		if attempts >= maxAttempts {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}

		var errStatus StatusError
		if !errors.As(err, &errStatus) {
			return nil, err
		}
		switch errStatus.Code {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		default:
			return nil, err
		}

		idx := attempts - 1
		if idx >= len(c.backoff) {
			idx = len(c.backoff) - 1
		}
		wait := c.backoff[idx]
		c.log("musicgen: server seems to be down, waiting %s before retrying", wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// StatusError is returned when the server answers with a non 2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

func (c *Client) doAttempt(ctx context.Context, method, path string, in, out any) ([]byte, error) {
	var body []byte
	var reqBody io.Reader
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("musicgen: couldn't marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	c.log("musicgen: do %s %s %s", method, path, truncate(string(body)))

	u := fmt.Sprintf("%s/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("musicgen: couldn't create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("musicgen: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("musicgen: couldn't read response body: %w", err)
	}
	c.log("musicgen: response %s %s %d %s", method, path, resp.StatusCode, truncate(string(respBody)))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("musicgen: %s %s failed: %w", method, u, StatusError{
			Code:    resp.StatusCode,
			Message: truncate(strings.TrimSpace(string(respBody))),
		})
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("musicgen: couldn't unmarshal response body (%T): %w", out, err)
		}
	}
	return respBody, nil
}

// truncate cuts s to at most 100 bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= 100 {
		return s
	}
	i := 100
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "..."
}
