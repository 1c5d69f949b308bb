package intent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/igolaizola/songcraft/pkg/music"
	"github.com/sashabaranov/go-openai"
)

const (
	topP               = 0.7
	extractTemperature = 0.9
	refineTemperature  = 0.7
)

type remote struct {
	client *openai.Client
	model  string
	debug  bool
}

func newRemote(key, baseURL, model string, httpClient *http.Client, debug bool) *remote {
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = httpClient
	return &remote{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		debug:  debug,
	}
}

func (r *remote) log(format string, args ...interface{}) {
	if r.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Extract asks the model for a spec and degrades to a template on any
// failure.
func (r *remote) Extract(ctx context.Context, text string) music.Spec {
	content, err := r.complete(ctx, extractPrompt(text), extractTemperature)
	if err != nil {
		log.Printf("intent: couldn't analyze request, using fallback: %v\n", err)
		return Degrade(text)
	}
	spec, err := parseSpec(content)
	if err != nil {
		log.Printf("intent: couldn't parse response, using fallback: %v\n", err)
		return Degrade(text)
	}
	return spec
}

// Refine asks the model to update the previous spec. Any failure keeps the
// previous spec.
func (r *remote) Refine(ctx context.Context, previous music.Spec, feedback string) music.Spec {
	prompt, err := refinePrompt(previous, feedback)
	if err != nil {
		log.Println(err)
		return previous
	}
	content, err := r.complete(ctx, prompt, refineTemperature)
	if err != nil {
		log.Printf("intent: couldn't refine spec: %v\n", err)
		return previous
	}
	spec, err := parseSpec(content)
	if err != nil {
		log.Printf("intent: couldn't parse refined spec: %v\n", err)
		return previous
	}
	return spec
}

func (r *remote) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		TopP:        topP,
		Temperature: temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("intent: api returned status %d: %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("intent: couldn't create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("intent: empty choices")
	}
	content := resp.Choices[0].Message.Content
	r.log("intent: raw response: %s", content)
	return content, nil
}
