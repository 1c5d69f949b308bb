package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/igolaizola/songcraft/pkg/intent"
	"github.com/igolaizola/songcraft/pkg/musicgen"
	"github.com/igolaizola/songcraft/pkg/ngrok"
	"github.com/igolaizola/songcraft/pkg/session"
	"github.com/igolaizola/songcraft/pkg/synth"
	"github.com/pkg/browser"
)

type Config struct {
	Debug      bool
	Addr       string
	Open       bool
	Ngrok      bool
	Timeout    time.Duration
	SessionTTL time.Duration
	Examples   string

	LLMKey   string
	LLMURL   string
	LLMModel string

	ModelURL     string
	ModelToken   string
	ModelName    string
	ModelOptions map[string]string
}

// Serve starts the music creation web service.
func Serve(ctx context.Context, cfg *Config) error {
	log.Println("web: server started")
	defer log.Println("web: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	extractor, mode := intent.New(&intent.Config{
		Debug:   cfg.Debug,
		Key:     cfg.LLMKey,
		BaseURL: cfg.LLMURL,
		Model:   cfg.LLMModel,
	})
	model := musicgen.New(&musicgen.Config{
		Debug:   cfg.Debug,
		BaseURL: cfg.ModelURL,
		Token:   cfg.ModelToken,
		Model:   cfg.ModelName,
		Options: cfg.ModelOptions,
	})
	syn := synth.New(model, &synth.Config{
		Debug: cfg.Debug,
	})

	var examples []session.Example
	if cfg.Examples != "" {
		var err error
		examples, err = session.LoadExamples(cfg.Examples)
		if err != nil {
			return fmt.Errorf("web: couldn't load examples: %w", err)
		}
	}
	manager := session.New(extractor, syn, &session.Config{
		Debug:    cfg.Debug,
		Examples: examples,
	})

	// Evict idle sessions
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	go manager.Janitor(ctx, ttl/4, ttl)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	status := func() *Status {
		return &Status{
			Mode:     string(mode),
			Model:    syn.Model(),
			Loaded:   syn.Loaded(),
			Sessions: manager.Len(),
		}
	}
	mux, err := newRouter(manager, status, timeout, cfg.Debug)
	if err != nil {
		return err
	}

	// Create server
	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("web: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("web: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: mux,
	}
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("Starting server on %s (%s mode)", note, mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v\n", err)
			cancel()
		}
	}()

	u := fmt.Sprintf("http://localhost:%d", port)
	if host != "" {
		u = fmt.Sprintf("http://%s:%d", host, port)
	}
	if cfg.Ngrok {
		public, stop, err := ngrok.Run(ctx, "http", port, 30*time.Second)
		if err != nil {
			log.Printf("web: couldn't start tunnel: %v\n", err)
		} else {
			defer stop()
			log.Printf("web: public url %s\n", public)
			u = public
		}
	}
	if cfg.Open {
		if err := browser.OpenURL(u); err != nil {
			log.Printf("web: couldn't open browser: %v\n", err)
		}
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: couldn't shutdown server: %w", err)
	}
	return nil
}
