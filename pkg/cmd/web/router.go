package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/igolaizola/songcraft/pkg/session"
	"github.com/igolaizola/songcraft/pkg/sound"
)

//go:embed static/*
var staticContent embed.FS

// Status describes the running service.
type Status struct {
	Mode     string `json:"mode"`
	Model    string `json:"model"`
	Loaded   bool   `json:"loaded"`
	Sessions int    `json:"sessions"`
}

type actionRequest struct {
	Text     string `json:"text"`
	Duration int    `json:"duration"`
}

func newRouter(manager *session.Manager, status func() *Status, timeout time.Duration, debug bool) (http.Handler, error) {
	// Create static content
	staticFS, err := iofs.Sub(staticContent, "static")
	if err != nil {
		return nil, fmt.Errorf("web: couldn't load static content: %w", err)
	}

	// Create router
	mux := chi.NewRouter()

	// Add middleware
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(timeout))

	// Create subrouter for api endpoints
	r := mux.Group(func(r chi.Router) {
		if debug {
			r.Use(middleware.Logger)
		}
	})

	// Handler to serve the static files
	mux.Get("/*", http.StripPrefix("/", http.FileServer(http.FS(staticFS))).ServeHTTP)

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status())
	})

	r.Get("/api/examples", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, manager.Examples())
	})

	r.Post("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, manager.Create())
	})

	r.Get("/api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		st, err := manager.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, st)
	})

	r.Post("/api/sessions/{id}/describe", func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("couldn't decode request: %v", err), http.StatusBadRequest)
			return
		}
		st, err := manager.Describe(r.Context(), chi.URLParam(r, "id"), req.Text, req.Duration)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, st)
	})

	r.Post("/api/sessions/{id}/examples/{name}", func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, fmt.Sprintf("couldn't decode request: %v", err), http.StatusBadRequest)
				return
			}
		}
		name, err := url.PathUnescape(chi.URLParam(r, "name"))
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid example name: %v", err), http.StatusBadRequest)
			return
		}
		st, err := manager.Example(r.Context(), chi.URLParam(r, "id"), name, req.Duration)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, st)
	})

	r.Post("/api/sessions/{id}/feedback", func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("couldn't decode request: %v", err), http.StatusBadRequest)
			return
		}
		st, err := manager.Feedback(r.Context(), chi.URLParam(r, "id"), req.Text, req.Duration)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, st)
	})

	r.Get("/api/sessions/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		audio, err := manager.Audio(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if audio == nil {
			http.Error(w, "no audio generated yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		if r.URL.Query().Get("download") == "true" {
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(audio.Path)))
		}
		http.ServeFile(w, r, audio.Path)
	})

	r.Get("/api/sessions/{id}/wave", func(w http.ResponseWriter, r *http.Request) {
		audio, err := manager.Audio(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if audio == nil {
			http.Error(w, "no audio generated yet", http.StatusNotFound)
			return
		}
		a, err := sound.NewAnalyzer(audio.Path)
		if err != nil {
			log.Println("couldn't analyze audio:", err)
			http.Error(w, fmt.Sprintf("couldn't analyze audio: %v", err), http.StatusInternalServerError)
			return
		}
		b, err := a.PlotWave(filepath.Base(audio.Path))
		if err != nil {
			log.Println("couldn't plot wave:", err)
			http.Error(w, fmt.Sprintf("couldn't plot wave: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(b)
	})

	return mux, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("couldn't encode response:", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrUnknownExample):
		code = http.StatusNotFound
	case errors.Is(err, session.ErrEmptyText), errors.Is(err, session.ErrInvalidDuration):
		code = http.StatusBadRequest
	case errors.Is(err, session.ErrNoSpec):
		code = http.StatusConflict
	default:
		log.Println("web:", err)
	}
	http.Error(w, err.Error(), code)
}
