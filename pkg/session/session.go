package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/igolaizola/songcraft/pkg/music"
	"github.com/oklog/ulid/v2"
)

const (
	MinDuration     = 15
	MaxDuration     = 30
	DefaultDuration = 20
)

var (
	ErrNotFound        = errors.New("session: not found")
	ErrUnknownExample  = errors.New("session: unknown example")
	ErrEmptyText       = errors.New("session: empty text")
	ErrInvalidDuration = fmt.Errorf("session: duration must be between %d and %d seconds", MinDuration, MaxDuration)
	ErrNoSpec          = errors.New("session: there is no music to refine yet")
)

// Stage is the progress of the current action.
type Stage int

const (
	StageDescribe Stage = iota + 1
	StageAnalyze
	StageGenerate
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageDescribe:
		return "describe"
	case StageAnalyze:
		return "analyze"
	case StageGenerate:
		return "generate"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

var stepNames = []struct {
	stage Stage
	name  string
}{
	{StageDescribe, "描述音乐需求"},
	{StageAnalyze, "AI分析需求"},
	{StageGenerate, "生成音乐"},
}

// Step is an entry of the progress indicator.
type Step struct {
	Name   string `json:"name"`
	Done   bool   `json:"done"`
	Active bool   `json:"active"`
}

// Steps returns the progress indicator for the stage.
func (s Stage) Steps() []Step {
	steps := make([]Step, 0, len(stepNames))
	for _, n := range stepNames {
		steps = append(steps, Step{
			Name:   n.name,
			Done:   n.stage < s,
			Active: n.stage == s,
		})
	}
	return steps
}

// State is a snapshot of a session.
type State struct {
	ID        string       `json:"id"`
	Stage     string       `json:"stage"`
	Steps     []Step       `json:"steps"`
	Spec      *music.Spec  `json:"spec,omitempty"`
	Audio     *music.Audio `json:"audio,omitempty"`
	Prompt    string       `json:"prompt,omitempty"`
	Generated int          `json:"generated"`
	Error     string       `json:"error,omitempty"`
	Updated   time.Time    `json:"updated"`
}

type session struct {
	id string

	// busy serializes the actions of a session
	busy sync.Mutex

	lck       sync.Mutex
	stage     Stage
	spec      *music.Spec
	audio     *music.Audio
	prompt    string
	generated int
	err       string
	updated   time.Time
}

func (s *session) state() State {
	s.lck.Lock()
	defer s.lck.Unlock()
	st := State{
		ID:        s.id,
		Stage:     s.stage.String(),
		Steps:     s.stage.Steps(),
		Prompt:    s.prompt,
		Generated: s.generated,
		Error:     s.err,
		Updated:   s.updated,
	}
	if s.spec != nil {
		spec := s.spec.Clone()
		st.Spec = &spec
	}
	if s.audio != nil {
		audio := *s.audio
		st.Audio = &audio
	}
	return st
}

func (s *session) update(fn func(s *session)) {
	s.lck.Lock()
	defer s.lck.Unlock()
	fn(s)
	s.updated = time.Now()
}

type Config struct {
	Debug    bool
	Examples []Example
}

// Manager keeps the sessions in memory and runs their actions.
type Manager struct {
	extractor music.Extractor
	synth     music.Synthesizer
	examples  []Example
	debug     bool

	lck      sync.Mutex
	sessions map[string]*session
}

func New(extractor music.Extractor, synth music.Synthesizer, cfg *Config) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}
	examples := cfg.Examples
	if len(examples) == 0 {
		examples = DefaultExamples
	}
	return &Manager{
		extractor: extractor,
		synth:     synth,
		examples:  examples,
		debug:     cfg.Debug,
		sessions:  map[string]*session{},
	}
}

func (m *Manager) log(format string, args ...interface{}) {
	if m.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Examples returns the available presets.
func (m *Manager) Examples() []Example {
	return append([]Example(nil), m.examples...)
}

// Create starts a new empty session.
func (m *Manager) Create() State {
	s := &session{
		id:      ulid.Make().String(),
		stage:   StageDescribe,
		updated: time.Now(),
	}
	m.lck.Lock()
	m.sessions[s.id] = s
	m.lck.Unlock()
	m.log("session: created %s", s.id)
	return s.state()
}

// Get returns the current state of a session.
func (m *Manager) Get(id string) (State, error) {
	s, err := m.get(id)
	if err != nil {
		return State{}, err
	}
	return s.state(), nil
}

// Audio returns the current clip of a session, nil if there is none.
func (m *Manager) Audio(id string) (*music.Audio, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.lck.Lock()
	defer s.lck.Unlock()
	if s.audio == nil {
		return nil, nil
	}
	audio := *s.audio
	return &audio, nil
}

func (m *Manager) get(id string) (*session, error) {
	m.lck.Lock()
	defer m.lck.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Len returns the number of sessions in memory.
func (m *Manager) Len() int {
	m.lck.Lock()
	defer m.lck.Unlock()
	return len(m.sessions)
}

// NormalizeDuration validates a duration in seconds, zero means the default.
func NormalizeDuration(duration int) (int, error) {
	if duration == 0 {
		return DefaultDuration, nil
	}
	if duration < MinDuration || duration > MaxDuration {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDuration, duration)
	}
	return duration, nil
}

// Describe extracts a spec from the text and generates its audio.
func (m *Manager) Describe(ctx context.Context, id, text string, duration int) (State, error) {
	s, err := m.get(id)
	if err != nil {
		return State{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return State{}, ErrEmptyText
	}
	duration, err = NormalizeDuration(duration)
	if err != nil {
		return State{}, err
	}

	s.busy.Lock()
	defer s.busy.Unlock()

	s.update(func(s *session) {
		s.stage = StageAnalyze
		s.err = ""
	})
	spec := m.extractor.Extract(ctx, text)
	spec.Duration = duration
	m.log("session: %s extracted %s", id, spec)

	return m.generate(ctx, s, spec, duration)
}

// Example runs Describe with the description of the named preset.
func (m *Manager) Example(ctx context.Context, id, name string, duration int) (State, error) {
	for _, e := range m.examples {
		if e.Name == name {
			return m.Describe(ctx, id, e.Description, duration)
		}
	}
	return State{}, fmt.Errorf("%w: %s", ErrUnknownExample, name)
}

// Feedback refines the current spec with the text and regenerates the audio.
func (m *Manager) Feedback(ctx context.Context, id, text string, duration int) (State, error) {
	s, err := m.get(id)
	if err != nil {
		return State{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return State{}, ErrEmptyText
	}
	duration, err = NormalizeDuration(duration)
	if err != nil {
		return State{}, err
	}

	s.busy.Lock()
	defer s.busy.Unlock()

	var previous *music.Spec
	s.update(func(s *session) {
		previous = s.spec
		if previous != nil {
			s.stage = StageAnalyze
			s.err = ""
		}
	})
	if previous == nil {
		return State{}, ErrNoSpec
	}
	spec := m.extractor.Refine(ctx, previous.Clone(), text)
	spec.Duration = duration
	m.log("session: %s refined %s", id, spec)

	return m.generate(ctx, s, spec, duration)
}

func (m *Manager) generate(ctx context.Context, s *session, spec music.Spec, duration int) (State, error) {
	s.update(func(s *session) {
		s.spec = &spec
		s.stage = StageGenerate
	})
	audio, err := m.synth.Generate(ctx, spec, duration)
	if err != nil {
		s.update(func(s *session) {
			s.err = err.Error()
		})
		return s.state(), fmt.Errorf("session: couldn't generate music: %w", err)
	}
	s.update(func(s *session) {
		s.audio = audio
		s.prompt = audio.Prompt
		// Refinements count as new clips too
		s.generated++
		s.stage = StageDone
	})
	if audio.Fallback {
		log.Printf("session: %s got fallback audio: %s\n", s.id, audio.Prompt)
	}
	return s.state(), nil
}

// Cleanup removes the sessions idle for longer than maxIdle and returns how
// many were removed. Sessions running an action are kept.
func (m *Manager) Cleanup(maxIdle time.Duration) int {
	limit := time.Now().Add(-maxIdle)
	m.lck.Lock()
	defer m.lck.Unlock()
	var n int
	for id, s := range m.sessions {
		if !s.busy.TryLock() {
			continue
		}
		s.lck.Lock()
		idle := s.updated.Before(limit)
		s.lck.Unlock()
		s.busy.Unlock()
		if idle {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		m.log("session: removed %d idle sessions", n)
	}
	return n
}

// Janitor runs Cleanup periodically until the context is done.
func (m *Manager) Janitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup(maxIdle)
		}
	}
}
