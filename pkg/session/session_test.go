package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/igolaizola/songcraft/pkg/intent"
	"github.com/igolaizola/songcraft/pkg/music"
	"github.com/igolaizola/songcraft/pkg/musicgen"
	"github.com/igolaizola/songcraft/pkg/synth"
)

type fakeSynth struct {
	sync.Mutex
	err       error
	specs     []music.Spec
	durations []int
}

func (f *fakeSynth) Generate(ctx context.Context, spec music.Spec, duration int) (*music.Audio, error) {
	f.Lock()
	defer f.Unlock()
	f.specs = append(f.specs, spec)
	f.durations = append(f.durations, duration)
	if f.err != nil {
		return nil, f.err
	}
	return &music.Audio{
		Path:       "/tmp/clip.wav",
		Prompt:     synth.BuildPrompt(spec),
		SampleRate: 32000,
		Samples:    32000 * duration,
	}, nil
}

type fakeModel struct {
	sync.Mutex
	inputs []string
}

func (f *fakeModel) Name() string { return "facebook/musicgen-small" }
func (f *fakeModel) Options() map[string]string { return nil }

func (f *fakeModel) Load(ctx context.Context, model string, options map[string]string) error {
	return nil
}

func (f *fakeModel) Generate(ctx context.Context, req *musicgen.Request) (*musicgen.Response, error) {
	f.Lock()
	defer f.Unlock()
	f.inputs = append(f.inputs, req.Inputs)
	return &musicgen.Response{SampleRate: 32000, Audio: []float64{0, 0.1, 0.2, 0.1}}, nil
}

func TestEndToEndMock(t *testing.T) {
	model := &fakeModel{}
	syn := synth.New(model, &synth.Config{TempDir: t.TempDir()})
	m := New(intent.NewMock(), syn, nil)

	id := m.Create().ID
	st, err := m.Describe(context.Background(), id, "激昂的战斗游戏配乐", 25)
	if err != nil {
		t.Fatalf("Describe() err = %v; want nil", err)
	}
	want := music.Spec{
		Style:       "史诗音乐",
		Mood:        "激昂",
		Instruments: []string{"管弦乐", "鼓", "合唱"},
		Tempo:       "快速",
		Duration:    25,
		Prompt:      "Epic and intense battle music with orchestra, powerful drums and choir, heroic atmosphere, fast tempo",
	}
	if st.Spec == nil || !reflect.DeepEqual(*st.Spec, want) {
		t.Fatalf("Spec = %v; want %v", st.Spec, want)
	}
	if len(model.inputs) != 1 || model.inputs[0] != want.Prompt {
		t.Fatalf("model inputs = %q; want [%q]", model.inputs, want.Prompt)
	}
	if st.Prompt != want.Prompt {
		t.Fatalf("Prompt = %q; want %q", st.Prompt, want.Prompt)
	}
	if st.Audio == nil || st.Audio.Fallback {
		t.Fatalf("Audio = %+v; want generated audio", st.Audio)
	}
	if st.Generated != 1 || st.Stage != "done" {
		t.Fatalf("state = %+v; want one generation and done", st)
	}

	// Refine keeps the spec but speeds it up
	st, err = m.Feedback(context.Background(), id, "节奏再快一点", 0)
	if err != nil {
		t.Fatalf("Feedback() err = %v; want nil", err)
	}
	if st.Spec.Tempo != "快速" || st.Spec.Duration != DefaultDuration {
		t.Fatalf("Spec = %v; want fast tempo and default duration", st.Spec)
	}
	if st.Generated != 2 {
		t.Fatalf("Generated = %d; want 2", st.Generated)
	}
}

func TestDescribeOverridesDuration(t *testing.T) {
	f := &fakeSynth{}
	m := New(intent.NewMock(), f, nil)
	id := m.Create().ID
	for _, d := range []int{15, 30} {
		st, err := m.Describe(context.Background(), id, "悲伤的钢琴曲", d)
		if err != nil {
			t.Fatalf("Describe() err = %v; want nil", err)
		}
		if st.Spec.Duration != d {
			t.Fatalf("Duration = %d; want %d", st.Spec.Duration, d)
		}
	}
	if !reflect.DeepEqual(f.durations, []int{15, 30}) {
		t.Fatalf("synth durations = %v; want [15 30]", f.durations)
	}
}

func TestDescribeErrors(t *testing.T) {
	m := New(intent.NewMock(), &fakeSynth{}, nil)
	id := m.Create().ID
	tests := []struct {
		name     string
		id       string
		text     string
		duration int
		want     error
	}{
		{"unknown session", "missing", "开心", 20, ErrNotFound},
		{"empty text", id, "   ", 20, ErrEmptyText},
		{"too short", id, "开心", 10, ErrInvalidDuration},
		{"too long", id, "开心", 31, ErrInvalidDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Describe(context.Background(), tt.id, tt.text, tt.duration)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Describe() err = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestFeedbackWithoutSpec(t *testing.T) {
	f := &fakeSynth{}
	m := New(intent.NewMock(), f, nil)
	id := m.Create().ID
	if _, err := m.Feedback(context.Background(), id, "更快", 20); !errors.Is(err, ErrNoSpec) {
		t.Fatalf("Feedback() err = %v; want %v", err, ErrNoSpec)
	}
	if len(f.specs) != 0 {
		t.Fatalf("synth called %d times; want 0", len(f.specs))
	}
	st, _ := m.Get(id)
	if st.Stage != "describe" {
		t.Fatalf("Stage = %q; want describe", st.Stage)
	}
}

func TestExample(t *testing.T) {
	f := &fakeSynth{}
	m := New(intent.NewMock(), f, nil)
	id := m.Create().ID
	st, err := m.Example(context.Background(), id, "中国古风", 0)
	if err != nil {
		t.Fatalf("Example() err = %v; want nil", err)
	}
	if st.Spec.Style != "中国古风" {
		t.Fatalf("Style = %q; want 中国古风", st.Spec.Style)
	}
	if _, err := m.Example(context.Background(), id, "爵士", 0); !errors.Is(err, ErrUnknownExample) {
		t.Fatalf("Example() err = %v; want %v", err, ErrUnknownExample)
	}
}

func TestGenerateFailure(t *testing.T) {
	errLoad := errors.New("model load failed")
	m := New(intent.NewMock(), &fakeSynth{err: errLoad}, nil)
	id := m.Create().ID
	st, err := m.Describe(context.Background(), id, "开心", 20)
	if !errors.Is(err, errLoad) {
		t.Fatalf("Describe() err = %v; want %v", err, errLoad)
	}
	if st.Stage != "generate" || st.Error == "" || st.Generated != 0 {
		t.Fatalf("state = %+v; want failed generation", st)
	}
	if st.Spec == nil {
		t.Fatal("Spec = nil; want extracted spec")
	}
	audio, err := m.Audio(id)
	if err != nil || audio != nil {
		t.Fatalf("Audio() = %v, %v; want nil, nil", audio, err)
	}
}

func TestSteps(t *testing.T) {
	tests := []struct {
		stage      Stage
		wantDone   []bool
		wantActive []bool
	}{
		{StageDescribe, []bool{false, false, false}, []bool{true, false, false}},
		{StageAnalyze, []bool{true, false, false}, []bool{false, true, false}},
		{StageGenerate, []bool{true, true, false}, []bool{false, false, true}},
		{StageDone, []bool{true, true, true}, []bool{false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			steps := tt.stage.Steps()
			for i, s := range steps {
				if s.Done != tt.wantDone[i] || s.Active != tt.wantActive[i] {
					t.Fatalf("Steps()[%d] = %+v; want done %v active %v", i, s, tt.wantDone[i], tt.wantActive[i])
				}
			}
		})
	}
}

func TestStateIsCopy(t *testing.T) {
	m := New(intent.NewMock(), &fakeSynth{}, nil)
	id := m.Create().ID
	st, err := m.Describe(context.Background(), id, "开心", 20)
	if err != nil {
		t.Fatalf("Describe() err = %v; want nil", err)
	}
	st.Spec.Instruments[0] = "changed"
	again, _ := m.Get(id)
	if again.Spec.Instruments[0] == "changed" {
		t.Fatal("session state was modified through a snapshot")
	}
}

func TestCleanup(t *testing.T) {
	m := New(intent.NewMock(), &fakeSynth{}, nil)
	old := m.Create().ID
	m.sessions[old].updated = time.Now().Add(-2 * time.Hour)
	fresh := m.Create().ID

	if n := m.Cleanup(time.Hour); n != 1 {
		t.Fatalf("Cleanup() = %d; want 1", n)
	}
	if _, err := m.Get(old); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(old) err = %v; want %v", err, ErrNotFound)
	}
	if _, err := m.Get(fresh); err != nil {
		t.Fatalf("Get(fresh) err = %v; want nil", err)
	}
}

func TestNormalizeDuration(t *testing.T) {
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{0, 20, false},
		{15, 15, false},
		{30, 30, false},
		{14, 0, true},
		{-1, 0, true},
	}
	for _, tt := range tests {
		got, err := NormalizeDuration(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("NormalizeDuration(%d) = %d, %v; want %d, error %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
