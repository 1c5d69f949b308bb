package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/igolaizola/songcraft/pkg/music"
	"github.com/kaptinlin/jsonrepair"
)

var jsonSpan = regexp.MustCompile(`(?s)\{.*\}`)

var errNoJSON = errors.New("intent: no json object found in response")

// parseSpec extracts the first {...} span of a model response and decodes it
// as a spec. Single quotes are normalized to double quotes first; if the
// result still isn't valid JSON the original span is repaired and decoded
// again.
func parseSpec(content string) (music.Spec, error) {
	span := jsonSpan.FindString(content)
	if span == "" {
		return music.Spec{}, errNoJSON
	}
	spec, err := decodeSpec([]byte(strings.ReplaceAll(span, "'", `"`)))
	if err == nil {
		return spec, nil
	}
	fixed, rerr := jsonrepair.JSONRepair(span)
	if rerr != nil {
		return music.Spec{}, fmt.Errorf("intent: couldn't decode json: %w", err)
	}
	spec, err = decodeSpec([]byte(fixed))
	if err != nil {
		return music.Spec{}, fmt.Errorf("intent: couldn't decode repaired json: %w", err)
	}
	return spec, nil
}

// rawSpec mirrors music.Spec but tolerates the loose types models reply with.
type rawSpec struct {
	Style       string          `json:"style"`
	Mood        string          `json:"mood"`
	Instruments json.RawMessage `json:"instruments"`
	Tempo       string          `json:"tempo"`
	Duration    json.RawMessage `json:"duration"`
	Prompt      string          `json:"music_prompt"`
}

func decodeSpec(b []byte) (music.Spec, error) {
	var raw rawSpec
	if err := json.Unmarshal(b, &raw); err != nil {
		return music.Spec{}, err
	}
	instruments, err := decodeInstruments(raw.Instruments)
	if err != nil {
		return music.Spec{}, err
	}
	return music.Spec{
		Style:       raw.Style,
		Mood:        raw.Mood,
		Instruments: instruments,
		Tempo:       raw.Tempo,
		Duration:    decodeDuration(raw.Duration),
		Prompt:      raw.Prompt,
	}, nil
}

var instrumentSeparators = strings.NewReplacer("、", ",", "，", ",", "/", ",")

// decodeInstruments accepts a list of names or a single string with one or
// more comma separated names.
func decodeInstruments(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("intent: invalid instruments %s", string(raw))
	}
	for _, v := range strings.Split(instrumentSeparators.Replace(single), ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list, nil
}

// decodeDuration reads a number or a numeric string, anything else is zero.
// The caller overrides the duration anyway.
func decodeDuration(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(math.Round(f))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int(math.Round(f))
		}
	}
	return 0
}
