package session

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadExamples(t *testing.T) {
	want := []Example{
		{Name: "爵士", Icon: "🎷", Description: "深夜酒吧里的慵懒爵士乐"},
		{Name: "晨跑", Description: "充满活力的晨跑音乐，快速的节奏"},
	}
	tests := []struct {
		file    string
		content string
	}{
		{"examples.json", `[
  {"name": "爵士", "icon": "🎷", "description": "深夜酒吧里的慵懒爵士乐"},
  {"name": "晨跑", "description": "充满活力的晨跑音乐，快速的节奏"},
  {"name": "空的", "description": ""}
]`},
		{"examples.yaml", `- name: 爵士
  icon: 🎷
  description: 深夜酒吧里的慵懒爵士乐
- name: 晨跑
  description: 充满活力的晨跑音乐，快速的节奏
- name: 爵士
  description: duplicated
`},
		{"examples.csv", "name,icon,description\n爵士,🎷,深夜酒吧里的慵懒爵士乐\n晨跑,,充满活力的晨跑音乐，快速的节奏\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			got, err := LoadExamples(path)
			if err != nil {
				t.Fatalf("LoadExamples(%q) err = %v; want nil", tt.file, err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("LoadExamples(%q) = %v; want %v", tt.file, got, want)
			}
		})
	}
}

func TestLoadExamplesErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		file    string
		content string
	}{
		{"examples.txt", "游戏配乐"},
		{"empty.json", "[]"},
		{"broken.json", "[{"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadExamples(path); err == nil {
				t.Fatalf("LoadExamples(%q) err = nil; want error", tt.file)
			}
		})
	}
	if _, err := LoadExamples(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("LoadExamples(missing) err = nil; want error")
	}
}

func TestDefaultExamples(t *testing.T) {
	m := New(nil, nil, nil)
	if got := m.Examples(); !reflect.DeepEqual(got, DefaultExamples) {
		t.Fatalf("Examples() = %v; want %v", got, DefaultExamples)
	}
	custom := []Example{{Name: "a", Description: "b"}}
	m = New(nil, nil, &Config{Examples: custom})
	if got := m.Examples(); !reflect.DeepEqual(got, custom) {
		t.Fatalf("Examples() = %v; want %v", got, custom)
	}
}
