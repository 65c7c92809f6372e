package llmutil_test

import (
	"reflect"
	"testing"

	"github.com/efebarandurmaz/archscore/internal/llm"
	"github.com/efebarandurmaz/archscore/internal/llmutil"
)

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "no fences", input: "plain text", want: "plain text"},
		{name: "json fence", input: "```json\n[1, 2]\n```", want: "[1, 2]"},
		{name: "prose around fence", input: "Here you go:\n```\n{}\n```\nDone.", want: "{}"},
		{name: "thinking then fence", input: "<think>hmm</think>```\nx\n```", want: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := llmutil.StripMarkdownFences(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out []string
	if err := llmutil.DecodeJSON("Sure!\n```json\n[\"add a cache\", \"replicate db\"]\n```", &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if !reflect.DeepEqual(out, []string{"add a cache", "replicate db"}) {
		t.Errorf("out = %v", out)
	}

	var obj struct{ Summary string }
	if err := llmutil.DecodeJSON(`prefix {"summary": "ok"} suffix`, &obj); err != nil || obj.Summary != "ok" {
		t.Errorf("obj = %+v err = %v", obj, err)
	}
	if err := llmutil.DecodeJSON("no json here", &out); err == nil {
		t.Error("expected error")
	}
}

func TestBullets(t *testing.T) {
	got := llmutil.Bullets("1. Add a load balancer\n\n- Replicate the database\n* Cache reads\n2) Add a gateway")
	want := []string{"Add a load balancer", "Replicate the database", "Cache reads", "Add a gateway"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRegisterDefaultProviders(t *testing.T) {
	f := llm.NewFactory()
	llmutil.RegisterDefaultProviders(f)
	want := []string{"anthropic", "custom", "deepseek", "groq", "ollama", "openai"}
	if got := f.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v", got)
	}
	p, err := f.Create(llm.ProviderConfig{Provider: "groq", Model: "m"})
	if err != nil || p == nil || p.Name() != "openai" {
		t.Errorf("groq provider = %v err = %v", p, err)
	}
}
