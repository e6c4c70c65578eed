package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"materna-backend/openai"
	"materna-backend/retrieval"
)

type fakeIndex struct {
	passages []retrieval.Passage
	err      error
	gotK     int
}

func (f *fakeIndex) SimilaritySearch(_ context.Context, _ string, k int) ([]retrieval.Passage, error) {
	f.gotK = k
	return f.passages, f.err
}

type fakeLLM struct {
	out     string
	err     error
	panics  bool
	block   bool
	prompt  string
	gotOpts openai.GenerateOptions
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts openai.GenerateOptions) (string, error) {
	f.prompt, f.gotOpts = prompt, opts
	if f.panics {
		panic("model crashed")
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, f.err
}

const goodReport = `1. Patient Overview
Jane is 24 weeks pregnant.
2. Health Status Analysis
Haemoglobin is borderline.
3. Potential Risk Indicators
Mild anaemia.
4. Recommendations
Iron supplementation.
5. Next Steps
Repeat CBC in 4 weeks.`

func newGen(t *testing.T, idx retrieval.Index, llm TextGenerator) *Generator {
	t.Helper()
	g, err := NewGenerator(idx, llm, Options{})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestGenerateReturnsModelOutput(t *testing.T) {
	idx := &fakeIndex{passages: []retrieval.Passage{
		{Text: strings.Repeat("x", 500)},
		{Text: "Iron supplementation guidance."},
	}}
	llm := &fakeLLM{out: "  " + goodReport + "\n"}
	res := newGen(t, idx, llm).Generate(context.Background(), "Patient Summary:\nName: Jane Doe")

	if res.Outcome != OutcomeGenerated || res.Content != goodReport {
		t.Fatalf("unexpected result %+v", res)
	}
	if idx.gotK != 3 {
		t.Fatalf("expected top_k 3, got %d", idx.gotK)
	}
	if strings.Contains(llm.prompt, strings.Repeat("x", 301)) {
		t.Fatal("passage was not truncated to 300 chars")
	}
	for _, want := range []string{"You are an expert obstetrician", "Patient Profile:\nPatient Summary:", "Guidelines:\n", "Iron supplementation guidance.", "5. Next Steps"} {
		if !strings.Contains(llm.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if llm.gotOpts.MaxNewTokens != 800 || !llm.gotOpts.Deterministic {
		t.Fatalf("unexpected decoding options %+v", llm.gotOpts)
	}
}

func TestGenerateAlwaysHasFiveSections(t *testing.T) {
	cases := []struct {
		name string
		idx  *fakeIndex
		llm  *fakeLLM
		want Outcome
	}{
		{"short output", &fakeIndex{}, &fakeLLM{out: "ok"}, OutcomeFallback},
		{"empty output", &fakeIndex{}, &fakeLLM{out: "   "}, OutcomeFallback},
		{"model error", &fakeIndex{}, &fakeLLM{err: errors.New("cuda out of memory")}, OutcomeError},
		{"model panic", &fakeIndex{}, &fakeLLM{panics: true}, OutcomeError},
		{"retrieval error", &fakeIndex{err: errors.New("index offline")}, &fakeLLM{out: goodReport}, OutcomeGenerated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := newGen(t, tc.idx, tc.llm).Generate(context.Background(), "Patient Summary:")
			if res.Outcome != tc.want {
				t.Fatalf("outcome = %s, want %s", res.Outcome, tc.want)
			}
			if strings.TrimSpace(res.Content) == "" || !HasAllSections(res.Content) {
				t.Fatalf("report missing sections:\n%s", res.Content)
			}
		})
	}
}

func TestGenerateTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := newGen(t, &fakeIndex{}, &fakeLLM{block: true}).Generate(ctx, "Patient Summary:")
	if res.Outcome != OutcomeTimeout {
		t.Fatalf("outcome = %s, want timeout", res.Outcome)
	}
	if !HasAllSections(res.Content) {
		t.Fatal("timeout report missing sections")
	}
}

func TestBuildPromptTruncatesProfileOnly(t *testing.T) {
	profile := strings.Repeat("p", 5000)
	p := BuildPrompt(profile, "guideline text", 1000)
	if n := len([]rune(p)); n != 1000 {
		t.Fatalf("prompt length = %d, want 1000", n)
	}
	if !strings.Contains(p, "guideline text") || !strings.HasSuffix(p, "5. Next Steps\n") {
		t.Fatalf("prompt lost its fixed parts:\n%s", p)
	}
}

func TestNewGeneratorRequiresDependencies(t *testing.T) {
	if _, err := NewGenerator(nil, &fakeLLM{}, Options{}); err == nil {
		t.Fatal("expected error without index")
	}
	if _, err := NewGenerator(&fakeIndex{}, nil, Options{}); err == nil {
		t.Fatal("expected error without text generator")
	}
}
