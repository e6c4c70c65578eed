// Package report turns a patient context into a five-section maternal
// health assessment using retrieved guideline passages and a text model.
package report

import (
	"context"
	"errors"
	"log"
	"strings"
	"unicode/utf8"

	"materna-backend/openai"
	"materna-backend/retrieval"
)

// TextGenerator is the text model capability. *openai.Client implements it.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts openai.GenerateOptions) (string, error)
}

type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	OutcomeFallback  Outcome = "fallback"
	OutcomeError     Outcome = "error"
	OutcomeTimeout   Outcome = "timeout"
)

// Result always carries a non-empty report. Outcome says how it was produced.
type Result struct {
	Content string
	Outcome Outcome
}

type Options struct {
	TopK           int
	PassageChars   int
	MaxPromptChars int
	MaxNewTokens   int
	MinReportChars int
	// Temperature is forwarded for non-deterministic decoding only.
	Temperature   float32
	Deterministic bool
}

func DefaultOptions() Options {
	return Options{
		TopK:           3,
		PassageChars:   300,
		MaxPromptChars: 12000,
		MaxNewTokens:   800,
		MinReportChars: 50,
		Temperature:    0.3,
		Deterministic:  true,
	}
}

type Generator struct {
	index retrieval.Index
	llm   TextGenerator
	opts  Options
}

// NewGenerator wires the index and text model. Both are required so a
// misconfigured service fails at startup instead of on the first job.
func NewGenerator(index retrieval.Index, llm TextGenerator, opts Options) (*Generator, error) {
	if index == nil {
		return nil, errors.New("report: retrieval index is required")
	}
	if llm == nil {
		return nil, errors.New("report: text generator is required")
	}
	d := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = d.TopK
	}
	if opts.PassageChars <= 0 {
		opts.PassageChars = d.PassageChars
	}
	if opts.MaxPromptChars <= 0 {
		opts.MaxPromptChars = d.MaxPromptChars
	}
	if opts.MaxNewTokens <= 0 {
		opts.MaxNewTokens = d.MaxNewTokens
	}
	if opts.MinReportChars <= 0 {
		opts.MinReportChars = d.MinReportChars
	}
	return &Generator{index: index, llm: llm, opts: opts}, nil
}

// Generate never fails: retrieval errors degrade to an empty guidelines
// block, model errors and panics become the error report.
func (g *Generator) Generate(ctx context.Context, patientContext string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[report] generation panic: %v", r)
			res = Result{Content: ErrorReport(), Outcome: OutcomeError}
		}
	}()

	guidelines := g.guidelines(ctx, patientContext)
	prompt := BuildPrompt(patientContext, guidelines, g.opts.MaxPromptChars)

	text, err := g.llm.Generate(ctx, prompt, openai.GenerateOptions{
		MaxNewTokens:  g.opts.MaxNewTokens,
		Temperature:   g.opts.Temperature,
		Deterministic: g.opts.Deterministic,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Printf("[report] generation timed out: %v", err)
			return Result{Content: TimeoutReport(), Outcome: OutcomeTimeout}
		}
		log.Printf("[report] generation error: %v", err)
		return Result{Content: ErrorReport(), Outcome: OutcomeError}
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < g.opts.MinReportChars {
		log.Printf("[report] generated report too short (%d chars), returning fallback", utf8.RuneCountInString(text))
		return Result{Content: FallbackReport(), Outcome: OutcomeFallback}
	}
	return Result{Content: text, Outcome: OutcomeGenerated}
}

func (g *Generator) guidelines(ctx context.Context, query string) string {
	passages, err := g.index.SimilaritySearch(ctx, query, g.opts.TopK)
	if err != nil {
		log.Printf("[report] retrieval failed, continuing without guidelines: %v", err)
		return ""
	}
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, truncate(p.Text, g.opts.PassageChars))
	}
	return strings.Join(parts, "\n")
}
