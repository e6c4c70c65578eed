package config

import (
	"testing"
	"time"
)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		`"sk-abc"`:     "sk-abc",
		`'sk-abc'`:     "sk-abc",
		" sk-xyz ":     "sk-xyz",
		"sk-no-quotes": "sk-no-quotes",
		"\"incomplete": "\"incomplete", // unmatched quote is kept
	}
	for in, exp := range cases {
		if got := Sanitize(in); got != exp {
			t.Errorf("Sanitize(%q)=%q; want %q", in, got, exp)
		}
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("REPORT_WORKERS", "8")
	t.Setenv("REPORT_QUEUE_SIZE", "-3")
	t.Setenv("REPORT_TIMEOUT_SEC", "30")
	t.Setenv("DB_DRIVER", " SQLite ")
	t.Setenv("OPENAI_API_KEY", `"sk-test"`)
	t.Setenv("GENERATE_RATE_PER_MIN", "0")

	cfg := Load()
	if cfg.ReportWorkers != 8 {
		t.Errorf("ReportWorkers=%d; want 8", cfg.ReportWorkers)
	}
	if cfg.ReportQueueSize != 64 {
		t.Errorf("ReportQueueSize=%d; want default 64", cfg.ReportQueueSize)
	}
	if cfg.ReportTimeout != 30*time.Second {
		t.Errorf("ReportTimeout=%s; want 30s", cfg.ReportTimeout)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver=%q; want sqlite", cfg.DBDriver)
	}
	if cfg.OpenAIKey != "sk-test" {
		t.Errorf("OpenAIKey=%q; want sk-test", cfg.OpenAIKey)
	}
	if cfg.GenerateRPM != 0 {
		t.Errorf("GenerateRPM=%d; want 0 (limiting disabled)", cfg.GenerateRPM)
	}
}

func TestIntAllowZero(t *testing.T) {
	cases := map[string]int{"": 30, "0": 0, "-1": -1, "12": 12, "many": 30}
	for in, want := range cases {
		t.Setenv("GENERATE_RATE_PER_MIN", in)
		if got := IntAllowZero("GENERATE_RATE_PER_MIN", 30); got != want {
			t.Errorf("IntAllowZero(%q)=%d; want %d", in, got, want)
		}
	}
}
