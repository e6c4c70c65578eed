package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	got := Split("Iron supplementation is advised.", 1000, 200)
	if len(got) != 1 || got[0] != "Iron supplementation is advised." {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestSplitRespectsSizeAndOverlaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("Monitor blood pressure at every antenatal visit. ")
	}
	chunks := Split(b.String(), 200, 60)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 200 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
	// Consecutive chunks share text when an overlap is requested.
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.Contains(chunks[1], strings.TrimSpace(tail)) {
		t.Fatalf("chunk 1 does not overlap chunk 0: %q / %q", chunks[0], chunks[1])
	}
}

func TestSplitPrefersParagraphs(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 50)
	got := Split(text, 60, 0)
	if len(got) != 2 || got[0] != strings.Repeat("a", 50) || got[1] != strings.Repeat("b", 50) {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestSplitFallsBackToRunes(t *testing.T) {
	got := Split(strings.Repeat("é", 25), 10, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(got), got)
	}
	if utf8.RuneCountInString(got[2]) != 5 {
		t.Fatalf("last chunk = %q", got[2])
	}
}

func TestSplitInvalidSize(t *testing.T) {
	if got := Split("text", 0, 0); got != nil {
		t.Fatalf("expected nil, got %q", got)
	}
}
