package retrieval

import (
	"strings"
	"unicode/utf8"
)

var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Split breaks text into chunks of at most size runes, each chunk sharing up
// to overlap runes with its predecessor. Natural boundaries are preferred in
// the order paragraph, line, sentence, word, rune.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return splitRecursive(text, size, overlap, separators)
}

func splitRecursive(text string, size, overlap int, seps []string) []string {
	sep := seps[len(seps)-1]
	rest := seps[len(seps)-1:]
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = runes(text)
	} else {
		for _, p := range strings.Split(text, sep) {
			if strings.TrimSpace(p) != "" {
				pieces = append(pieces, p)
			}
		}
	}

	var chunks, window []string
	for _, p := range pieces {
		if utf8.RuneCountInString(p) > size {
			chunks = append(chunks, merge(window, sep, size, overlap)...)
			window = nil
			if len(rest) == 0 {
				chunks = append(chunks, p)
				continue
			}
			chunks = append(chunks, splitRecursive(p, size, overlap, rest)...)
			continue
		}
		window = append(window, p)
	}
	return append(chunks, merge(window, sep, size, overlap)...)
}

// merge packs pieces greedily into chunks of at most size runes, carrying
// trailing pieces of the previous chunk forward while they fit in overlap.
func merge(pieces []string, sep string, size, overlap int) []string {
	var out, cur []string
	curLen := 0
	sepLen := utf8.RuneCountInString(sep)
	for _, p := range pieces {
		pl := utf8.RuneCountInString(p)
		add := pl
		if len(cur) > 0 {
			add += sepLen
		}
		if curLen+add > size && len(cur) > 0 {
			out = appendChunk(out, strings.Join(cur, sep))
			for curLen > overlap || (curLen+pl+sepLen > size && curLen > 0) {
				curLen -= utf8.RuneCountInString(cur[0])
				if len(cur) > 1 {
					curLen -= sepLen
				}
				cur = cur[1:]
			}
			add = pl
			if len(cur) > 0 {
				add += sepLen
			}
		}
		cur = append(cur, p)
		curLen += add
	}
	if len(cur) > 0 {
		out = appendChunk(out, strings.Join(cur, sep))
	}
	return out
}

func appendChunk(out []string, c string) []string {
	c = strings.TrimSpace(c)
	if c == "" {
		return out
	}
	return append(out, c)
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
