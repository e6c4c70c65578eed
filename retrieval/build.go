package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"materna-backend/files"
)

// BuildOptions describes how to construct the index from the reference PDF.
type BuildOptions struct {
	PDFPath      string
	CachePath    string // empty disables the on-disk embeddings cache
	Model        string // embedding model name, part of the cache key
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

type cacheFile struct {
	SourceSHA256 string    `json:"source_sha256"`
	Model        string    `json:"model"`
	ChunkSize    int       `json:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap"`
	CreatedAt    time.Time `json:"created_at"`
	Chunks       []Chunk   `json:"chunks"`
}

// pageSource lets tests replace PDF parsing.
var pageSource = files.ExtractPDFPages

// Build loads the reference PDF, splits it, embeds every chunk and returns
// the ready index. A valid cache (same PDF bytes, model and chunking) skips
// the embedding calls. Any failure is returned so startup can abort.
func Build(ctx context.Context, o BuildOptions, embedder Embedder) (*VectorIndex, error) {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1000
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = 200
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}

	raw, err := os.ReadFile(o.PDFPath)
	if err != nil {
		return nil, fmt.Errorf("read reference pdf: %w", err)
	}
	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])

	if o.CachePath != "" {
		if chunks, ok := loadCache(o, digest); ok {
			log.Printf("[retrieval] loaded %d chunks from cache %s", len(chunks), o.CachePath)
			return NewVectorIndex(embedder, chunks)
		}
	}

	pages, err := pageSource(o.PDFPath)
	if err != nil {
		return nil, err
	}
	var chunks []Chunk
	for i, p := range pages {
		for _, c := range Split(p, o.ChunkSize, o.ChunkOverlap) {
			chunks = append(chunks, Chunk{Text: c, Page: i + 1})
		}
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	log.Printf("[retrieval] reference pdf split into %d chunks", len(chunks))

	for start := 0; start < len(chunks); start += o.BatchSize {
		end := min(start+o.BatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vecs))
		}
		for i, v := range vecs {
			chunks[start+i].Vector = v
		}
	}

	if o.CachePath != "" {
		if err := saveCache(o, digest, chunks); err != nil {
			log.Printf("[retrieval] cache write failed path=%s err=%v", o.CachePath, err)
		}
	}
	return NewVectorIndex(embedder, chunks)
}

func loadCache(o BuildOptions, digest string) ([]Chunk, bool) {
	b, err := os.ReadFile(o.CachePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false
	}
	if err != nil {
		log.Printf("[retrieval] cache read failed path=%s err=%v", o.CachePath, err)
		return nil, false
	}
	var cf cacheFile
	if err := json.Unmarshal(b, &cf); err != nil {
		log.Printf("[retrieval] cache corrupt path=%s err=%v", o.CachePath, err)
		return nil, false
	}
	if cf.SourceSHA256 != digest || cf.Model != o.Model || cf.ChunkSize != o.ChunkSize || cf.ChunkOverlap != o.ChunkOverlap || len(cf.Chunks) == 0 {
		log.Printf("[retrieval] cache stale path=%s", o.CachePath)
		return nil, false
	}
	return cf.Chunks, true
}

func saveCache(o BuildOptions, digest string, chunks []Chunk) error {
	if err := os.MkdirAll(filepath.Dir(o.CachePath), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(cacheFile{
		SourceSHA256: digest,
		Model:        o.Model,
		ChunkSize:    o.ChunkSize,
		ChunkOverlap: o.ChunkOverlap,
		CreatedAt:    time.Now().UTC(),
		Chunks:       chunks,
	})
	if err != nil {
		return err
	}
	tmp := o.CachePath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, o.CachePath)
}
