package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	manifestFile  = "manifest.json"
	formatVersion = 1
)

// manifest is the commit point of a file-backed group. It names the
// generation whose document and vector files make up the corpus; replacing
// it is the single atomic step of a persist.
type manifest struct {
	FormatVersion int       `json:"format_version"`
	Name          string    `json:"name"`
	Generation    uint64    `json:"generation"`
	Documents     int       `json:"documents"`
	Dimension     int       `json:"dimension"`
	Model         string    `json:"model,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// storedDocument is one entry of documents-<gen>.json.
type storedDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// fileCodec stores a corpus as manifest.json plus generation-numbered
// JSON documents and gob-encoded vectors.
type fileCodec struct{}

func (fileCodec) name() string   { return BackendFile }
func (fileCodec) marker() string { return manifestFile }

func documentsFile(gen uint64) string { return fmt.Sprintf("documents-%d.json", gen) }
func vectorsFile(gen uint64) string   { return fmt.Sprintf("vectors-%d.gob", gen) }

func (fc fileCodec) write(ctx context.Context, dir string, c *Corpus) error {
	var gen uint64 = 1
	if prev, err := readManifest(dir); err == nil {
		gen = prev.Generation + 1
	} else if !os.IsNotExist(err) {
		return err
	}

	docs := c.Documents()
	stored := make([]storedDocument, len(docs))
	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		stored[i] = storedDocument{ID: d.ID, Text: d.Text}
		vectors[i] = d.Vector
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := writeFileAtomic(filepath.Join(dir, documentsFile(gen)), func(w io.Writer) error {
		return json.NewEncoder(w).Encode(stored)
	}); err != nil {
		return fmt.Errorf("write documents: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(dir, vectorsFile(gen)), func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := gob.NewEncoder(bw).Encode(vectors); err != nil {
			return fmt.Errorf("encode vectors: %w", err)
		}
		return bw.Flush()
	}); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	m := manifest{
		FormatVersion: formatVersion,
		Name:          c.Name,
		Generation:    gen,
		Documents:     len(docs),
		Dimension:     c.Dimension,
		Model:         c.Model,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if err := writeFileAtomic(filepath.Join(dir, manifestFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	removeStaleGenerations(dir, gen)
	return nil
}

// removeStaleGenerations deletes files of generations other than keep.
// Failures only leave garbage behind.
func removeStaleGenerations(dir string, keep uint64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	current := map[string]bool{documentsFile(keep): true, vectorsFile(keep): true}
	for _, e := range entries {
		n := e.Name()
		stale := (strings.HasPrefix(n, "documents-") || strings.HasPrefix(n, "vectors-")) && !current[n]
		if stale || strings.HasPrefix(n, ".tmp-") {
			if err := os.Remove(filepath.Join(dir, n)); err != nil {
				slog.Debug("failed to remove stale file", slog.String("file", n), slog.String("error", err.Error()))
			}
		}
	}
}

func readManifest(dir string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.FormatVersion != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", m.FormatVersion)
	}
	return &m, nil
}

func (fc fileCodec) read(ctx context.Context, dir, name string) (*Corpus, error) {
	m, err := readManifest(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, documentsFile(m.Generation)))
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	var stored []storedDocument
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, vectorsFile(m.Generation)))
	if err != nil {
		return nil, fmt.Errorf("open vectors: %w", err)
	}
	defer func() { _ = f.Close() }()

	var vectors [][]float32
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode vectors: %w", err)
	}

	if len(stored) != m.Documents || len(vectors) != m.Documents {
		return nil, fmt.Errorf("manifest lists %d documents, found %d texts and %d vectors",
			m.Documents, len(stored), len(vectors))
	}

	c := NewCorpus(name)
	c.Model = m.Model
	c.CreatedAt = m.CreatedAt
	c.UpdatedAt = m.UpdatedAt
	for i, sd := range stored {
		if len(vectors[i]) != m.Dimension {
			return nil, fmt.Errorf("document %q has %d dimensions, manifest says %d", sd.ID, len(vectors[i]), m.Dimension)
		}
		if c.Has(sd.ID) {
			return nil, fmt.Errorf("duplicate document id %q", sd.ID)
		}
		c.Put(&Document{ID: sd.ID, Text: sd.Text, Vector: vectors[i]})
	}
	return c, nil
}
