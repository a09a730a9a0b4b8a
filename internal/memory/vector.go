package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"weft/internal/logging"
)

// VectorConfig holds vector memory configuration.
type VectorConfig struct {
	// Key names the collection; required.
	Key string
	// Instructions describes the memory to the actor.
	Instructions string
	// AutoRecall opts the memory into automatic pre-turn recall.
	AutoRecall bool
	// PersistPath persists the collection on disk; empty keeps it in RAM.
	PersistPath string
	// Embedding overrides the embedding function. Defaults to the local
	// hashing embedder, which needs no network access.
	Embedding chromem.EmbeddingFunc
}

// VectorMemory implements Memory over a chromem collection.
type VectorMemory struct {
	key          string
	instructions string
	autoRecall   bool
	collection   *chromem.Collection
	logger       logging.Logger
}

// NewVector opens (or creates) a vector memory collection.
func NewVector(cfg VectorConfig) (*VectorMemory, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("memory key cannot be empty")
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("open persistent memory at %s: %w", cfg.PersistPath, err)
		}
	} else {
		db = chromem.NewDB()
	}

	embedding := cfg.Embedding
	if embedding == nil {
		embedding = HashEmbedding(256)
	}

	collection, err := db.GetOrCreateCollection(cfg.Key, nil, embedding)
	if err != nil {
		return nil, fmt.Errorf("open memory collection %s: %w", cfg.Key, err)
	}

	return &VectorMemory{
		key:          cfg.Key,
		instructions: cfg.Instructions,
		autoRecall:   cfg.AutoRecall,
		collection:   collection,
		logger:       logging.NewComponentLogger(fmt.Sprintf("Memory[%s]", cfg.Key)),
	}, nil
}

// Key implements Memory.
func (m *VectorMemory) Key() string { return m.key }

// Instructions implements Memory.
func (m *VectorMemory) Instructions() string { return m.instructions }

// AutoRecall implements Memory.
func (m *VectorMemory) AutoRecall() bool { return m.autoRecall }

// Add implements Memory.
func (m *VectorMemory) Add(ctx context.Context, id, content string) error {
	if id == "" || content == "" {
		return fmt.Errorf("memory entries need both an id and content")
	}
	err := m.collection.AddDocuments(ctx, []chromem.Document{{ID: id, Content: content}}, 1)
	if err != nil {
		return fmt.Errorf("store memory %s: %w", id, err)
	}
	m.logger.Debug("Stored memory entry %s (%d bytes)", id, len(content))
	return nil
}

// Search implements Memory, rendering results as a newline-joined list.
func (m *VectorMemory) Search(ctx context.Context, query string, n int) (string, error) {
	if n <= 0 {
		n = 3
	}
	count := m.collection.Count()
	if count == 0 {
		return "", nil
	}
	if n > count {
		n = count
	}

	results, err := m.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return "", fmt.Errorf("search memory %s: %w", m.key, err)
	}

	var b strings.Builder
	for _, result := range results {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(result.Content)
	}
	return b.String(), nil
}

// HashEmbedding returns a deterministic local embedding function built from
// token hashes. It is not semantically meaningful the way a model embedding
// is, but it is stable, offline, and good enough for recall over short
// factual snippets.
func HashEmbedding(dimensions int) chromem.EmbeddingFunc {
	if dimensions <= 0 {
		dimensions = 256
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vector := make([]float32, dimensions)
		for _, token := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(token))
			vector[int(h.Sum32())%dimensions]++
		}

		var norm float64
		for _, v := range vector {
			norm += float64(v) * float64(v)
		}
		if norm == 0 {
			vector[0] = 1
			return vector, nil
		}
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
		return vector, nil
	}
}
