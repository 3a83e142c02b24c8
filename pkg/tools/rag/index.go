package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/entrhq/switchboard/pkg/store/sqlite"
)

// Retrieval defaults.
const (
	DefaultK      = 5
	DefaultFetchK = 20
	DefaultLambda = 0.3

	embedBatch = 64
)

// SearchOptions tune a query. Zero fields take the defaults.
type SearchOptions struct {
	K      int
	FetchK int
	Lambda float64
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.FetchK < o.K {
		o.FetchK = DefaultFetchK
		if o.FetchK < o.K {
			o.FetchK = o.K
		}
	}
	if o.Lambda <= 0 || o.Lambda > 1 {
		o.Lambda = DefaultLambda
	}
	return o
}

// Hit is a retrieved chunk with its similarity to the query.
type Hit struct {
	Chunk
	Score float64
}

type entry struct {
	chunk  Chunk
	vector []float32
}

// Index stores chunk vectors in a SQLite file and serves queries from an
// in-memory copy. Vectors are only reused across restarts when they came
// from the same embedder.
type Index struct {
	db       *sql.DB
	path     string
	embedder Embedder

	mu      sync.RWMutex
	entries []entry
}

// OpenIndex opens (or creates) the index database at path.
func OpenIndex(path string, embedder Embedder) (*Index, error) {
	if embedder == nil {
		embedder = LexicalEmbedder{}
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}

	ix := &Index{db: db, path: path, embedder: embedder}
	if err := ix.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := ix.load(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		page INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		text TEXT NOT NULL,
		tokens INTEGER NOT NULL,
		vector BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS index_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := ix.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create index tables: %w", err)
	}
	return nil
}

// load fills the in-memory copy when the stored vectors match the embedder.
func (ix *Index) load(ctx context.Context) error {
	var name string
	err := ix.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = 'embedder'").Scan(&name)
	if err == sql.ErrNoRows || (err == nil && name != ix.embedder.Name()) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index meta: %w", err)
	}

	rows, err := ix.db.QueryContext(ctx,
		"SELECT source, page, seq, text, tokens, vector FROM chunks ORDER BY id")
	if err != nil {
		return fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var e entry
		var blob []byte
		if err := rows.Scan(&e.chunk.Source, &e.chunk.Page, &e.chunk.Seq, &e.chunk.Text, &e.chunk.Tokens, &blob); err != nil {
			return fmt.Errorf("scan chunk: %w", err)
		}
		e.vector = decodeVector(blob)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read chunks: %w", err)
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()
	return nil
}

// Replace embeds chunks and swaps them in for the current contents.
// Queries keep seeing the old contents until the swap.
func (ix *Index) Replace(ctx context.Context, chunks []Chunk) error {
	entries := make([]entry, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatch {
		end := start + embedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(texts))
		}
		for i, c := range chunks[start:end] {
			entries = append(entries, entry{chunk: c, vector: vecs[i]})
		}
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (source, page, seq, text, tokens, vector) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		c := e.chunk
		if _, err := stmt.ExecContext(ctx, c.Source, c.Page, c.Seq, c.Text, c.Tokens, encodeVector(e.vector)); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO index_meta (key, value) VALUES ('embedder', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, ix.embedder.Name()); err != nil {
		return fmt.Errorf("write index meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()
	return nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Embedder returns the embedder the index was opened with.
func (ix *Index) Embedder() Embedder {
	return ix.embedder
}

// Search returns up to K chunks: the FetchK most similar to query,
// re-ranked by maximal marginal relevance.
func (ix *Index) Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error) {
	opts = opts.withDefaults()

	ix.mu.RLock()
	entries := ix.entries
	ix.mu.RUnlock()
	if len(entries) == 0 {
		return nil, nil
	}

	qv, err := embedQuery(ctx, ix.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		vectors[i] = e.vector
	}
	candidates := topK(qv, vectors, opts.FetchK)

	candVecs := make([][]float32, len(candidates))
	for i, c := range candidates {
		candVecs[i] = vectors[c]
	}

	picks := mmr(qv, candVecs, opts.K, opts.Lambda)
	hits := make([]Hit, 0, len(picks))
	for _, p := range picks {
		e := entries[candidates[p]]
		hits = append(hits, Hit{Chunk: e.chunk, Score: cosine(qv, e.vector)})
	}
	return hits, nil
}

// Path returns the database file path.
func (ix *Index) Path() string {
	return ix.path
}

// Close closes the database.
func (ix *Index) Close() error {
	return sqlite.CloseDB(ix.db)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
