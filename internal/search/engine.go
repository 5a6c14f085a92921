package search

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentvault/agentvault/internal/index"
	"github.com/agentvault/agentvault/internal/store"
)

// Engine executes parsed queries against the inverted index and ranks
// matches with BM25. It reads through the store's handle, so every
// query sees the last committed store+index snapshot.
type Engine struct {
	store *store.SQLiteStore
	cfg   Config
	cache *lru.Cache[int64, cachedDoc]
}

// cachedDoc is a tokenized document body for snippet extraction.
// Entries are validated against ingested_at, so an updated document can
// never serve a stale snippet.
type cachedDoc struct {
	ingestedAt time.Time
	content    string
	tokens     []index.Token
}

// termHit is one matched term in one document.
type termHit struct {
	term string
	tf   int
	df   int
}

// posting is one decoded postings row.
type posting struct {
	tf        int
	positions []int
}

// New creates a search engine over the given store.
func New(st *store.SQLiteStore, cfg Config) (*Engine, error) {
	if cfg.DocCacheSize <= 0 {
		cfg.DocCacheSize = DefaultConfig().DocCacheSize
	}
	cache, err := lru.New[int64, cachedDoc](cfg.DocCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create doc cache: %w", err)
	}
	return &Engine{store: st, cfg: cfg, cache: cache}, nil
}

// Search returns up to limit results ordered by descending BM25 score,
// ties broken by most recent ingested_at then ascending id. An empty
// query, empty corpus, or no matches all yield an empty slice.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}

	clauses := ParseQuery(query)
	if len(clauses) == 0 {
		return []Result{}, nil
	}

	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("read corpus stats: %w", err)
	}
	if stats.DocumentCount == 0 {
		return []Result{}, nil
	}

	// Each clause independently produces its matching documents; the
	// implicit AND is the intersection.
	matched := make(map[int64][]termHit)
	for i, clause := range clauses {
		cm, err := e.matchClause(ctx, clause)
		if err != nil {
			return nil, err
		}
		if len(cm) == 0 {
			return []Result{}, nil
		}

		if i == 0 {
			for id, hits := range cm {
				matched[id] = hits
			}
			continue
		}
		for id, hits := range matched {
			more, ok := cm[id]
			if !ok {
				delete(matched, id)
				continue
			}
			matched[id] = append(hits, more...)
		}
		if len(matched) == 0 {
			return []Result{}, nil
		}
	}

	results, err := e.rank(ctx, matched, stats)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}

	if err := e.attachSnippets(ctx, results, matched); err != nil {
		return nil, err
	}

	slog.Debug("search_complete",
		slog.String("query", query),
		slog.Int("matched", len(matched)),
		slog.Int("returned", len(results)))

	return results, nil
}

// matchClause resolves a single clause to its matching documents.
func (e *Engine) matchClause(ctx context.Context, c Clause) (map[int64][]termHit, error) {
	switch {
	case c.Phrase:
		return e.matchPhrase(ctx, c.Terms)
	case c.Prefix:
		return e.matchPrefix(ctx, c.Terms[0])
	default:
		return e.matchTerm(ctx, c.Terms[0])
	}
}

func (e *Engine) matchTerm(ctx context.Context, term string) (map[int64][]termHit, error) {
	rows, err := e.store.DB().QueryContext(ctx,
		`SELECT doc_id, tf FROM postings WHERE term = ?`, term)
	if err != nil {
		return nil, fmt.Errorf("postings for %q: %w", term, err)
	}
	defer rows.Close()

	type hit struct {
		id int64
		tf int
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.tf); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	df := len(hits)
	out := make(map[int64][]termHit, df)
	for _, h := range hits {
		out[h.id] = append(out[h.id], termHit{term: term, tf: h.tf, df: df})
	}
	return out, nil
}

func (e *Engine) matchPrefix(ctx context.Context, prefix string) (map[int64][]termHit, error) {
	rows, err := e.store.DB().QueryContext(ctx,
		`SELECT term, doc_id, tf FROM postings WHERE term LIKE ? ESCAPE '\' ORDER BY term`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("postings for prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	type hit struct {
		term string
		id   int64
		tf   int
	}
	var hits []hit
	df := make(map[string]int)
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.term, &h.id, &h.tf); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		hits = append(hits, h)
		df[h.term]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Each expanded term is scored as itself; a document matching
	// several expansions accumulates all of them.
	out := make(map[int64][]termHit)
	for _, h := range hits {
		out[h.id] = append(out[h.id], termHit{term: h.term, tf: h.tf, df: df[h.term]})
	}
	return out, nil
}

func (e *Engine) matchPhrase(ctx context.Context, terms []string) (map[int64][]termHit, error) {
	// Load postings with positions for every phrase term.
	perTerm := make([]map[int64]posting, len(terms))
	for i, term := range terms {
		rows, err := e.store.DB().QueryContext(ctx,
			`SELECT doc_id, tf, positions FROM postings WHERE term = ?`, term)
		if err != nil {
			return nil, fmt.Errorf("postings for %q: %w", term, err)
		}

		m := make(map[int64]posting)
		for rows.Next() {
			var id int64
			var tf int
			var encoded string
			if err := rows.Scan(&id, &tf, &encoded); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan posting: %w", err)
			}
			m[id] = posting{tf: tf, positions: index.DecodePositions(encoded)}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		if len(m) == 0 {
			return nil, nil // A missing term can never form the phrase.
		}
		perTerm[i] = m
	}

	out := make(map[int64][]termHit)
	for id, first := range perTerm[0] {
		if !phraseAt(perTerm, id, first.positions) {
			continue
		}
		hits := make([]termHit, 0, len(terms))
		for i, term := range terms {
			p := perTerm[i][id]
			hits = append(hits, termHit{term: term, tf: p.tf, df: len(perTerm[i])})
		}
		out[id] = hits
	}
	return out, nil
}

// phraseAt reports whether the document has the phrase terms at
// consecutive token positions, in order.
func phraseAt(perTerm []map[int64]posting, id int64, starts []int) bool {
	for _, start := range starts {
		ok := true
		for i := 1; i < len(perTerm); i++ {
			p, present := perTerm[i][id]
			if !present || !containsPosition(p.positions, start+i) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func containsPosition(sorted []int, want int) bool {
	i := sort.SearchInts(sorted, want)
	return i < len(sorted) && sorted[i] == want
}

// rank scores the matched documents and orders them deterministically.
func (e *Engine) rank(ctx context.Context, matched map[int64][]termHit, stats *store.Stats) ([]Result, error) {
	ids := make([]int64, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}

	lengths, err := e.docLengths(ctx, ids)
	if err != nil {
		return nil, err
	}
	metas, err := e.docMetas(ctx, ids)
	if err != nil {
		return nil, err
	}

	n := float64(stats.DocumentCount)
	avgdl := stats.AvgDocLength
	if avgdl <= 0 {
		avgdl = 1
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		meta, ok := metas[id]
		if !ok {
			continue
		}

		// The same term may arrive via several clauses; score it once.
		unique := make(map[string]termHit, len(matched[id]))
		for _, h := range matched[id] {
			unique[h.term] = h
		}

		dl := float64(lengths[id])
		var score float64
		for _, h := range unique {
			idf := math.Log(1 + (n-float64(h.df)+0.5)/(float64(h.df)+0.5))
			tf := float64(h.tf)
			score += idf * tf * (e.cfg.K1 + 1) / (tf + e.cfg.K1*(1-e.cfg.B+e.cfg.B*dl/avgdl))
		}

		meta.Score = score
		results = append(results, meta)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].IngestedAt.Equal(results[j].IngestedAt) {
			return results[i].IngestedAt.After(results[j].IngestedAt)
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

func (e *Engine) docLengths(ctx context.Context, ids []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT doc_id, token_count FROM doc_lengths WHERE doc_id IN (` + placeholders(len(ids)) + `)`
	rows, err := e.store.DB().QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("load doc lengths: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var length int
		if err := rows.Scan(&id, &length); err != nil {
			return nil, fmt.Errorf("scan doc length: %w", err)
		}
		out[id] = length
	}
	return out, rows.Err()
}

func (e *Engine) docMetas(ctx context.Context, ids []int64) (map[int64]Result, error) {
	out := make(map[int64]Result, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT id, source, path, title, ingested_at FROM docs WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := e.store.DB().QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Result
		var ingested string
		if err := rows.Scan(&r.ID, &r.Source, &r.Path, &r.Title, &ingested); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		t, err := time.Parse(store.TimeFormat, ingested)
		if err != nil {
			return nil, fmt.Errorf("parse ingested_at: %w", err)
		}
		r.IngestedAt = t
		out[r.ID] = r
	}
	return out, rows.Err()
}

// attachSnippets fills in snippets for the returned page only.
func (e *Engine) attachSnippets(ctx context.Context, results []Result, matched map[int64][]termHit) error {
	for i := range results {
		terms := make(map[string]struct{})
		for _, h := range matched[results[i].ID] {
			terms[h.term] = struct{}{}
		}

		tokens, content, err := e.loadDoc(ctx, results[i].ID, results[i].IngestedAt)
		if err != nil {
			return err
		}
		results[i].Snippet = makeSnippet(content, tokens, terms, e.cfg.SnippetTokens)
	}
	return nil
}

// loadDoc returns the tokenized body for a document, through the LRU.
func (e *Engine) loadDoc(ctx context.Context, id int64, ingestedAt time.Time) ([]index.Token, string, error) {
	if entry, ok := e.cache.Get(id); ok && entry.ingestedAt.Equal(ingestedAt) {
		return entry.tokens, entry.content, nil
	}

	var content string
	err := e.store.DB().QueryRowContext(ctx,
		`SELECT content FROM docs WHERE id = ?`, id).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, "", store.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("load content: %w", err)
	}

	tokens := index.TokenizeOffsets(content)
	e.cache.Add(id, cachedDoc{ingestedAt: ingestedAt, content: content, tokens: tokens})
	return tokens, content, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// escapeLike escapes LIKE metacharacters in a prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
