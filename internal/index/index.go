// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index maintains a SQLite FTS5 full-text index over stored papers
// (title, abstract, extracted text). The index is derived state: it is
// synced from the paper store and can always be rebuilt from it.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-assistant/internal/store"
	"github.com/pdiddy/paper-assistant/pkg/types"
)

const dbFile = "papers.db"

// Index wraps the SQLite search database.
type Index struct {
	db         *sql.DB
	maxResults int
}

// Open opens or creates the index database at cfg.Dir/papers.db and
// ensures the schema exists.
func Open(cfg types.IndexConfig) (*Index, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	idx := &Index{db: db, maxResults: maxResults}
	if err := idx.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	return idx, nil
}

// Close releases the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func (idx *Index) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			arxiv_id TEXT NOT NULL UNIQUE,
			title TEXT,
			abstract TEXT,
			content TEXT,
			updated_at TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := idx.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := idx.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='papers_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE papers_fts USING fts5(title, abstract, content, content=papers, content_rowid=rowid)`,
			`CREATE TRIGGER papers_ai AFTER INSERT ON papers BEGIN
				INSERT INTO papers_fts(rowid, title, abstract, content)
				VALUES (new.rowid, new.title, new.abstract, new.content);
			END`,
			`CREATE TRIGGER papers_ad AFTER DELETE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, abstract, content)
				VALUES('delete', old.rowid, old.title, old.abstract, old.content);
			END`,
			`CREATE TRIGGER papers_au AFTER UPDATE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, abstract, content)
				VALUES('delete', old.rowid, old.title, old.abstract, old.content);
				INSERT INTO papers_fts(rowid, title, abstract, content)
				VALUES (new.rowid, new.title, new.abstract, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := idx.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

// SyncSummary holds counts from an index sync.
type SyncSummary struct {
	Indexed int
	Updated int
	Skipped int
	Removed int
}

// Sync brings the index up to date with the store: new papers are
// inserted, papers whose updated-at changed are reindexed, papers no
// longer in the store are removed.
func (idx *Index) Sync(ctx context.Context, st *store.Store) (SyncSummary, error) {
	var summary SyncSummary

	papers := st.All()
	live := make(map[string]bool, len(papers))

	for _, p := range papers {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		id := p.ID()
		live[id] = true
		stamp := indexStamp(p)

		var stored string
		err := idx.db.QueryRowContext(ctx,
			`SELECT updated_at FROM papers WHERE arxiv_id = ?`, id,
		).Scan(&stored)

		switch {
		case err == sql.ErrNoRows:
			if err := idx.upsert(ctx, p, stamp); err != nil {
				return summary, err
			}
			summary.Indexed++
		case err != nil:
			return summary, fmt.Errorf("checking index status for %s: %w", id, err)
		case stored == stamp:
			summary.Skipped++
		default:
			if err := idx.upsert(ctx, p, stamp); err != nil {
				return summary, err
			}
			summary.Updated++
		}
	}

	// Remove rows for papers deleted from the store.
	rows, err := idx.db.QueryContext(ctx, `SELECT arxiv_id FROM papers`)
	if err != nil {
		return summary, fmt.Errorf("listing indexed papers: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return summary, err
		}
		if !live[id] {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return summary, err
	}
	rows.Close()

	for _, id := range stale {
		if _, err := idx.db.ExecContext(ctx, `DELETE FROM papers WHERE arxiv_id = ?`, id); err != nil {
			return summary, fmt.Errorf("removing %s from index: %w", id, err)
		}
		summary.Removed++
	}

	return summary, nil
}

func (idx *Index) upsert(ctx context.Context, p *types.Paper, stamp string) error {
	_, err := idx.db.ExecContext(ctx,
		`INSERT INTO papers (arxiv_id, title, abstract, content, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(arxiv_id) DO UPDATE SET
			title=excluded.title, abstract=excluded.abstract,
			content=excluded.content, updated_at=excluded.updated_at`,
		p.ID(), p.Metadata.Title, p.Metadata.Abstract, p.ExtractedText, stamp,
	)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", p.ID(), err)
	}
	return nil
}

// indexStamp derives the change-detection stamp for a paper.
func indexStamp(p *types.Paper) string {
	if p.UpdatedAt != nil {
		return p.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return p.CreatedAt.UTC().Format(time.RFC3339Nano)
}

// Hit is one full-text search result.
type Hit struct {
	ArxivID string `json:"arxiv_id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Search runs an FTS5 query and returns ranked hits with snippets from the
// extracted text. maxResults <= 0 uses the configured default.
func (idx *Index) Search(ctx context.Context, query string, maxResults int) ([]Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if maxResults <= 0 {
		maxResults = idx.maxResults
	}

	rows, err := idx.db.QueryContext(ctx,
		`SELECT p.arxiv_id, p.title, snippet(papers_fts, 2, '[', ']', '...', 12)
		 FROM papers_fts
		 JOIN papers p ON p.rowid = papers_fts.rowid
		 WHERE papers_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, maxResults,
	)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ArxivID, &h.Title, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
