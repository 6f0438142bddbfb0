package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func init() {
	sqlite_vec.Auto()
}

const sqliteSchema = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS collections (
    name  TEXT PRIMARY KEY,
    space TEXT NOT NULL DEFAULT 'cosine',
    dim   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS documents (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    collection TEXT NOT NULL,
    doc_id     TEXT NOT NULL,
    content    TEXT NOT NULL,
    metadata   TEXT NOT NULL DEFAULT '{}',
    UNIQUE(collection, doc_id)
);
`

// SQLiteStore implements Store backed by SQLite + sqlite-vec. Each
// collection gets its own vec0 virtual table, created once the embedding
// dimension is known from the first added document.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates or opens the database under dir and initializes
// the schema.
func NewSQLiteStore(dir string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, "lore.db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", ErrStore, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", ErrStore, err)
	}

	logger.Debug("sqlite store opened", zap.String("path", path))
	return &SQLiteStore{db: db, logger: logger}, nil
}

// GetOrCreateCollection returns the named collection, creating its row (and
// later its vec0 table) if needed.
func (s *SQLiteStore) GetOrCreateCollection(ctx context.Context, name string, space SimilaritySpace) (Collection, error) {
	if err := validateCollectionName(name); err != nil {
		return nil, err
	}
	switch space {
	case SpaceCosine, SpaceL2:
	case "":
		space = SpaceCosine
	default:
		return nil, fmt.Errorf("%w: unknown similarity space %q", ErrStore, space)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (name, space) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		name, string(space),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create collection %s: %v", ErrStore, name, err)
	}

	return &sqliteCollection{store: s, name: name}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteCollection struct {
	store *SQLiteStore
	name  string
}

// vecTable derives the vec0 table name for the collection. Collection names
// are validated, so the only character needing mapping is '-'.
func (c *sqliteCollection) vecTable() string {
	return "vec_" + strings.ReplaceAll(c.name, "-", "_")
}

// ensureVecTable creates the vec0 virtual table on first use, once the
// embedding dimension is known.
func (c *sqliteCollection) ensureVecTable(ctx context.Context, dim int) error {
	var space string
	var existing int
	err := c.store.db.QueryRowContext(ctx,
		"SELECT space, dim FROM collections WHERE name = ?", c.name,
	).Scan(&space, &existing)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, c.name)
	}
	if err != nil {
		return fmt.Errorf("%w: read collection %s: %v", ErrStore, c.name, err)
	}

	if existing != 0 {
		if existing != dim {
			return fmt.Errorf("%w: collection %s expects dimension %d, got %d", ErrStore, c.name, existing, dim)
		}
		return nil
	}

	metric := "cosine"
	if SimilaritySpace(space) == SpaceL2 {
		metric = "l2"
	}
	ddl := fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(doc_ref INTEGER PRIMARY KEY, embedding float[%d] distance_metric=%s)",
		c.vecTable(), dim, metric,
	)
	if _, err := c.store.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: create vec table for %s: %v", ErrStore, c.name, err)
	}
	if _, err := c.store.db.ExecContext(ctx,
		"UPDATE collections SET dim = ? WHERE name = ?", dim, c.name,
	); err != nil {
		return fmt.Errorf("%w: record dimension for %s: %v", ErrStore, c.name, err)
	}
	return nil
}

// AddDocuments upserts documents by ID: an existing record with the same
// doc id is deleted (including its vector) before the new row is inserted.
func (c *sqliteCollection) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := c.ensureVecTable(ctx, len(docs[0].Embedding)); err != nil {
		return err
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrStore, err)
	}
	defer tx.Rollback()

	vecTable := c.vecTable()
	for _, d := range docs {
		var existingID int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM documents WHERE collection = ? AND doc_id = ?",
			c.name, d.ID,
		).Scan(&existingID)
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE doc_ref = ?", vecTable), existingID,
			); err != nil {
				return fmt.Errorf("%w: delete old vector for %s: %v", ErrStore, d.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM documents WHERE id = ?", existingID,
			); err != nil {
				return fmt.Errorf("%w: delete old document %s: %v", ErrStore, d.ID, err)
			}
		case err != sql.ErrNoRows:
			return fmt.Errorf("%w: lookup document %s: %v", ErrStore, d.ID, err)
		}

		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("%w: marshal metadata for %s: %v", ErrStore, d.ID, err)
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO documents (collection, doc_id, content, metadata) VALUES (?, ?, ?, ?)",
			c.name, d.ID, d.Content, string(meta),
		)
		if err != nil {
			return fmt.Errorf("%w: insert document %s: %v", ErrStore, d.ID, err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("%w: document rowid for %s: %v", ErrStore, d.ID, err)
		}

		blob, err := sqlite_vec.SerializeFloat32(d.Embedding)
		if err != nil {
			return fmt.Errorf("%w: serialize embedding for %s: %v", ErrStore, d.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (doc_ref, embedding) VALUES (?, ?)", vecTable),
			rowID, blob,
		); err != nil {
			return fmt.Errorf("%w: insert embedding for %s: %v", ErrStore, d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStore, err)
	}
	return nil
}

// Query returns the topK nearest documents by embedding distance.
func (c *sqliteCollection) Query(ctx context.Context, embedding []float32, topK int) (QueryResult, error) {
	var dim int
	err := c.store.db.QueryRowContext(ctx,
		"SELECT dim FROM collections WHERE name = ?", c.name,
	).Scan(&dim)
	if err == sql.ErrNoRows {
		return QueryResult{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, c.name)
	}
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: read collection %s: %v", ErrStore, c.name, err)
	}
	if dim == 0 {
		// Nothing stored yet.
		return QueryResult{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: serialize query embedding: %v", ErrStore, err)
	}

	// vec0 requires the k constraint inside the KNN scan itself; a LIMIT
	// behind a join never reaches its planner. Run the match in a subquery
	// over the vec table alone, then join the document rows.
	rows, err := c.store.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT v.distance, d.doc_id, d.content, d.metadata
		FROM (
			SELECT doc_ref, distance
			FROM %s
			WHERE embedding MATCH ? AND k = ?
		) v
		JOIN documents d ON d.id = v.doc_ref
		ORDER BY v.distance
	`, c.vecTable()), blob, topK)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: query: %v", ErrStore, err)
	}
	defer rows.Close()

	var out QueryResult
	for rows.Next() {
		var distance float32
		var id, content, metaJSON string
		if err := rows.Scan(&distance, &id, &content, &metaJSON); err != nil {
			return QueryResult{}, fmt.Errorf("%w: scan result: %v", ErrStore, err)
		}
		meta := map[string]string{}
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return QueryResult{}, fmt.Errorf("%w: decode metadata for %s: %v", ErrStore, id, err)
		}
		out.Documents = append(out.Documents, content)
		out.Metadatas = append(out.Metadatas, meta)
		out.IDs = append(out.IDs, id)
		out.Distances = append(out.Distances, distance)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("%w: iterate results: %v", ErrStore, err)
	}
	return out, nil
}
