package datasource

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/rolepattern/pkg/model"
)

// schema is the element store layout. Versions carry an explicit sequence
// so their order survives independent of the version text.
const schema = `
CREATE TABLE IF NOT EXISTS versions (
	seq     INTEGER PRIMARY KEY,
	version TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS nodes (
	id      TEXT NOT NULL,
	version TEXT NOT NULL,
	role    TEXT NOT NULL DEFAULT '',
	parent  TEXT,
	label   TEXT,
	PRIMARY KEY (id, version)
);
CREATE TABLE IF NOT EXISTS edges (
	id          TEXT NOT NULL,
	version     TEXT NOT NULL,
	source      TEXT NOT NULL,
	target      TEXT NOT NULL,
	source_role TEXT NOT NULL DEFAULT '',
	target_role TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (id, version)
);
CREATE INDEX IF NOT EXISTS idx_edges_version_source ON edges(version, source);
`

// SQLiteSource provides read access to an element store.
type SQLiteSource struct {
	db   *sql.DB
	path string
}

// NewSQLiteSource opens a SQLite store for reading
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Read-performance pragmas; failures are non-fatal.
	for _, pragma := range []string{
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	} {
		_, _ = db.Exec(pragma)
	}

	return &SQLiteSource{db: db, path: path}, nil
}

// Path returns the database path.
func (s *SQLiteSource) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Elements reads every node and edge, ordered by version sequence then
// insertion order.
func (s *SQLiteSource) Elements(ctx context.Context) (model.Elements, error) {
	var elems model.Elements

	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.version, n.role, n.parent, n.label
		FROM nodes n LEFT JOIN versions v ON v.version = n.version
		ORDER BY v.seq, n.rowid`)
	if err != nil {
		return elems, fmt.Errorf("query nodes: %w", err)
	}
	for rows.Next() {
		var n model.Node
		var version string
		var parent, label sql.NullString
		if err := rows.Scan(&n.ID, &version, &n.Role, &parent, &label); err != nil {
			rows.Close()
			return elems, fmt.Errorf("scan node: %w", err)
		}
		n.Version = model.Version(version)
		n.Parent = parent.String
		n.Label = label.String
		elems.Nodes = append(elems.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return elems, fmt.Errorf("error iterating nodes: %w", err)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT e.id, e.version, e.source, e.target, e.source_role, e.target_role
		FROM edges e LEFT JOIN versions v ON v.version = e.version
		ORDER BY v.seq, e.rowid`)
	if err != nil {
		return elems, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e model.Edge
		var version string
		if err := rows.Scan(&e.ID, &version, &e.Source, &e.Target, &e.SourceRole, &e.TargetRole); err != nil {
			return elems, fmt.Errorf("scan edge: %w", err)
		}
		e.Version = model.Version(version)
		elems.Edges = append(elems.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return elems, fmt.Errorf("error iterating edges: %w", err)
	}
	return elems, nil
}

// Versions returns the version list in sequence order.
func (s *SQLiteSource) Versions(ctx context.Context) ([]model.Version, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM versions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var out []model.Version
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, model.Version(v))
	}
	return out, rows.Err()
}

// Count returns the number of nodes and edges in the store.
func (s *SQLiteSource) Count(ctx context.Context) (nodes, edges int, err error) {
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&nodes); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&edges); err != nil {
		return 0, 0, err
	}
	return nodes, edges, nil
}

// ImportSQLite writes doc into a fresh store at path, replacing any
// previous contents, in a single transaction.
func ImportSQLite(ctx context.Context, path string, doc Document) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM versions", "DELETE FROM nodes", "DELETE FROM edges"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear store: %w", err)
		}
	}

	for i, v := range doc.Versions {
		if _, err := tx.ExecContext(ctx, `INSERT INTO versions (seq, version) VALUES (?, ?)`, i, string(v)); err != nil {
			return fmt.Errorf("insert version %s: %w", v, err)
		}
	}

	nodeStmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes (id, version, role, parent, label) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare nodes: %w", err)
	}
	defer nodeStmt.Close()
	for _, n := range doc.Elements.Nodes {
		if _, err := nodeStmt.ExecContext(ctx, n.ID, string(n.Version), n.Role, nullString(n.Parent), nullString(n.Label)); err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (id, version, source, target, source_role, target_role) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare edges: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range doc.Elements.Edges {
		if _, err := edgeStmt.ExecContext(ctx, e.ID, string(e.Version), e.Source, e.Target, e.SourceRole, e.TargetRole); err != nil {
			return fmt.Errorf("insert edge %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
