// Package sqlitestore is a reference implementation of
// localstore.Store backed by SQLite: one table per entity kind, each
// keyed by (guid, local_id) with the full entity serialized as JSON in
// a payload column. It is not a requirement of the core — the real
// contract is localstore.Store — but gives the engine something
// concrete to run against, in the same spirit as the teacher's
// workspace registry.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mattsolo1/notewire/pkg/localstore"
	"github.com/mattsolo1/notewire/pkg/model"
)

// Store is a SQLite-backed localstore.Store.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the SQLite database at dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "notewire.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS notebooks (
	local_id TEXT PRIMARY KEY,
	guid TEXT UNIQUE,
	name TEXT NOT NULL,
	linked_notebook_guid TEXT,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notebooks_guid ON notebooks(guid);
CREATE INDEX IF NOT EXISTS idx_notebooks_name ON notebooks(name, linked_notebook_guid);

CREATE TABLE IF NOT EXISTS tags (
	local_id TEXT PRIMARY KEY,
	guid TEXT UNIQUE,
	name TEXT NOT NULL,
	linked_notebook_guid TEXT,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tags_guid ON tags(guid);
CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name, linked_notebook_guid);

CREATE TABLE IF NOT EXISTS saved_searches (
	local_id TEXT PRIMARY KEY,
	guid TEXT UNIQUE,
	name TEXT NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_searches_name ON saved_searches(name);

CREATE TABLE IF NOT EXISTS linked_notebooks (
	guid TEXT PRIMARY KEY,
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	local_id TEXT PRIMARY KEY,
	guid TEXT UNIQUE,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_guid ON notes(guid);

CREATE TABLE IF NOT EXISTS resources (
	local_id TEXT PRIMARY KEY,
	guid TEXT UNIQUE,
	note_local_id TEXT,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resources_guid ON resources(guid);
CREATE INDEX IF NOT EXISTS idx_resources_note ON resources(note_local_id);
`

func (s *Store) init() error {
	_, err := s.db.Exec(schema)
	return err
}

var _ localstore.Store = (*Store)(nil)

// --- notebooks ---

func (s *Store) FindNotebookByGuid(ctx context.Context, guid string) (*model.Notebook, error) {
	return s.findNotebook(ctx, "guid = ?", guid)
}

func (s *Store) FindNotebookByName(ctx context.Context, name, linkedNotebookGuid string) (*model.Notebook, error) {
	return s.findNotebook(ctx, "name = ? AND linked_notebook_guid = ?", name, linkedNotebookGuid)
}

func (s *Store) findNotebook(ctx context.Context, where string, args ...any) (*model.Notebook, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM notebooks WHERE "+where, args...)
	var payload string
	if err := row.Scan(&payload); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var nb model.Notebook
	if err := json.Unmarshal([]byte(payload), &nb); err != nil {
		return nil, fmt.Errorf("unmarshal notebook: %w", err)
	}
	return &nb, nil
}

func (s *Store) PutNotebook(ctx context.Context, nb *model.Notebook) error {
	if nb.LocalID == "" {
		nb.LocalID = model.NewLocalID()
	}
	payload, err := json.Marshal(nb)
	if err != nil {
		return fmt.Errorf("marshal notebook: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notebooks (local_id, guid, name, linked_notebook_guid, payload)
		VALUES (?, NULLIF(?, ''), ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			guid = excluded.guid, name = excluded.name,
			linked_notebook_guid = excluded.linked_notebook_guid, payload = excluded.payload
	`, nb.LocalID, nb.Guid, nb.Name, nb.LinkedNotebookGuid, payload)
	return err
}

func (s *Store) ExpungeNotebookByGuid(ctx context.Context, guid string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM notebooks WHERE guid = ?", guid)
	return err
}

func (s *Store) ListNotebooks(ctx context.Context, locallyModifiedOnly bool) ([]*model.Notebook, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM notebooks")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Notebook
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var nb model.Notebook
		if err := json.Unmarshal([]byte(payload), &nb); err != nil {
			return nil, fmt.Errorf("unmarshal notebook: %w", err)
		}
		if locallyModifiedOnly && !nb.LocallyModified {
			continue
		}
		out = append(out, &nb)
	}
	return out, rows.Err()
}

// --- tags ---

func (s *Store) FindTagByGuid(ctx context.Context, guid string) (*model.Tag, error) {
	return s.findTag(ctx, "guid = ?", guid)
}

func (s *Store) FindTagByName(ctx context.Context, name, linkedNotebookGuid string) (*model.Tag, error) {
	return s.findTag(ctx, "name = ? AND linked_notebook_guid = ?", name, linkedNotebookGuid)
}

func (s *Store) FindTagByLocalID(ctx context.Context, localID string) (*model.Tag, error) {
	return s.findTag(ctx, "local_id = ?", localID)
}

func (s *Store) findTag(ctx context.Context, where string, args ...any) (*model.Tag, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM tags WHERE "+where, args...)
	var payload string
	if err := row.Scan(&payload); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var t model.Tag
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return nil, fmt.Errorf("unmarshal tag: %w", err)
	}
	return &t, nil
}

func (s *Store) PutTag(ctx context.Context, t *model.Tag) error {
	if t.LocalID == "" {
		t.LocalID = model.NewLocalID()
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tag: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tags (local_id, guid, name, linked_notebook_guid, payload)
		VALUES (?, NULLIF(?, ''), ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			guid = excluded.guid, name = excluded.name,
			linked_notebook_guid = excluded.linked_notebook_guid, payload = excluded.payload
	`, t.LocalID, t.Guid, t.Name, t.LinkedNotebookGuid, payload)
	return err
}

func (s *Store) ExpungeTagByGuid(ctx context.Context, guid string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM tags WHERE guid = ?", guid)
	return err
}

func (s *Store) ListTags(ctx context.Context, locallyModifiedOnly bool) ([]*model.Tag, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM tags")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Tag
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var t model.Tag
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, fmt.Errorf("unmarshal tag: %w", err)
		}
		if locallyModifiedOnly && !t.LocallyModified {
			continue
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// --- saved searches ---

func (s *Store) FindSavedSearchByGuid(ctx context.Context, guid string) (*model.SavedSearch, error) {
	return s.findSearch(ctx, "guid = ?", guid)
}

func (s *Store) FindSavedSearchByName(ctx context.Context, name string) (*model.SavedSearch, error) {
	return s.findSearch(ctx, "name = ?", name)
}

func (s *Store) findSearch(ctx context.Context, where string, args ...any) (*model.SavedSearch, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM saved_searches WHERE "+where, args...)
	var payload string
	if err := row.Scan(&payload); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var sr model.SavedSearch
	if err := json.Unmarshal([]byte(payload), &sr); err != nil {
		return nil, fmt.Errorf("unmarshal saved search: %w", err)
	}
	return &sr, nil
}

func (s *Store) PutSavedSearch(ctx context.Context, sr *model.SavedSearch) error {
	if sr.LocalID == "" {
		sr.LocalID = model.NewLocalID()
	}
	payload, err := json.Marshal(sr)
	if err != nil {
		return fmt.Errorf("marshal saved search: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saved_searches (local_id, guid, name, payload)
		VALUES (?, NULLIF(?, ''), ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			guid = excluded.guid, name = excluded.name, payload = excluded.payload
	`, sr.LocalID, sr.Guid, sr.Name, payload)
	return err
}

func (s *Store) ExpungeSavedSearchByGuid(ctx context.Context, guid string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM saved_searches WHERE guid = ?", guid)
	return err
}

func (s *Store) ListSavedSearches(ctx context.Context, locallyModifiedOnly bool) ([]*model.SavedSearch, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM saved_searches")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SavedSearch
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sr model.SavedSearch
		if err := json.Unmarshal([]byte(payload), &sr); err != nil {
			return nil, fmt.Errorf("unmarshal saved search: %w", err)
		}
		if locallyModifiedOnly && !sr.LocallyModified {
			continue
		}
		out = append(out, &sr)
	}
	return out, rows.Err()
}

// --- linked notebooks ---

func (s *Store) FindLinkedNotebookByGuid(ctx context.Context, guid string) (*model.LinkedNotebook, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM linked_notebooks WHERE guid = ?", guid)
	var payload string
	if err := row.Scan(&payload); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var l model.LinkedNotebook
	if err := json.Unmarshal([]byte(payload), &l); err != nil {
		return nil, fmt.Errorf("unmarshal linked notebook: %w", err)
	}
	return &l, nil
}

func (s *Store) PutLinkedNotebook(ctx context.Context, l *model.LinkedNotebook) error {
	payload, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal linked notebook: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO linked_notebooks (guid, payload) VALUES (?, ?)
		ON CONFLICT(guid) DO UPDATE SET payload = excluded.payload
	`, l.Guid, payload)
	return err
}

func (s *Store) ExpungeLinkedNotebookByGuid(ctx context.Context, guid string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM linked_notebooks WHERE guid = ?", guid)
	return err
}

func (s *Store) ListLinkedNotebooks(ctx context.Context) ([]*model.LinkedNotebook, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM linked_notebooks")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.LinkedNotebook
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var l model.LinkedNotebook
		if err := json.Unmarshal([]byte(payload), &l); err != nil {
			return nil, fmt.Errorf("unmarshal linked notebook: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// --- notes ---

func (s *Store) FindNoteByGuid(ctx context.Context, guid string, opts localstore.NoteFetchOption) (*model.Note, error) {
	return s.findNote(ctx, "guid = ?", opts, guid)
}

func (s *Store) FindNoteByLocalID(ctx context.Context, localID string, opts localstore.NoteFetchOption) (*model.Note, error) {
	return s.findNote(ctx, "local_id = ?", opts, localID)
}

func (s *Store) findNote(ctx context.Context, where string, opts localstore.NoteFetchOption, args ...any) (*model.Note, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM notes WHERE "+where, args...)
	var payload string
	if err := row.Scan(&payload); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var n model.Note
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, fmt.Errorf("unmarshal note: %w", err)
	}

	if opts.Has(localstore.WithResourceMetadata) {
		resources, err := s.resourcesForNote(ctx, n.LocalID, opts.Has(localstore.WithResourceBinaryData))
		if err != nil {
			return nil, err
		}
		n.Resources = resources
	} else {
		n.Resources = nil
	}
	return &n, nil
}

func (s *Store) resourcesForNote(ctx context.Context, noteLocalID string, withData bool) ([]*model.Resource, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM resources WHERE note_local_id = ?", noteLocalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Resource
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r model.Resource
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("unmarshal resource: %w", err)
		}
		if !withData {
			r.Data = nil
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *Store) PutNote(ctx context.Context, n *model.Note) error {
	if n.LocalID == "" {
		n.LocalID = model.NewLocalID()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notes (local_id, guid, payload) VALUES (?, NULLIF(?, ''), ?)
		ON CONFLICT(local_id) DO UPDATE SET guid = excluded.guid, payload = excluded.payload
	`, n.LocalID, n.Guid, payload); err != nil {
		return err
	}

	for _, r := range n.Resources {
		if r.LocalID == "" {
			r.LocalID = model.NewLocalID()
		}
		r.NoteLocalID = n.LocalID
		rp, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal resource: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resources (local_id, guid, note_local_id, payload) VALUES (?, NULLIF(?, ''), ?, ?)
			ON CONFLICT(local_id) DO UPDATE SET guid = excluded.guid, note_local_id = excluded.note_local_id, payload = excluded.payload
		`, r.LocalID, r.Guid, r.NoteLocalID, rp); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ExpungeNoteByGuid(ctx context.Context, guid string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE guid = ?", guid)
	return err
}

func (s *Store) ListNotes(ctx context.Context, locallyModifiedOnly bool) ([]*model.Note, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM notes")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Note
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var n model.Note
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			return nil, fmt.Errorf("unmarshal note: %w", err)
		}
		if locallyModifiedOnly && !n.LocallyModified {
			continue
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// --- resources ---

func (s *Store) FindResourceByGuid(ctx context.Context, guid string, withBinaryData bool) (*model.Resource, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM resources WHERE guid = ?", guid)
	var payload string
	if err := row.Scan(&payload); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var r model.Resource
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("unmarshal resource: %w", err)
	}
	if !withBinaryData {
		r.Data = nil
	}
	return &r, nil
}

func (s *Store) PutResource(ctx context.Context, r *model.Resource) error {
	if r.LocalID == "" {
		r.LocalID = model.NewLocalID()
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal resource: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resources (local_id, guid, note_local_id, payload) VALUES (?, NULLIF(?, ''), ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET guid = excluded.guid, note_local_id = excluded.note_local_id, payload = excluded.payload
	`, r.LocalID, r.Guid, r.NoteLocalID, payload)
	return err
}

func (s *Store) ExpungeResourceByGuid(ctx context.Context, guid string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM resources WHERE guid = ?", guid)
	return err
}

func (s *Store) ListResources(ctx context.Context, locallyModifiedOnly bool) ([]*model.Resource, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM resources")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Resource
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r model.Resource
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("unmarshal resource: %w", err)
		}
		if locallyModifiedOnly && !r.LocallyModified {
			continue
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
