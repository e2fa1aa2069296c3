package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
	"github.com/oklog/ulid/v2"

	"github.com/kittclouds/aide/internal/kernel"
)

// schema keeps an append-only event log plus a single materialized-snapshot
// row per aide. The event log already is the version history, so no
// separate temporal versioning table is needed.
const schema = `
CREATE TABLE IF NOT EXISTS aides (
    id TEXT PRIMARY KEY,
    blueprint_identity TEXT,
    blueprint_voice TEXT,
    blueprint_prompt TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    aide_id TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    id TEXT NOT NULL,
    actor TEXT,
    source TEXT,
    type TEXT NOT NULL,
    payload TEXT NOT NULL,
    ts TEXT NOT NULL,
    PRIMARY KEY (aide_id, sequence)
);

CREATE TABLE IF NOT EXISTS snapshots (
    aide_id TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    hash TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    aide_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    ts TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_aide ON messages(aide_id, id);

CREATE TABLE IF NOT EXISTS artifacts (
    aide_id TEXT NOT NULL,
    slug TEXT,
    artifact_key TEXT NOT NULL,
    content_type TEXT,
    public INTEGER DEFAULT 0,
    body BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (artifact_key)
);

CREATE INDEX IF NOT EXISTS idx_artifacts_aide_slug ON artifacts(aide_id, slug);

-- Optional semantic-recall index over pinned annotations, written only
-- through IndexAnnotationEmbedding; the turn pipeline does not call it, and
-- absence of embeddings never blocks a turn.
CREATE VIRTUAL TABLE IF NOT EXISTS annotation_vectors USING vec0(
    embedding FLOAT[384]
);

CREATE TABLE IF NOT EXISTS annotation_vector_meta (
    rowid INTEGER PRIMARY KEY,
    aide_id TEXT NOT NULL,
    annotation_seq INTEGER NOT NULL
);
`

// SQLiteStore is the sole Store implementation, backed by ncruces/go-sqlite3
// (CGO-free, wazero-backed).
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates or opens a SQLite-backed store at dsn (e.g. a file path, or
// "file::memory:?cache=shared" for tests) and ensures schema exists.
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Hydrate(aideID string) (HydrateResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, hash, err := s.loadSnapshot(aideID)
	if err != nil {
		return HydrateResult{}, err
	}
	events, err := s.loadEvents(aideID)
	if err != nil {
		return HydrateResult{}, err
	}
	bp, err := s.loadBlueprint(aideID)
	if err != nil {
		return HydrateResult{}, err
	}
	msgs, err := s.loadMessages(aideID, 0)
	if err != nil {
		return HydrateResult{}, err
	}
	return HydrateResult{
		Snapshot:     snap,
		Events:       events,
		Blueprint:    bp,
		Messages:     msgs,
		SnapshotHash: hash,
	}, nil
}

func (s *SQLiteStore) LoadForTurn(aideID string) (LoadForTurnResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, _, err := s.loadSnapshot(aideID)
	if err != nil {
		return LoadForTurnResult{}, err
	}
	bp, err := s.loadBlueprint(aideID)
	if err != nil {
		return LoadForTurnResult{}, err
	}
	tail, err := s.loadMessages(aideID, 10)
	if err != nil {
		return LoadForTurnResult{}, err
	}
	return LoadForTurnResult{Snapshot: snap, ConversationTail: tail, Blueprint: bp}, nil
}

// PersistTurn commits appended events and the new snapshot in one
// transaction: either all appended events and the new snapshot commit, or
// none do, per the durability contract.
func (s *SQLiteStore) PersistTurn(aideID string, appliedEvents []kernel.Event, newSnapshot kernel.Snapshot, userMessage, assistantSummary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("persistence: begin: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range appliedEvents {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO events (aide_id, sequence, id, actor, source, type, payload, ts)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			aideID, ev.Sequence, ev.ID, ev.Actor, ev.Source, string(ev.Type), string(ev.Payload), ev.Timestamp,
		); err != nil {
			return fmt.Errorf("persistence: insert event: %w", err)
		}
	}

	body, err := newSnapshot.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}
	hash, err := newSnapshot.Hash()
	if err != nil {
		return fmt.Errorf("persistence: hash snapshot: %w", err)
	}
	now := time.Now().Unix()
	if _, err := tx.Exec(
		`INSERT INTO snapshots (aide_id, body, hash, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(aide_id) DO UPDATE SET body = excluded.body, hash = excluded.hash, updated_at = excluded.updated_at`,
		aideID, string(body), hash, now,
	); err != nil {
		return fmt.Errorf("persistence: upsert snapshot: %w", err)
	}

	if userMessage != "" {
		if _, err := tx.Exec(
			`INSERT INTO messages (aide_id, role, content, ts) VALUES (?, 'user', ?, ?)`,
			aideID, userMessage, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("persistence: insert user message: %w", err)
		}
	}
	if assistantSummary != "" {
		if _, err := tx.Exec(
			`INSERT INTO messages (aide_id, role, content, ts) VALUES (?, 'assistant', ?, ?)`,
			aideID, assistantSummary, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("persistence: insert assistant summary: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Publish(aideID, slug string, renderedBytes []byte, opts PublishOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := "artifacts/" + aideID + "/" + slug
	public := 0
	if opts.Public {
		public = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO artifacts (aide_id, slug, artifact_key, content_type, public, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(artifact_key) DO UPDATE SET body = excluded.body, content_type = excluded.content_type,
		     public = excluded.public, created_at = excluded.created_at`,
		aideID, slug, key, opts.ContentType, public, renderedBytes, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("persistence: publish: %w", err)
	}
	return nil
}

// Fork deep-clones an aide's snapshot and blueprint into a new aide id;
// events and conversation start empty, matching the contract.
func (s *SQLiteStore) Fork(aideID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, _, err := s.loadSnapshot(aideID)
	if err != nil {
		return "", err
	}
	bp, err := s.loadBlueprint(aideID)
	if err != nil {
		return "", err
	}

	newID := "aide_" + ulid.Make().String()
	body, err := snap.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("persistence: marshal fork snapshot: %w", err)
	}
	hash, err := snap.Hash()
	if err != nil {
		return "", fmt.Errorf("persistence: hash fork snapshot: %w", err)
	}
	now := time.Now().Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("persistence: begin fork: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO aides (id, blueprint_identity, blueprint_voice, blueprint_prompt, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		newID, bp.Identity, bp.Voice, bp.Prompt, now, now,
	); err != nil {
		return "", fmt.Errorf("persistence: insert forked aide: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO snapshots (aide_id, body, hash, updated_at) VALUES (?, ?, ?, ?)`,
		newID, string(body), hash, now,
	); err != nil {
		return "", fmt.Errorf("persistence: insert forked snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("persistence: commit fork: %w", err)
	}
	return newID, nil
}

// PutArtifact writes an opaque blob (e.g. a flight-log batch) under key.
// Used by the telemetry uploader for its JSONL batch files.
func (s *SQLiteStore) PutArtifact(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO artifacts (aide_id, slug, artifact_key, content_type, public, body, created_at)
		 VALUES ('', '', ?, 'application/x-ndjson', 0, ?, ?)
		 ON CONFLICT(artifact_key) DO UPDATE SET body = excluded.body, created_at = excluded.created_at`,
		key, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("persistence: put artifact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadSnapshot(aideID string) (kernel.Snapshot, string, error) {
	var body, hash string
	err := s.db.QueryRow(`SELECT body, hash FROM snapshots WHERE aide_id = ?`, aideID).Scan(&body, &hash)
	if err == sql.ErrNoRows {
		empty := kernel.Empty()
		h, herr := empty.Hash()
		if herr != nil {
			return kernel.Snapshot{}, "", herr
		}
		return empty, h, nil
	}
	if err != nil {
		return kernel.Snapshot{}, "", fmt.Errorf("persistence: load snapshot: %w", err)
	}
	var snap kernel.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return kernel.Snapshot{}, "", fmt.Errorf("persistence: unmarshal snapshot: %w", err)
	}
	return snap, hash, nil
}

func (s *SQLiteStore) loadEvents(aideID string) ([]kernel.Event, error) {
	rows, err := s.db.Query(
		`SELECT sequence, id, actor, source, type, payload, ts FROM events WHERE aide_id = ? ORDER BY sequence ASC`,
		aideID,
	)
	if err != nil {
		return nil, fmt.Errorf("persistence: load events: %w", err)
	}
	defer rows.Close()

	var out []kernel.Event
	for rows.Next() {
		var ev kernel.Event
		var payload string
		var typ string
		if err := rows.Scan(&ev.Sequence, &ev.ID, &ev.Actor, &ev.Source, &typ, &payload, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("persistence: scan event: %w", err)
		}
		ev.Type = kernel.PrimitiveType(typ)
		ev.Payload = json.RawMessage(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadBlueprint(aideID string) (Blueprint, error) {
	var bp Blueprint
	err := s.db.QueryRow(
		`SELECT blueprint_identity, blueprint_voice, blueprint_prompt FROM aides WHERE id = ?`, aideID,
	).Scan(&bp.Identity, &bp.Voice, &bp.Prompt)
	if err == sql.ErrNoRows {
		return Blueprint{}, nil
	}
	if err != nil {
		return Blueprint{}, fmt.Errorf("persistence: load blueprint: %w", err)
	}
	return bp, nil
}

// loadMessages returns the full history (limit 0) or the last limit rows in
// chronological order.
func (s *SQLiteStore) loadMessages(aideID string, limit int) ([]ConversationMessage, error) {
	query := `SELECT role, content, ts FROM messages WHERE aide_id = ? ORDER BY id ASC`
	args := []interface{}{aideID}
	if limit > 0 {
		query = `SELECT role, content, ts FROM (
			SELECT role, content, ts, id FROM messages WHERE aide_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("persistence: load messages: %w", err)
	}
	defer rows.Close()

	var out []ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("persistence: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// IndexAnnotationEmbedding stores a best-effort semantic-recall vector for a
// pinned annotation. Failures here are never fatal to a turn; callers
// should log and continue rather than propagate.
func (s *SQLiteStore) IndexAnnotationEmbedding(aideID string, annotationSeq int64, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("persistence: marshal embedding: %w", err)
	}
	res, err := s.db.Exec(`INSERT INTO annotation_vectors (embedding) VALUES (?)`, string(buf))
	if err != nil {
		return fmt.Errorf("persistence: insert vector: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("persistence: vector rowid: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO annotation_vector_meta (rowid, aide_id, annotation_seq) VALUES (?, ?, ?)`,
		rowID, aideID, annotationSeq,
	)
	if err != nil {
		return fmt.Errorf("persistence: insert vector meta: %w", err)
	}
	return nil
}
