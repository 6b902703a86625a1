package transition

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/chain"
)

// SnapshotStateChangeCount sets how often the manager snapshots the
// full chain state instead of relying on replaying every state-change
// since the last one (spec §4.9).
const SnapshotStateChangeCount = 500

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	identifier TEXT PRIMARY KEY,
	started_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS state_changes (
	identifier TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS state_events (
	identifier TEXT PRIMARY KEY,
	source_statechange_id TEXT NOT NULL,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS state_snapshot (
	identifier TEXT PRIMARY KEY,
	statechange_id TEXT,
	statechange_qty INTEGER NOT NULL,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS transport_queue (
	identifier TEXT PRIMARY KEY,
	recipient TEXT NOT NULL,
	channel_identifier TEXT,
	message_identifier TEXT NOT NULL,
	data BLOB NOT NULL,
	delivered INTEGER NOT NULL DEFAULT 0
);
`

func init() {
	gob.Register(&chain.State{})
}

// Storage is the append-only sqlite-backed log of state-changes,
// the events each one produced, and periodic full-state snapshots
// (spec §4.9/§6.6), grounded on original_source's
// raiden/storage/src/state.rs StateStorage and its five-table shape
// (state_changes/state_events/state_snapshot/settings/runs), with a
// transport_queue table added per spec's note that the retry queue
// should live in its own table separate from state_changes.
type Storage struct {
	db *sql.DB
}

// OpenStorage opens (creating if necessary) the sqlite database at
// path and ensures its schema exists.
func OpenStorage(path string) (*Storage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("transition: opening storage: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("transition: creating schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error { return s.db.Close() }

func encodeValue(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeValue(data []byte) (interface{}, error) {
	var v interface{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// StoreStateChange appends stateChange to the durable log and returns
// its newly minted identifier.
func (s *Storage) StoreStateChange(stateChange interface{}) (string, error) {
	data, err := encodeValue(stateChange)
	if err != nil {
		return "", fmt.Errorf("transition: encoding state change: %w", err)
	}
	id := ulid.Make().String()
	_, err = s.db.Exec(`INSERT INTO state_changes(identifier, data) VALUES (?, ?)`, id, data)
	if err != nil {
		return "", fmt.Errorf("transition: storing state change: %w", err)
	}
	return id, nil
}

// StoreEvents records events as having been produced by the
// state-change stored under stateChangeID.
func (s *Storage) StoreEvents(stateChangeID string, events []interface{}) error {
	if len(events) == 0 {
		return nil
	}
	data, err := encodeValue(events)
	if err != nil {
		return fmt.Errorf("transition: encoding events: %w", err)
	}
	id := ulid.Make().String()
	_, err = s.db.Exec(`INSERT INTO state_events(identifier, source_statechange_id, data) VALUES (?, ?, ?)`, id, stateChangeID, data)
	if err != nil {
		return fmt.Errorf("transition: storing events: %w", err)
	}
	return nil
}

// StoreSnapshot records the full chain state as of stateChangeID
// (empty for "no state-change yet", mirroring the teacher's
// Option<StorageID> as a nullable column) and how many state-changes
// had been applied at that point.
func (s *Storage) StoreSnapshot(state *chain.State, stateChangeID string, statechangeQty int) error {
	data, err := encodeValue(state)
	if err != nil {
		return fmt.Errorf("transition: encoding snapshot: %w", err)
	}
	id := ulid.Make().String()
	var scID interface{}
	if stateChangeID != "" {
		scID = stateChangeID
	}
	_, err = s.db.Exec(`INSERT INTO state_snapshot(identifier, statechange_id, statechange_qty, data) VALUES (?, ?, ?, ?)`,
		id, scID, statechangeQty, data)
	if err != nil {
		return fmt.Errorf("transition: storing snapshot: %w", err)
	}
	return nil
}

// Snapshot is the latest full chain state on record, plus the
// identifier of the state-change it was taken after (empty if it
// predates every state-change).
type Snapshot struct {
	State               *chain.State
	StateChangeID       string
	StateChangeQuantity int
}

// LatestSnapshot returns the most recently stored snapshot, or nil if
// none has ever been taken.
func (s *Storage) LatestSnapshot() (*Snapshot, error) {
	row := s.db.QueryRow(`SELECT statechange_id, statechange_qty, data FROM state_snapshot ORDER BY identifier DESC LIMIT 1`)
	var scID sql.NullString
	var qty int
	var data []byte
	if err := row.Scan(&scID, &qty, &data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("transition: reading snapshot: %w", err)
	}
	v, err := decodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("transition: decoding snapshot: %w", err)
	}
	state, ok := v.(*chain.State)
	if !ok {
		return nil, fmt.Errorf("transition: snapshot data is not a chain state")
	}
	return &Snapshot{State: state, StateChangeID: scID.String, StateChangeQuantity: qty}, nil
}

// StateChangesSince returns every state-change recorded strictly after
// afterID, in the order they were stored (empty afterID means "from
// the beginning").
func (s *Storage) StateChangesSince(afterID string) ([]interface{}, error) {
	var rows *sql.Rows
	var err error
	if afterID == "" {
		rows, err = s.db.Query(`SELECT identifier, data FROM state_changes ORDER BY identifier ASC`)
	} else {
		rows, err = s.db.Query(`SELECT identifier, data FROM state_changes WHERE identifier > ? ORDER BY identifier ASC`, afterID)
	}
	if err != nil {
		return nil, fmt.Errorf("transition: reading state changes: %w", err)
	}
	defer rows.Close()

	var out []interface{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("transition: scanning state change: %w", err)
		}
		v, err := decodeValue(data)
		if err != nil {
			return nil, fmt.Errorf("transition: decoding state change %s: %w", id, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// RecordRun marks the start of a node run under a fresh ULID, letting
// an operator correlate storage contents with a particular process
// lifetime.
func (s *Storage) RecordRun(startedAt string) error {
	_, err := s.db.Exec(`INSERT INTO runs(identifier, started_at) VALUES (?, ?)`, ulid.Make().String(), startedAt)
	return err
}

// Setting reads a single key from the settings table.
func (s *Storage) Setting(key string) (string, bool, error) {
	row := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SetSetting upserts a single key in the settings table.
func (s *Storage) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings(key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
