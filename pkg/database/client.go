// Package database persists instance records to sqlite. The schema is a
// single instances table keyed by instance id with the world snapshot and
// player list stored as JSON.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/d-andres/AgenticRealm/pkg/scenario"
	"github.com/d-andres/AgenticRealm/pkg/world"
)

const schema = `
CREATE TABLE IF NOT EXISTS instances (
	instance_id TEXT PRIMARY KEY,
	scenario_id TEXT,
	state_json TEXT,
	players_json TEXT,
	created_at TEXT,
	updated_at TEXT,
	active INTEGER
);`

// Client wraps the sqlite handle. It implements scenario.Store.
type Client struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path.
func Open(path string) (*Client, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// The driver serializes access per connection; a single connection
	// avoids SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Client{db: db}, nil
}

// Close releases the database handle.
func (c *Client) Close() error {
	return c.db.Close()
}

// SaveInstance upserts one instance record.
func (c *Client) SaveInstance(rec scenario.Record) error {
	stateJSON, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	playersJSON, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("encoding players: %w", err)
	}

	active := 0
	if rec.Active {
		active = 1
	}
	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO instances
			(instance_id, scenario_id, state_json, players_json, created_at, updated_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.InstanceID, rec.ScenarioID, string(stateJSON), string(playersJSON),
		rec.CreatedAt.Format(time.RFC3339), time.Now().Format(time.RFC3339), active)
	if err != nil {
		return fmt.Errorf("saving instance %s: %w", rec.InstanceID, err)
	}
	return nil
}

// LoadInstance fetches one record. The second return is false when the
// instance is not persisted.
func (c *Client) LoadInstance(instanceID string) (scenario.Record, bool, error) {
	row := c.db.QueryRow(`
		SELECT instance_id, scenario_id, state_json, players_json, created_at, active
		FROM instances WHERE instance_id = ?`, instanceID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return scenario.Record{}, false, nil
	}
	if err != nil {
		return scenario.Record{}, false, fmt.Errorf("loading instance %s: %w", instanceID, err)
	}
	return rec, true, nil
}

// ListInstances returns persisted records, optionally only active ones.
func (c *Client) ListInstances(activeOnly bool) ([]scenario.Record, error) {
	query := `SELECT instance_id, scenario_id, state_json, players_json, created_at, active FROM instances`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	defer rows.Close()

	var out []scenario.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("decoding instance row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteInstance removes a record. Deleting a missing record is a no-op.
func (c *Client) DeleteInstance(instanceID string) error {
	_, err := c.db.Exec(`DELETE FROM instances WHERE instance_id = ?`, instanceID)
	if err != nil {
		return fmt.Errorf("deleting instance %s: %w", instanceID, err)
	}
	return nil
}

// MarkInstanceInactive flags a stopped instance without deleting its state.
func (c *Client) MarkInstanceInactive(instanceID string) error {
	_, err := c.db.Exec(`UPDATE instances SET active = 0, updated_at = ? WHERE instance_id = ?`,
		time.Now().Format(time.RFC3339), instanceID)
	if err != nil {
		return fmt.Errorf("marking instance %s inactive: %w", instanceID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (scenario.Record, error) {
	var (
		rec         scenario.Record
		stateJSON   string
		playersJSON string
		createdAt   string
		active      int
	)
	if err := row.Scan(&rec.InstanceID, &rec.ScenarioID, &stateJSON, &playersJSON, &createdAt, &active); err != nil {
		return scenario.Record{}, err
	}

	var snap world.Snapshot
	if stateJSON != "" {
		if err := json.Unmarshal([]byte(stateJSON), &snap); err != nil {
			return scenario.Record{}, err
		}
	}
	rec.State = snap

	if playersJSON != "" {
		if err := json.Unmarshal([]byte(playersJSON), &rec.Players); err != nil {
			return scenario.Record{}, err
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	rec.Active = active == 1
	return rec, nil
}
