// Package plannerdb records planning cycles to sqlite for the monitor
// charts and offline analysis. The planner itself never depends on it
// succeeding; recording failures are logged and dropped by the caller.
package plannerdb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/highway-planner/internal/trajectory"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the planner database at path. Use
// ":memory:" for an ephemeral database in tests.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer: sqlite serializes writes anyway, and one connection
	// keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id        TEXT PRIMARY KEY,
			map_file          TEXT,
			started           TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS ticks (
			session_id        TEXT,
			tick              BIGINT,
			ego_x             DOUBLE,
			ego_y             DOUBLE,
			ego_s             DOUBLE,
			ego_d             DOUBLE,
			lane              BIGINT,
			ref_speed         DOUBLE,
			cost_left         DOUBLE,
			cost_mid          DOUBLE,
			cost_right        DOUBLE,
			trajectory        TEXT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_ticks_session ON ticks(session_id, tick);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// TickRecord is the persisted summary of one planning cycle.
type TickRecord struct {
	Tick       int64
	EgoX       float64
	EgoY       float64
	EgoS       float64
	EgoD       float64
	Lane       int
	RefSpeed   float64
	Costs      [3]float64 // left, mid, right
	Trajectory []trajectory.Point
}

// StartSession registers a new planning session and returns its id.
func (db *DB) StartSession(mapFile string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO sessions (session_id, map_file) VALUES (?, ?)`, id, mapFile)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// RecordTick appends one planning cycle to the session.
func (db *DB) RecordTick(sessionID string, rec TickRecord) error {
	path, err := json.Marshal(rec.Trajectory)
	if err != nil {
		return fmt.Errorf("failed to encode trajectory: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO ticks (
			session_id, tick, ego_x, ego_y, ego_s, ego_d,
			lane, ref_speed, cost_left, cost_mid, cost_right, trajectory
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.Tick, rec.EgoX, rec.EgoY, rec.EgoS, rec.EgoD,
		rec.Lane, rec.RefSpeed, rec.Costs[0], rec.Costs[1], rec.Costs[2], string(path),
	)
	if err != nil {
		return fmt.Errorf("failed to record tick: %w", err)
	}
	return nil
}

// SessionTicks returns all recorded ticks of a session in tick order.
func (db *DB) SessionTicks(sessionID string) ([]TickRecord, error) {
	rows, err := db.Query(`
		SELECT tick, ego_x, ego_y, ego_s, ego_d,
		       lane, ref_speed, cost_left, cost_mid, cost_right, trajectory
		FROM ticks WHERE session_id = ? ORDER BY tick`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	var records []TickRecord
	for rows.Next() {
		var rec TickRecord
		var path string
		if err := rows.Scan(
			&rec.Tick, &rec.EgoX, &rec.EgoY, &rec.EgoS, &rec.EgoD,
			&rec.Lane, &rec.RefSpeed, &rec.Costs[0], &rec.Costs[1], &rec.Costs[2], &path,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		if err := json.Unmarshal([]byte(path), &rec.Trajectory); err != nil {
			return nil, fmt.Errorf("failed to decode trajectory: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestSession returns the most recently started session id, or "" when
// the database holds none.
func (db *DB) LatestSession() (string, error) {
	var id string
	err := db.QueryRow(`SELECT session_id FROM sessions ORDER BY started DESC, rowid DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest session: %w", err)
	}
	return id, nil
}
