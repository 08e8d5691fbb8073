package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

var globalDB *Database

// Open creates or opens the SQLite database at dbPath and ensures the schema.
func Open(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer keeps SQLite from returning SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	d := &Database{db: db}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return d, nil
}

// Initialize opens the database and installs it as the global instance
func Initialize(dbPath string) error {
	d, err := Open(dbPath)
	if err != nil {
		return err
	}
	globalDB = d
	return nil
}

// GetDB returns the global database instance
func GetDB() *Database {
	return globalDB
}

// IsConnected checks if database connection is alive
func IsConnected() bool {
	if globalDB == nil || globalDB.db == nil {
		return false
	}
	return globalDB.db.Ping() == nil
}

// Close closes the global database connection
func Close() error {
	if globalDB == nil {
		return nil
	}
	err := globalDB.Close()
	globalDB = nil
	return err
}

func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Database) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plugin_config (
		plugin TEXT NOT NULL,
		config_key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (plugin, config_key)
	);

	CREATE INDEX IF NOT EXISTS idx_plugin_config_plugin ON plugin_config(plugin);
	`

	_, err := d.db.Exec(schema)
	return err
}

// LoadPluginConfig returns every stored value for a plugin keyed by dotted path.
// Values come back JSON-decoded, so numbers are float64.
func (d *Database) LoadPluginConfig(plugin string) (map[string]any, error) {
	rows, err := d.db.Query(
		`SELECT config_key, value FROM plugin_config WHERE plugin = ?`,
		plugin,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", plugin, key, err)
		}
		values[key] = value
	}

	return values, rows.Err()
}

// SavePluginValue upserts one dotted config key for a plugin
func (d *Database) SavePluginValue(plugin, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s.%s: %w", plugin, key, err)
	}

	_, err = d.db.Exec(
		`INSERT OR REPLACE INTO plugin_config (plugin, config_key, value, updated_at)
		 VALUES (?, ?, ?, ?)`,
		plugin, key, string(raw), time.Now().Unix(),
	)
	return err
}

// DeletePluginConfig removes every stored value for a plugin
func (d *Database) DeletePluginConfig(plugin string) error {
	_, err := d.db.Exec(`DELETE FROM plugin_config WHERE plugin = ?`, plugin)
	return err
}
