package settings

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteMemory stores the image as one row per written byte. Missing rows
// read as erased.
type SQLiteMemory struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens the database at path and creates the image table.
func OpenSQLite(path string) (*SQLiteMemory, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS eeprom (
			addr INTEGER PRIMARY KEY,
			value INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create eeprom table: %w", err)
	}
	return &SQLiteMemory{db: db}, nil
}

// ReadByteAt implements Memory.
func (m *SQLiteMemory) ReadByteAt(off int) (byte, error) {
	if err := checkOffset(off); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read(off)
}

func (m *SQLiteMemory) read(off int) (byte, error) {
	var v int
	err := m.db.QueryRow(`SELECT value FROM eeprom WHERE addr = ?`, off).Scan(&v)
	if err == sql.ErrNoRows {
		return erased, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read offset %d: %w", off, err)
	}
	return byte(v), nil
}

// UpdateByteAt implements Memory.
func (m *SQLiteMemory) UpdateByteAt(off int, v byte) error {
	if err := checkOffset(off); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, err := m.read(off)
	if err != nil {
		return err
	}
	if cur == v {
		return nil
	}
	_, err = m.db.Exec(`
		INSERT INTO eeprom (addr, value) VALUES (?, ?)
		ON CONFLICT(addr) DO UPDATE SET value = excluded.value
	`, off, int(v))
	if err != nil {
		return fmt.Errorf("write offset %d: %w", off, err)
	}
	return nil
}

// Close closes the database.
func (m *SQLiteMemory) Close() error {
	return m.db.Close()
}
