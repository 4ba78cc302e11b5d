package data

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// MaxSlots matches the number of pattern slots the scanner accepts.
const MaxSlots = 9

var ErrTooManySlots = fmt.Errorf("at most %d pattern slots can be stored", MaxSlots)

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS chapter_regex_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS chapter_regex (
		id         BIGINT PRIMARY KEY DEFAULT nextval('chapter_regex_id_seq'),
		name       VARCHAR NOT NULL,
		example    VARCHAR NOT NULL DEFAULT '',
		pattern    VARCHAR NOT NULL,
		is_enabled BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS pattern_slots (
		slot    INTEGER NOT NULL,
		enabled BOOLEAN NOT NULL,
		pattern VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings_meta (
		name  VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL
	)`,
}

const seededKey = "seeded"

// DefaultRegexes seed an empty pattern library.
var DefaultRegexes = []ChapterRegex{
	{Name: "Chapter N", Example: "Chapter 12", Pattern: `Chapter \d+.*`, Enabled: true},
	{Name: "제N장", Example: "제 3 장 봄", Pattern: `제\s*\d+\s*장.*`, Enabled: true},
	{Name: "N화", Example: "15화", Pattern: `\d+\s*화.*`, Enabled: true},
	{Name: "프롤로그/에필로그", Example: "프롤로그", Pattern: `(프롤로그|에필로그|Prologue|Epilogue).*`, Enabled: true},
}

// InitDuckDB opens the settings database at path, creating the parent
// directory and schema when missing.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return db, nil
}

// Repository stores the chapter pattern library and the slot choices.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the database and seeds the pattern library on first
// use. The caller closes it.
func NewRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}

	repo := &Repository{db: db}
	if err := repo.seed(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// seed fills the library and the slots the first time a database is
// opened. Later opens leave both alone, even when the user emptied them.
func (r *Repository) seed() error {
	var marker int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM settings_meta WHERE name = ?`, seededKey).Scan(&marker); err != nil {
		return fmt.Errorf("failed to read seed marker: %w", err)
	}
	if marker > 0 {
		return nil
	}

	regexCount, err := r.count(`SELECT COUNT(*) FROM chapter_regex`)
	if err != nil {
		return fmt.Errorf("failed to count patterns: %w", err)
	}
	if regexCount == 0 {
		for i := range DefaultRegexes {
			regex := DefaultRegexes[i]
			if err := r.SaveRegex(&regex); err != nil {
				return err
			}
		}
	}

	slotCount, err := r.count(`SELECT COUNT(*) FROM pattern_slots`)
	if err != nil {
		return fmt.Errorf("failed to count slots: %w", err)
	}
	if slotCount == 0 {
		slots := make([]SlotSetting, 0, len(DefaultRegexes))
		for _, regex := range DefaultRegexes {
			slots = append(slots, SlotSetting{Enabled: regex.Enabled, Pattern: regex.Pattern})
		}
		if err := r.SaveSlots(slots); err != nil {
			return err
		}
	}

	if _, err := r.db.Exec(`INSERT INTO settings_meta (name, value) VALUES (?, ?)`, seededKey, "1"); err != nil {
		return fmt.Errorf("failed to write seed marker: %w", err)
	}
	return nil
}

func (r *Repository) count(query string) (int, error) {
	var n int
	err := r.db.QueryRow(query).Scan(&n)
	return n, err
}

// SaveRegex inserts regex when its ID is zero, assigning the new ID, and
// updates it otherwise.
func (r *Repository) SaveRegex(regex *ChapterRegex) error {
	if regex == nil {
		return errors.New("regex cannot be nil")
	}

	if regex.ID == 0 {
		err := r.db.QueryRow(
			`INSERT INTO chapter_regex (name, example, pattern, is_enabled) VALUES (?, ?, ?, ?) RETURNING id`,
			regex.Name, regex.Example, regex.Pattern, regex.Enabled,
		).Scan(&regex.ID)
		if err != nil {
			return fmt.Errorf("failed to insert pattern: %w", err)
		}
		return nil
	}

	res, err := r.db.Exec(
		`UPDATE chapter_regex SET name = ?, example = ?, pattern = ?, is_enabled = ? WHERE id = ?`,
		regex.Name, regex.Example, regex.Pattern, regex.Enabled, regex.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pattern %d: %w", regex.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pattern %d: %w", regex.ID, sql.ErrNoRows)
	}
	return nil
}

// ListRegexes returns patterns ordered by id.
func (r *Repository) ListRegexes(enabledOnly bool) ([]*ChapterRegex, error) {
	query := `SELECT id, name, example, pattern, is_enabled FROM chapter_regex`
	if enabledOnly {
		query += ` WHERE is_enabled`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regexes []*ChapterRegex
	for rows.Next() {
		regex := &ChapterRegex{}
		if err := rows.Scan(&regex.ID, &regex.Name, &regex.Example, &regex.Pattern, &regex.Enabled); err != nil {
			return nil, err
		}
		regexes = append(regexes, regex)
	}
	return regexes, rows.Err()
}

// GetRegex returns nil without error when id does not exist.
func (r *Repository) GetRegex(id int64) (*ChapterRegex, error) {
	regex := &ChapterRegex{}
	err := r.db.QueryRow(
		`SELECT id, name, example, pattern, is_enabled FROM chapter_regex WHERE id = ?`, id,
	).Scan(&regex.ID, &regex.Name, &regex.Example, &regex.Pattern, &regex.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return regex, nil
}

func (r *Repository) DeleteRegex(id int64) error {
	_, err := r.db.Exec(`DELETE FROM chapter_regex WHERE id = ?`, id)
	return err
}

// SaveSlots replaces all stored slots. Slots are numbered 1..n in order.
func (r *Repository) SaveSlots(slots []SlotSetting) error {
	if len(slots) > MaxSlots {
		return fmt.Errorf("%w: got %d", ErrTooManySlots, len(slots))
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pattern_slots`); err != nil {
		return fmt.Errorf("failed to clear slots: %w", err)
	}
	for i, slot := range slots {
		if _, err := tx.Exec(
			`INSERT INTO pattern_slots (slot, enabled, pattern) VALUES (?, ?, ?)`,
			i+1, slot.Enabled, slot.Pattern,
		); err != nil {
			return fmt.Errorf("failed to save slot %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// LoadSlots returns the stored slots ordered by slot number.
func (r *Repository) LoadSlots() ([]SlotSetting, error) {
	rows, err := r.db.Query(`SELECT slot, enabled, pattern FROM pattern_slots ORDER BY slot ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []SlotSetting
	for rows.Next() {
		var s SlotSetting
		if err := rows.Scan(&s.Slot, &s.Enabled, &s.Pattern); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
