// Package store persists file tags, favorites and UI settings in sqlite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/logging"
)

type DB struct {
	mu     sync.Mutex
	conn   *sql.DB
	events events.Publisher
}

// Open initializes the database connection and schema
func Open(dbPath string, pub events.Publisher) (*DB, error) {
	if pub == nil {
		pub = events.Nop{}
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	// WAL mode allows simultaneous readers and writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	// Synchronous NORMAL is safe against app crashes, faster than FULL
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS favorites (
		path TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS tags (
		path TEXT NOT NULL,
		tag TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (path, tag)
	);
	CREATE INDEX IF NOT EXISTS tags_by_tag ON tags(tag);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	debug.Log(debug.STORE, "opened %s", dbPath)
	return &DB{conn: db, events: pub}, nil
}

func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func (d *DB) tagsChanged(path string) {
	d.events.Publish(events.Event{Type: events.TagsChanged, Path: path})
}

// AllTags returns every tagged path with its tags in the order they were added.
func (d *DB) AllTags() (map[string][]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.Query("SELECT path, tag FROM tags ORDER BY path, position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all := make(map[string][]string)
	for rows.Next() {
		var path, tag string
		if err := rows.Scan(&path, &tag); err != nil {
			return nil, err
		}
		all[path] = append(all[path], tag)
	}
	return all, rows.Err()
}

// TagsFor returns the tags on one path.
func (d *DB) TagsFor(path string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tagsForLocked(path)
}

func (d *DB) tagsForLocked(path string) ([]string, error) {
	rows, err := d.conn.Query("SELECT tag FROM tags WHERE path = ? ORDER BY position", path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// PathsWithTag lists the paths carrying tag.
func (d *DB) PathsWithTag(tag string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.Query("SELECT path FROM tags WHERE tag = ? ORDER BY path", tag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// SetTags replaces the tags on path. An empty list removes the entry.
func (d *DB) SetTags(path string, tags []string) error {
	d.mu.Lock()
	err := d.setTagsLocked(path, tags)
	d.mu.Unlock()
	if err != nil {
		logging.Error("store: set tags failed", zap.String("path", path), zap.Error(err))
		return err
	}
	d.tagsChanged(path)
	return nil
}

func (d *DB) setTagsLocked(path string, tags []string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tags WHERE path = ?", path); err != nil {
		return err
	}
	seen := make(map[string]bool, len(tags))
	pos := 0
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		if _, err := tx.Exec("INSERT INTO tags (path, tag, position) VALUES (?, ?, ?)", path, tag, pos); err != nil {
			return err
		}
		pos++
	}
	return tx.Commit()
}

// AddTag appends tag to path unless it is already there.
func (d *DB) AddTag(path, tag string) ([]string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, fmt.Errorf("empty tag")
	}
	d.mu.Lock()
	_, err := d.conn.Exec(`INSERT OR IGNORE INTO tags (path, tag, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM tags WHERE path = ?))`, path, tag, path)
	var tags []string
	if err == nil {
		tags, err = d.tagsForLocked(path)
	}
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	d.tagsChanged(path)
	return tags, nil
}

// RemoveTag removes tag from path.
func (d *DB) RemoveTag(path, tag string) ([]string, error) {
	d.mu.Lock()
	_, err := d.conn.Exec("DELETE FROM tags WHERE path = ? AND tag = ?", path, tag)
	var tags []string
	if err == nil {
		tags, err = d.tagsForLocked(path)
	}
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	d.tagsChanged(path)
	return tags, nil
}

// Favorites returns favorite paths in the order they were added.
func (d *DB) Favorites() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.Query("SELECT path FROM favorites ORDER BY created_at ASC, rowid ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var favs []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		favs = append(favs, path)
	}
	return favs, rows.Err()
}

func (d *DB) AddFavorite(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	// INSERT OR IGNORE handles duplicates
	_, err := d.conn.Exec("INSERT OR IGNORE INTO favorites (path) VALUES (?)", path)
	return err
}

func (d *DB) RemoveFavorite(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.conn.Exec("DELETE FROM favorites WHERE path = ?", path)
	return err
}

// RenamePath moves tags and favorites recorded for oldPath, and for anything
// below it, to newPath.
func (d *DB) RenamePath(oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}
	d.mu.Lock()
	moved, err := d.renameLocked(oldPath, newPath)
	d.mu.Unlock()
	if err != nil {
		logging.Error("store: rename path failed",
			zap.String("old", oldPath), zap.String("new", newPath), zap.Error(err))
		return err
	}
	if moved > 0 {
		d.tagsChanged(newPath)
	}
	return nil
}

func (d *DB) renameLocked(oldPath, newPath string) (int, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	prefix := oldPath + string(filepath.Separator)
	moved := 0
	for _, table := range []string{"tags", "favorites"} {
		rows, err := tx.Query("SELECT DISTINCT path FROM "+table+" WHERE path = ? OR substr(path, 1, ?) = ?",
			oldPath, utf8.RuneCountInString(prefix), prefix)
		if err != nil {
			return 0, err
		}
		var paths []string
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return 0, err
			}
			paths = append(paths, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return 0, err
		}

		for _, p := range paths {
			target := newPath + strings.TrimPrefix(p, oldPath)
			if _, err := tx.Exec("DELETE FROM "+table+" WHERE path = ?", target); err != nil {
				return 0, err
			}
			if _, err := tx.Exec("UPDATE "+table+" SET path = ? WHERE path = ?", target, p); err != nil {
				return 0, err
			}
			if table == "tags" {
				moved++
			}
		}
	}
	return moved, tx.Commit()
}

// ForgetPath drops tags and favorites for path and everything below it.
func (d *DB) ForgetPath(path string) error {
	d.mu.Lock()
	prefix := path + string(filepath.Separator)
	var err error
	for _, table := range []string{"tags", "favorites"} {
		if _, err = d.conn.Exec("DELETE FROM "+table+" WHERE path = ? OR substr(path, 1, ?) = ?",
			path, utf8.RuneCountInString(prefix), prefix); err != nil {
			break
		}
	}
	d.mu.Unlock()
	if err != nil {
		return err
	}
	d.tagsChanged(path)
	return nil
}

// Settings returns all stored UI settings.
func (d *DB) Settings() (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// SaveSetting upserts one setting.
func (d *DB) SaveSetting(key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.conn.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	return err
}
