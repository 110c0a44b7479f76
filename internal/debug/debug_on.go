//go:build debug

// Package debug provides a centralized, categorized trace logger.
// Build with -tags debug to enable it.
package debug

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// Enabled indicates whether debug logging is active
const Enabled = true

// Category represents a debug logging category
type Category string

const (
	APP    Category = "APP"    // Service wiring, bridge dispatch
	FS     Category = "FS"     // Listing, stat, folder size
	SEARCH Category = "SEARCH" // Plain and advanced search
	STORE  Category = "STORE"  // Tag and favorites database
	OPS    Category = "OPS"    // Copy, move, rename, create, delete
	UNDO   Category = "UNDO"   // Undo/redo stack transitions
	THUMB  Category = "THUMB"  // Thumbnail cache

	// Verbose, per-entry categories
	FS_ENTRY Category = "FS_ENTRY" // Individual entry processing
	FS_WALK  Category = "FS_WALK"  // Traversal queue scheduling
)

var (
	enabledCategories = map[Category]bool{
		APP:    true,
		FS:     true,
		SEARCH: true,
		STORE:  true,
		OPS:    true,
		UNDO:   true,
		THUMB:  true,
		// Verbose categories disabled by default
		FS_ENTRY: false,
		FS_WALK:  false,
	}
	categoryMu sync.RWMutex

	logger = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
)

func init() {
	// SOLSTICE_DEBUG=all | none | FS,SEARCH,...
	env := os.Getenv("SOLSTICE_DEBUG")
	if env == "" {
		return
	}
	categoryMu.Lock()
	defer categoryMu.Unlock()

	switch env = strings.ToUpper(env); env {
	case "ALL":
		for cat := range enabledCategories {
			enabledCategories[cat] = true
		}
	case "NONE":
		for cat := range enabledCategories {
			enabledCategories[cat] = false
		}
	default:
		for cat := range enabledCategories {
			enabledCategories[cat] = false
		}
		for _, cat := range strings.Split(env, ",") {
			enabledCategories[Category(strings.TrimSpace(cat))] = true
		}
	}
}

// Log logs a debug message for the specified category
func Log(cat Category, format string, args ...interface{}) {
	categoryMu.RLock()
	enabled := enabledCategories[cat]
	categoryMu.RUnlock()

	if !enabled {
		return
	}
	logger.Printf("[%s] %s", cat, fmt.Sprintf(format, args...))
}

// Enable enables a debug category
func Enable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = true
	categoryMu.Unlock()
}

// Disable disables a debug category
func Disable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = false
	categoryMu.Unlock()
}

// IsEnabled returns whether a category is enabled
func IsEnabled(cat Category) bool {
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	return enabledCategories[cat]
}

// EnableAll enables every category including the verbose ones
func EnableAll() {
	categoryMu.Lock()
	for cat := range enabledCategories {
		enabledCategories[cat] = true
	}
	categoryMu.Unlock()
}

// ListEnabled returns the enabled categories in sorted order
func ListEnabled() []Category {
	categoryMu.RLock()
	defer categoryMu.RUnlock()

	var enabled []Category
	for cat, on := range enabledCategories {
		if on {
			enabled = append(enabled, cat)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i] < enabled[j] })
	return enabled
}
