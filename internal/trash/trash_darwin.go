//go:build darwin

package trash

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/otiai10/copy"
)

// macOS uses ~/.Trash for the user's trash.
// Files are moved there directly without metadata files (unlike Linux freedesktop spec).
// To handle name conflicts, we append timestamps to filenames.

func getPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".Trash")
}

func isAvailable() bool {
	trashPath := getPath()
	if trashPath == "" {
		return false
	}
	info, err := os.Stat(trashPath)
	return err == nil && info.IsDir()
}

func moveToTrash(path string) (Item, error) {
	trashPath := getPath()
	if trashPath == "" {
		return Item{}, ErrUnavailable
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Item{}, err
	}
	baseName := filepath.Base(absPath)

	destPath := filepath.Join(trashPath, baseName)
	if _, err := os.Lstat(destPath); err == nil {
		ext := filepath.Ext(baseName)
		name := strings.TrimSuffix(baseName, ext)
		timestamp := time.Now().Format("2006-01-02-150405")
		destPath = filepath.Join(trashPath, fmt.Sprintf("%s %s%s", name, timestamp, ext))
	}

	if err := os.Rename(absPath, destPath); err != nil {
		// Cross-device: copy then remove the source
		if err := copy.Copy(absPath, destPath); err != nil {
			return Item{}, fmt.Errorf("cannot copy to trash: %w", err)
		}
		if err := os.RemoveAll(absPath); err != nil {
			return Item{}, err
		}
	}

	return Item{
		Name:         baseName,
		OriginalPath: absPath,
		TrashPath:    destPath,
		DeletedAt:    time.Now(),
	}, nil
}

func list() ([]Item, error) {
	trashPath := getPath()
	if trashPath == "" {
		return nil, ErrUnavailable
	}

	entries, err := os.ReadDir(trashPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Empty trash
		}
		return nil, err
	}

	var items []Item
	for _, entry := range entries {
		// Skip .DS_Store and other hidden system files
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		fullPath := filepath.Join(trashPath, entry.Name())

		// ~/.Trash keeps no record of the original location
		items = append(items, Item{
			Name:         entry.Name(),
			TrashPath:    fullPath,
			DeletedAt:    info.ModTime(),
			Size:         info.Size(),
			IsDir:        entry.IsDir(),
		})
	}

	return items, nil
}

func empty() error {
	trashPath := getPath()
	if trashPath == "" {
		return ErrUnavailable
	}

	entries, err := os.ReadDir(trashPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Already empty
		}
		return err
	}

	var lastErr error
	for _, entry := range entries {
		// Skip .DS_Store - let the system manage it
		if entry.Name() == ".DS_Store" {
			continue
		}

		fullPath := filepath.Join(trashPath, entry.Name())
		if err := os.RemoveAll(fullPath); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

func deleteItem(item Item) error {
	return os.RemoveAll(item.TrashPath)
}

func displayName() string {
	return "Trash"
}
