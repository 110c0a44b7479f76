// Package trash moves files to the system trash instead of permanently
// deleting them, and lists or empties what is there.
package trash

import (
	"errors"
	"os"
	"time"
)

// ErrUnavailable is returned when the platform trash cannot be used.
var ErrUnavailable = errors.New("trash unavailable")

// Item represents a file or directory in the trash
type Item struct {
	Name         string    `json:"name"`         // Original filename
	OriginalPath string    `json:"originalPath"` // Full path where the file was deleted from
	TrashPath    string    `json:"trashPath"`    // Current path in trash, empty when the OS does not expose it
	DeletedAt    time.Time `json:"deletedAt"`
	Size         int64     `json:"size"`
	IsDir        bool      `json:"isDirectory"`
}

// MoveToTrash moves a file or directory to the system trash and describes
// where it went.
func MoveToTrash(path string) (Item, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Item{}, err
	}
	item, err := moveToTrash(path)
	if err != nil {
		return Item{}, err
	}
	item.Size = info.Size()
	item.IsDir = info.IsDir()
	return item, nil
}

// List returns all items currently in the trash.
func List() ([]Item, error) {
	return list()
}

// Empty permanently deletes all items in the trash.
func Empty() error {
	return empty()
}

// Delete permanently deletes a specific item from the trash.
func Delete(item Item) error {
	return deleteItem(item)
}

// IsAvailable returns true if trash functionality is available on this platform.
func IsAvailable() bool {
	return isAvailable()
}

// DisplayName returns the platform-appropriate name for the trash.
// "Trash" on macOS/Linux, "Recycle Bin" on Windows.
func DisplayName() string {
	return displayName()
}
