//go:build darwin

package fs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// ListDrives returns mounted drives on macOS
func ListDrives() []Drive {
	var drives []Drive
	var mu sync.Mutex

	conf := &fastwalk.Config{Follow: false, MaxDepth: 1}

	err := fastwalk.Walk(conf, "/Volumes", func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		// Skip the root /Volumes directory itself
		if fullPath == "/Volumes" {
			return nil
		}

		// Only process direct children (skip nested entries)
		if filepath.Dir(fullPath) != "/Volumes" {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		name := d.Name()

		// The boot volume appears as a symlink to /
		if d.Type()&fs.ModeSymlink != 0 {
			if target, err := os.Readlink(fullPath); err == nil && target == "/" {
				mu.Lock()
				drives = append([]Drive{{Name: name, Path: "/", Available: true}}, drives...)
				mu.Unlock()
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		_, statErr := os.Stat(fullPath)
		mu.Lock()
		drives = append(drives, Drive{Name: name, Path: fullPath, Available: statErr == nil})
		mu.Unlock()

		return fastwalk.SkipDir // Don't recurse into volumes
	})

	if err != nil || len(drives) == 0 {
		// Fallback to just root
		return []Drive{{Name: "Macintosh HD", Path: "/", Available: true}}
	}

	return drives
}
