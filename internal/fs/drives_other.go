//go:build !linux && !darwin && !windows

package fs

// ListDrives returns the filesystem root on platforms without a volume API.
func ListDrives() []Drive {
	return []Drive{{Name: "/", Path: "/", Available: true}}
}
