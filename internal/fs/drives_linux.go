//go:build linux

package fs

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// virtualFSTypes are pseudo filesystems never shown as drives.
var virtualFSTypes = map[string]bool{
	"tmpfs":      true,
	"devtmpfs":   true,
	"cgroup":     true,
	"cgroup2":    true,
	"overlay":    true,
	"squashfs":   true,
	"autofs":     true,
	"fusectl":    true,
	"securityfs": true,
	"debugfs":    true,
	"tracefs":    true,
	"mqueue":     true,
	"pstore":     true,
	"bpf":        true,
	"configfs":   true,
}

// ListDrives returns mounted drives on Linux
func ListDrives() []Drive {
	drives := []Drive{{Name: "/ (Root)", Path: "/", Available: true}}

	file, err := os.Open("/proc/mounts")
	if err != nil {
		return drives
	}
	defer file.Close()

	seen := map[string]bool{"/": true}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mountPoint := unescapeMount(fields[1])
		if seen[mountPoint] || virtualFSTypes[fields[2]] || shouldSkipPath(mountPoint) {
			continue
		}
		seen[mountPoint] = true

		name := mountPoint
		switch {
		case strings.HasPrefix(mountPoint, "/media/"), strings.HasPrefix(mountPoint, "/mnt/"):
			name = filepath.Base(mountPoint)
		case mountPoint == "/home":
			name = "Home"
		}
		_, statErr := os.Stat(mountPoint)
		drives = append(drives, Drive{Name: name, Path: mountPoint, Available: statErr == nil})
	}

	return drives
}

// unescapeMount decodes the octal escapes /proc/mounts uses for spaces and tabs.
func unescapeMount(s string) string {
	r := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return r.Replace(s)
}
