package fs

import (
	"os"
	"path/filepath"
	"strings"
)

// SpecialFolders returns the well-known user folders that exist, keyed by
// role: desktop, documents, downloads, pictures, music, videos, plus cloud
// sync roots (onedrive, onedriveBusiness, googleDrive, dropbox,
// dropboxPersonal, dropboxBusiness, icloud) when present. A missing
// desktop, documents or pictures folder falls back to the copy inside a
// OneDrive root.
func SpecialFolders() map[string]string {
	home, err := os.UserHomeDir()
	if err != nil {
		return map[string]string{}
	}
	return specialFolders(home)
}

func specialFolders(home string) map[string]string {
	standard := map[string]string{
		"desktop":   "Desktop",
		"documents": "Documents",
		"downloads": "Downloads",
		"pictures":  "Pictures",
		"music":     "Music",
		"videos":    "Videos",
	}

	found := make(map[string]string)
	var oneDriveRoots []string

	if p := filepath.Join(home, "OneDrive"); isDir(p) {
		found["onedrive"] = p
		oneDriveRoots = append(oneDriveRoots, p)
	}
	if entries, err := os.ReadDir(home); err == nil {
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "OneDrive -") {
				p := filepath.Join(home, e.Name())
				if isDir(p) {
					found["onedriveBusiness"] = p
					oneDriveRoots = append(oneDriveRoots, p)
				}
			}
		}
	}

	for key, dir := range standard {
		p := filepath.Join(home, dir)
		if isDir(p) {
			found[key] = p
			continue
		}
		if key != "desktop" && key != "documents" && key != "pictures" {
			continue
		}
		for _, root := range oneDriveRoots {
			if alt := filepath.Join(root, dir); isDir(alt) {
				found[key] = alt
				break
			}
		}
	}

	for _, p := range []string{
		filepath.Join(home, "Google Drive"),
		filepath.Join(home, "My Drive"),
		`G:\My Drive`,
	} {
		if isDir(p) {
			found["googleDrive"] = p
			break
		}
	}

	dropbox := map[string]string{
		"dropbox":         "Dropbox",
		"dropboxPersonal": "Dropbox (Personal)",
		"dropboxBusiness": "Dropbox (Business)",
	}
	for key, dir := range dropbox {
		if p := filepath.Join(home, dir); isDir(p) {
			found[key] = p
		}
	}

	for _, dir := range []string{"iCloudDrive", "iCloud Drive", filepath.Join("Library", "Mobile Documents", "com~apple~CloudDocs")} {
		if p := filepath.Join(home, dir); isDir(p) {
			found["icloud"] = p
			break
		}
	}

	return found
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
