//go:build windows

package trash

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unsafe"

	"github.com/justyntemme/solstice/internal/fs"
	"golang.org/x/sys/windows"
)

// Windows uses the Recycle Bin via shell32.dll SHFileOperationW.
// The Recycle Bin stores files in hidden $Recycle.Bin folders on each drive.
// We use the Shell API to properly interact with it.

var (
	shell32                = windows.NewLazySystemDLL("shell32.dll")
	procSHFileOperationW   = shell32.NewProc("SHFileOperationW")
	procSHEmptyRecycleBinW = shell32.NewProc("SHEmptyRecycleBinW")
)

// SHFILEOPSTRUCTW for SHFileOperationW
type shFileOpStruct struct {
	hwnd                  uintptr
	wFunc                 uint32
	pFrom                 *uint16
	pTo                   *uint16
	fFlags                uint16
	fAnyOperationsAborted int32
	hNameMappings         uintptr
	lpszProgressTitle     *uint16
}

const (
	foDelete          = 0x0003
	fofAllowUndo      = 0x0040
	fofNoConfirmation = 0x0010
	fofNoErrorUI      = 0x0400
	fofSilent         = 0x0004

	sherbNoConfirmation = 0x00000001
	sherbNoProgressUI   = 0x00000002
	sherbNoSound        = 0x00000004
)

func isAvailable() bool {
	// Recycle Bin is always available on Windows
	return true
}

func moveToTrash(path string) (Item, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Item{}, err
	}

	// SHFileOperationW requires a double-null-terminated string
	from, err := windows.UTF16PtrFromString(absPath + "\x00")
	if err != nil {
		return Item{}, err
	}

	op := shFileOpStruct{
		wFunc:  foDelete,
		pFrom:  from,
		fFlags: fofAllowUndo | fofNoConfirmation | fofNoErrorUI | fofSilent,
	}

	ret, _, _ := procSHFileOperationW.Call(uintptr(unsafe.Pointer(&op)))
	if ret != 0 {
		return Item{}, fmt.Errorf("SHFileOperationW failed with code %d", ret)
	}
	if op.fAnyOperationsAborted != 0 {
		return Item{}, fmt.Errorf("operation was aborted")
	}

	// The shell picks the $R name; it is not reported back
	return Item{
		Name:         filepath.Base(absPath),
		OriginalPath: absPath,
		DeletedAt:    time.Now(),
	}, nil
}

func list() ([]Item, error) {
	// Scan the $Recycle.Bin folders directly rather than enumerating through COM

	var items []Item

	// Use fs.ListDrivePaths for fast, non-blocking drive enumeration
	drives := fs.ListDrivePaths()

	for _, drive := range drives {
		recyclePath := filepath.Join(drive, "$Recycle.Bin")
		driveItems, err := scanRecycleBin(recyclePath)
		if err != nil {
			continue // Skip drives we can't access
		}
		items = append(items, driveItems...)
	}

	return items, nil
}

func scanRecycleBin(recyclePath string) ([]Item, error) {
	var items []Item

	// $Recycle.Bin contains SID-named folders for each user
	sidFolders, err := os.ReadDir(recyclePath)
	if err != nil {
		return nil, err
	}

	for _, sidFolder := range sidFolders {
		if !sidFolder.IsDir() || !strings.HasPrefix(sidFolder.Name(), "S-") {
			continue
		}

		sidPath := filepath.Join(recyclePath, sidFolder.Name())
		entries, err := os.ReadDir(sidPath)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			// Skip $I files (metadata) - we only want $R files (actual data)
			if strings.HasPrefix(entry.Name(), "$I") {
				continue
			}

			if !strings.HasPrefix(entry.Name(), "$R") {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				continue
			}

			fullPath := filepath.Join(sidPath, entry.Name())

			// Try to get original name from $I file
			originalName := entry.Name()
			iFileName := "$I" + strings.TrimPrefix(entry.Name(), "$R")
			iFilePath := filepath.Join(sidPath, iFileName)
			if origName, origPath, delTime := parseRecycleBinInfo(iFilePath); origName != "" {
				originalName = origName
				items = append(items, Item{
					Name:         originalName,
					OriginalPath: origPath,
					TrashPath:    fullPath,
					DeletedAt:    delTime,
					Size:         info.Size(),
					IsDir:        entry.IsDir(),
				})
			} else {
				items = append(items, Item{
					Name:      originalName,
					TrashPath: fullPath,
					DeletedAt: info.ModTime(),
					Size:      info.Size(),
					IsDir:     entry.IsDir(),
				})
			}
		}
	}

	return items, nil
}

func parseRecycleBinInfo(iFilePath string) (name string, originalPath string, deletedAt time.Time) {
	data, err := os.ReadFile(iFilePath)
	if err != nil || len(data) < 28 {
		return "", "", time.Time{}
	}

	// $I file format (Windows Vista+):
	// Bytes 0-7: Header (version)
	// Bytes 8-15: Original file size
	// Bytes 16-23: Deletion timestamp (FILETIME)
	// Bytes 24-27: Length of original path (in characters)
	// Bytes 28+: Original path (UTF-16LE)

	// FILETIME counts 100ns intervals since 1601-01-01
	ft := binary.LittleEndian.Uint64(data[16:24])
	const filetimeEpochDiff = 116444736000000000
	if ft > filetimeEpochDiff {
		deletedAt = time.Unix(0, (int64(ft)-filetimeEpochDiff)*100)
	}

	pathLen := binary.LittleEndian.Uint32(data[24:28])
	pathBytes := data[28:]
	if uint32(len(pathBytes)) < pathLen*2 {
		return "", "", deletedAt
	}

	utf16Chars := make([]uint16, pathLen)
	for i := range utf16Chars {
		utf16Chars[i] = binary.LittleEndian.Uint16(pathBytes[i*2:])
	}

	originalPath = windows.UTF16ToString(utf16Chars)
	name = filepath.Base(originalPath)

	return name, originalPath, deletedAt
}

func empty() error {
	// E_UNEXPECTED is returned when the bin is already empty
	procSHEmptyRecycleBinW.Call(
		0, // hwnd
		0, // all drives
		sherbNoConfirmation|sherbNoProgressUI|sherbNoSound,
	)
	return nil
}

func deleteItem(item Item) error {
	// Permanently delete a specific item from Recycle Bin
	return os.RemoveAll(item.TrashPath)
}

func displayName() string {
	return "Recycle Bin"
}
