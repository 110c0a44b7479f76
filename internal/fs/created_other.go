//go:build !linux && !darwin && !windows

package fs

import (
	"os"
	"time"
)

func birthTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}

func accessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
