package fs

import "strings"

// IsReserved reports whether a child name is OS junk that traversals skip:
// anything starting with "$" ($RECYCLE.BIN, $Extend) and the Windows
// volume metadata folder.
func IsReserved(name string) bool {
	return strings.HasPrefix(name, "$") || strings.EqualFold(name, "System Volume Information")
}

// skipDirRoots contains top-level directories to skip (without trailing slash)
// when a traversal is rooted at "/".
var skipDirRoots = map[string]bool{
	"dev":        true,
	"proc":       true,
	"sys":        true,
	"run":        true,
	"snap":       true,
	"boot":       true,
	"lost+found": true,
}

// shouldSkipPath returns true if the path lies under a virtual or boot
// filesystem root. Extracts the first path component after "/" and does a
// single map lookup.
func shouldSkipPath(path string) bool {
	if len(path) < 2 || path[0] != '/' {
		return false
	}
	rest := path[1:]
	slashIdx := strings.IndexByte(rest, '/')
	var firstComponent string
	if slashIdx == -1 {
		firstComponent = rest
	} else {
		firstComponent = rest[:slashIdx]
	}
	return skipDirRoots[firstComponent]
}
