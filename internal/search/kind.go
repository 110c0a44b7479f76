package search

import "strings"

// Kind is the coarse type bucket an entry falls into.
type Kind string

const (
	KindAll      Kind = "all"
	KindFolder   Kind = "folder"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindCode     Kind = "code"
	KindArchive  Kind = "archive"
	KindDocument Kind = "document"
	KindFile     Kind = "file"
)

var kindByExt = map[string]Kind{}

func init() {
	// Order matters: earlier tables win for extensions listed twice.
	tables := []struct {
		kind Kind
		exts []string
	}{
		{KindImage, []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".ico"}},
		{KindVideo, []string{".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".webm"}},
		{KindAudio, []string{".mp3", ".wav", ".flac", ".aac", ".ogg", ".wma", ".m4a"}},
		{KindCode, []string{".js", ".ts", ".py", ".java", ".cpp", ".c", ".cs", ".html", ".css", ".json", ".xml"}},
		{KindArchive, []string{".zip", ".rar", ".7z", ".tar", ".gz", ".bz2"}},
		{KindDocument, []string{".txt", ".doc", ".docx", ".pdf", ".rtf", ".odt"}},
	}
	for _, t := range tables {
		for _, ext := range t.exts {
			if _, ok := kindByExt[ext]; !ok {
				kindByExt[ext] = t.kind
			}
		}
	}
}

// KindOf derives the kind of an entry from its directory flag and its
// lowercase, dot-prefixed extension.
func KindOf(isDir bool, ext string) Kind {
	if isDir {
		return KindFolder
	}
	if k, ok := kindByExt[strings.ToLower(ext)]; ok {
		return k
	}
	return KindFile
}

// ParseKind maps a filter string to a Kind. Unknown or empty input is KindAll.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFolder, KindImage, KindVideo, KindAudio, KindCode, KindArchive, KindDocument, KindFile:
		return k
	default:
		return KindAll
	}
}

// Accepts reports whether an entry of kind k passes the filter f.
func (f Kind) Accepts(k Kind) bool {
	return f == "" || f == KindAll || f == k
}
