// Package thumbs produces small JPEG previews of image files, cached in
// memory (LRU) and optionally on disk.
package thumbs

import (
	"bytes"
	"container/list"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"

	"github.com/justyntemme/solstice/internal/debug"
	"github.com/justyntemme/solstice/internal/logging"
	"github.com/justyntemme/solstice/internal/metrics"
)

// ErrUnsupported is returned for files that are not a supported image type.
var ErrUnsupported = errors.New("unsupported image type")

const jpegQuality = 80

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
	".heic": true, ".heif": true,
}

// IsImage reports whether ext (with its dot, any case) can be thumbnailed.
func IsImage(ext string) bool {
	ext = strings.ToLower(ext)
	if ext == ".heic" || ext == ".heif" {
		return heicSupported()
	}
	return imageExts[ext]
}

// Config sizes a Cache. An empty CacheDir disables the disk cache.
type Config struct {
	MaxEntries int
	MaxPixels  int
	CacheDir   string
}

// Cache provides an LRU cache for image thumbnails.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry // path -> entry
	lru       *list.List        // front = most recent
	maxSize   int
	maxPixels int
	cacheDir  string

	group singleflight.Group
}

type entry struct {
	path    string
	modTime time.Time
	size    int64
	data    []byte
	element *list.Element
}

func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 200
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = 256
	}
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			logging.Warn("thumbnail disk cache disabled", zap.String("dir", cfg.CacheDir), zap.Error(err))
			cfg.CacheDir = ""
		}
	}
	return &Cache{
		entries:   make(map[string]*entry),
		lru:       list.New(),
		maxSize:   cfg.MaxEntries,
		maxPixels: cfg.MaxPixels,
		cacheDir:  cfg.CacheDir,
	}
}

// Get returns JPEG bytes for path, scaled to fit within MaxPixels. A cached
// thumbnail is reused only while the file's size and mtime are unchanged.
// Concurrent requests for the same path share one decode.
func (c *Cache) Get(path string) ([]byte, error) {
	if !IsImage(filepath.Ext(path)) {
		return nil, ErrUnsupported
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrUnsupported
	}

	if data, ok := c.lookup(path, info); ok {
		metrics.RecordThumbnailLookup(true)
		return data, nil
	}
	metrics.RecordThumbnailLookup(false)

	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		return c.load(path, info)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// DataURL returns the thumbnail as a data: URL suitable for an <img> src.
func (c *Cache) DataURL(path string) (string, error) {
	data, err := c.Get(path)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (c *Cache) lookup(path string, info os.FileInfo) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	if !e.modTime.Equal(info.ModTime()) || e.size != info.Size() {
		c.removeLocked(e)
		return nil, false
	}
	c.lru.MoveToFront(e.element)
	return e.data, true
}

func (c *Cache) load(path string, info os.FileInfo) ([]byte, error) {
	diskPath := c.diskPath(path, info)
	if diskPath != "" {
		if data, err := os.ReadFile(diskPath); err == nil {
			debug.Log(debug.THUMB, "disk hit %s", path)
			c.put(path, info, data)
			return data, nil
		}
	}

	debug.Log(debug.THUMB, "loading %s", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := decode(file, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	img = c.scaleThumbnail(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	data := buf.Bytes()

	if diskPath != "" {
		if err := os.WriteFile(diskPath, data, 0o644); err != nil {
			logging.Warn("thumbnail disk write failed", zap.String("path", diskPath), zap.Error(err))
		}
	}
	c.put(path, info, data)

	debug.Log(debug.THUMB, "cached %s (thumb %dx%d)", path, img.Bounds().Dx(), img.Bounds().Dy())
	return data, nil
}

// diskPath names the cache file by a hash of path, mtime and target size.
func (c *Cache) diskPath(path string, info os.FileInfo) string {
	if c.cacheDir == "" {
		return ""
	}
	key := path + "\x00" + strconv.FormatInt(info.ModTime().UnixNano(), 10) +
		"\x00" + strconv.Itoa(c.maxPixels)
	return filepath.Join(c.cacheDir, strconv.FormatUint(xxhash.Sum64String(key), 16)+".jpg")
}

// scaleThumbnail scales an image down to fit within maxPixels.
func (c *Cache) scaleThumbnail(src image.Image) image.Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= c.maxPixels && height <= c.maxPixels {
		return src
	}

	var scale float64
	if width > height {
		scale = float64(c.maxPixels) / float64(width)
	} else {
		scale = float64(c.maxPixels) / float64(height)
	}

	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// put adds a thumbnail to the cache, evicting old entries if necessary.
func (c *Cache) put(path string, info os.FileInfo, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[path]; ok {
		e.data, e.modTime, e.size = data, info.ModTime(), info.Size()
		c.lru.MoveToFront(e.element)
		return
	}

	for c.lru.Len() >= c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		old := oldest.Value.(*entry)
		c.removeLocked(old)
		debug.Log(debug.THUMB, "evicted %s", old.path)
	}

	e := &entry{path: path, modTime: info.ModTime(), size: info.Size(), data: data}
	e.element = c.lru.PushFront(e)
	c.entries[path] = e
}

func (c *Cache) removeLocked(e *entry) {
	delete(c.entries, e.path)
	c.lru.Remove(e.element)
}

// Invalidate drops path from the memory cache.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		c.removeLocked(e)
	}
}

// Clear removes all entries from the memory cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.lru = list.New()
}

// Len returns the current number of cached thumbnails.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
