//go:build !linux || !cgo

package thumbs

import (
	"image"
	"io"
)

// HEIC decoding needs the cgo libde265 build, which is only wired up on linux
func decodeHEIC(io.Reader) (image.Image, error) {
	return nil, ErrUnsupported
}

func heicSupported() bool {
	return false
}
